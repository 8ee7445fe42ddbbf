package lead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/validator"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// publishTimeout bounds the inline publish on the request path. The outbox
// relay picks up anything that misses it.
const publishTimeout = 500 * time.Millisecond

// EventPublisher raises LeadCreated events.
type EventPublisher interface {
	PublishLeadCreated(ctx context.Context, event model.LeadCreatedEvent) error
}

// SubmitInput is a visitor inquiry as received from the form.
type SubmitInput struct {
	PropertyID   string `json:"property_id" validate:"required"`
	VisitorName  string `json:"visitor_name" validate:"required,min=2,max=120"`
	VisitorPhone string `json:"visitor_phone" validate:"required,whatsapp"`
	Message      string `json:"message" validate:"max=2000"`
}

// Service creates leads and manages their follow-up status.
type Service struct {
	leads      storage.LeadRepo
	properties storage.PropertyRepo
	outbox     storage.OutboxRepo
	publisher  EventPublisher
	region     string
	logger     *zap.Logger
}

// NewService creates a lead service. region is used to normalise phone
// numbers entered without a country prefix.
func NewService(leads storage.LeadRepo, properties storage.PropertyRepo, outbox storage.OutboxRepo, publisher EventPublisher, region string, log *zap.Logger) *Service {
	if region == "" {
		region = validator.DefaultRegion
	}
	return &Service{
		leads:      leads,
		properties: properties,
		outbox:     outbox,
		publisher:  publisher,
		region:     region,
		logger:     log.Named("lead_service"),
	}
}

// Submit validates the inquiry, stores the lead together with its LeadCreated
// outbox event and then publishes the event. affiliateID is copied onto the
// lead as it is at this moment.
func (s *Service) Submit(ctx context.Context, in SubmitInput, affiliateID *string) (*model.Lead, error) {
	log := logger.FromContextOr(ctx, s.logger)

	in.PropertyID = strings.TrimSpace(in.PropertyID)
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.VisitorPhone = strings.TrimSpace(in.VisitorPhone)
	in.Message = strings.TrimSpace(in.Message)

	if err := validator.ValidateFields(in); err != nil {
		observer.IncLeadSubmitted("invalid")
		return nil, err
	}
	phone, err := validator.NormalizePhone(in.VisitorPhone, s.region)
	if err != nil {
		observer.IncLeadSubmitted("invalid")
		fe := apperrors.NewFieldErrors()
		fe.Add("visitor_phone", "must be a valid WhatsApp number")
		return nil, fe
	}

	property, err := s.properties.FindByID(ctx, in.PropertyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			observer.IncLeadSubmitted("not_found")
			return nil, fmt.Errorf("property %s: %w", in.PropertyID, apperrors.ErrNotFound)
		}
		observer.IncLeadSubmitted("error")
		return nil, fmt.Errorf("load property %s: %w", in.PropertyID, err)
	}
	if !property.IsPublished() {
		observer.IncLeadSubmitted("not_found")
		return nil, fmt.Errorf("property %s is not published: %w", in.PropertyID, apperrors.ErrNotFound)
	}

	now := utils.Now()
	lead := &model.Lead{
		ID:           uuid.NewString(),
		AffiliateID:  copyString(affiliateID),
		PropertyID:   property.ID,
		VisitorName:  in.VisitorName,
		VisitorPhone: phone,
		Message:      in.Message,
		Status:       model.LeadNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	event := newLeadCreatedEvent(lead, now)
	outboxRow, err := newOutboxEvent(event)
	if err != nil {
		observer.IncLeadSubmitted("error")
		return nil, err
	}

	if err := s.leads.CreateWithOutbox(ctx, lead, outboxRow); err != nil {
		observer.IncLeadSubmitted("error")
		return nil, fmt.Errorf("create lead: %w", err)
	}
	observer.IncLeadSubmitted("created")

	log.Info("Lead created",
		zap.String("lead_id", lead.ID),
		zap.String("property_id", lead.PropertyID),
		zap.Stringp("affiliate_id", lead.AffiliateID),
	)

	s.publish(ctx, event, outboxRow.ID)
	return lead, nil
}

// publish sends the event after commit. A failure leaves the outbox row for the relay.
func (s *Service) publish(ctx context.Context, event model.LeadCreatedEvent, outboxID string) {
	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("lead_id", event.LeadID),
		zap.String("event_id", event.EventID),
	)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishLeadCreated(pubCtx, event); err != nil {
		log.Warn("LeadCreated publish failed, leaving it to the outbox relay", zap.Error(err))
		return
	}
	if err := s.outbox.MarkPublished(pubCtx, outboxID); err != nil {
		log.Warn("Failed to mark outbox event published", zap.Error(err))
	}
}

// Renotify raises a fresh LeadCreated event for an existing lead. Recipients
// already messaged within the dedupe window are not messaged again.
func (s *Service) Renotify(ctx context.Context, leadID string) error {
	lead, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		return err
	}
	event := newLeadCreatedEvent(lead, utils.Now())
	if err := s.publisher.PublishLeadCreated(ctx, event); err != nil {
		return fmt.Errorf("publish lead %s: %w", leadID, err)
	}
	return nil
}

// SetStatus moves a lead to status. Any valid status may follow any other.
func (s *Service) SetStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	if !status.Valid() {
		fe := apperrors.NewFieldErrors()
		fe.Add("status", fmt.Sprintf("must be one of: %s", joinStatuses()))
		return fe
	}
	if err := s.leads.UpdateStatus(ctx, leadID, status); err != nil {
		return err
	}
	logger.FromContextOr(ctx, s.logger).Info("Lead status changed",
		zap.String("lead_id", leadID),
		zap.String("status", string(status)),
	)
	return nil
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, leadID string) (*model.Lead, error) {
	return s.leads.FindByID(ctx, leadID)
}

// List returns leads matching filter, newest first.
func (s *Service) List(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		fe := apperrors.NewFieldErrors()
		fe.Add("status", fmt.Sprintf("must be one of: %s", joinStatuses()))
		return nil, fe
	}
	return s.leads.List(ctx, filter)
}

func newLeadCreatedEvent(lead *model.Lead, at time.Time) model.LeadCreatedEvent {
	return model.LeadCreatedEvent{
		EventID:     uuid.NewString(),
		LeadID:      lead.ID,
		PropertyID:  lead.PropertyID,
		AffiliateID: copyString(lead.AffiliateID),
		OccurredAt:  at,
	}
}

func newOutboxEvent(event model.LeadCreatedEvent) (*model.OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal lead created event: %w", err)
	}
	return &model.OutboxEvent{
		ID:          event.EventID,
		AggregateID: event.LeadID,
		Subject:     string(model.V1LeadsCreated),
		Payload:     datatypes.JSON(payload),
		CreatedAt:   event.OccurredAt,
	}, nil
}

func joinStatuses() string {
	names := make([]string, len(model.LeadStatuses))
	for i, st := range model.LeadStatuses {
		names[i] = string(st)
	}
	return strings.Join(names, " ")
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
