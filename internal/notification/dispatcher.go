package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	defaultGatewayTimeout       = 10 * time.Second
	defaultRetryInitialInterval = 500 * time.Millisecond
)

var errSendRejected = errors.New("gateway rejected message")

// delivery is one message to one recipient. Deliveries of the same lead
// share nothing but the failure tracker.
type delivery struct {
	ctx         context.Context
	role        DeliveryRole
	to          string
	body        string
	leadID      string
	propertyID  string
	affiliateID string
	imageURL    string
}

// Dispatcher turns LeadCreated events into WhatsApp messages for the
// affiliate and the visitor.
type Dispatcher struct {
	leads      storage.LeadRepo
	properties storage.PropertyRepo
	affiliates storage.AffiliateRepo
	gateway    Gateway
	tracker    FailureTracker
	alerter    Alerter
	renderer   *Renderer
	site       *settings.SiteSettings
	cfg        config.NotificationConfig
	timeout    time.Duration
	pool       *ants.PoolWithFunc
	inflight   sync.WaitGroup
	logger     *zap.Logger
}

// DispatcherDeps groups the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Leads      storage.LeadRepo
	Properties storage.PropertyRepo
	Affiliates storage.AffiliateRepo
	Gateway    Gateway
	Tracker    FailureTracker
	Alerter    Alerter
	Site       *settings.SiteSettings
}

// NewDispatcher creates the dispatcher and its delivery pool. gatewayTimeout
// bounds every single delivery.
func NewDispatcher(deps DispatcherDeps, cfg config.NotificationConfig, poolCfg config.WorkerPoolConfig, gatewayTimeout time.Duration, log *zap.Logger) (*Dispatcher, error) {
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	d := &Dispatcher{
		leads:      deps.Leads,
		properties: deps.Properties,
		affiliates: deps.Affiliates,
		gateway:    deps.Gateway,
		tracker:    deps.Tracker,
		alerter:    deps.Alerter,
		renderer:   NewRenderer(deps.Site),
		site:       deps.Site,
		cfg:        cfg,
		timeout:    gatewayTimeout,
		logger:     log.Named("dispatcher"),
	}

	poolSize := poolCfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	opts := []ants.Option{
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(poolCfg.QueueSize),
		ants.WithLogger(logger.Printf{L: d.logger.Named("ants_pool")}),
		ants.WithPanicHandler(func(p interface{}) {
			d.logger.Error("Panic recovered in delivery worker", zap.Any("panic_error", p), zap.Stack("stack"))
		}),
	}
	if poolCfg.ExpiryTime > 0 {
		opts = append(opts, ants.WithExpiryDuration(poolCfg.ExpiryTime))
	}

	pool, err := ants.NewPoolWithFunc(poolSize, func(i interface{}) {
		job, ok := i.(*delivery)
		if !ok {
			d.logger.Error("Invalid delivery type received", zap.Any("data", i))
			return
		}
		defer d.inflight.Done()
		d.deliver(job)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification pool: %w", err)
	}
	d.pool = pool

	d.logger.Info("Notification dispatcher initialized",
		zap.Int("pool_size", poolSize),
		zap.Int("queue_size", poolCfg.QueueSize),
		zap.Duration("gateway_timeout", gatewayTimeout),
	)
	return d, nil
}

// HandleLeadCreated is the event router handler for v1.leads.created. It
// only fails for problems loading the lead; delivery outcomes are never
// returned to the event pipeline.
func (d *Dispatcher) HandleLeadCreated(ctx context.Context, _ model.EventType, _ *model.MessageMetadata, raw []byte) error {
	var event model.LeadCreatedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return apperrors.NewFatal(err, "decode lead created event")
	}
	if event.LeadID == "" {
		return apperrors.NewFatal(apperrors.ErrBadRequest, "lead created event without lead_id")
	}

	log := logger.FromContextOr(ctx, d.logger).With(zap.String("lead_id", event.LeadID))
	ctx = logger.WithLogger(ctx, log)

	lead, err := d.leads.FindByID(ctx, event.LeadID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewFatal(err, "lead %s", event.LeadID)
		}
		return apperrors.NewRetryable(err, "load lead %s", event.LeadID)
	}

	property, err := d.properties.FindByID(ctx, lead.PropertyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewFatal(err, "property %s of lead %s", lead.PropertyID, lead.ID)
		}
		return apperrors.NewRetryable(err, "load property %s", lead.PropertyID)
	}

	var affiliate *model.Affiliate
	if lead.AffiliateID != nil {
		affiliate, err = d.affiliates.FindByID(ctx, *lead.AffiliateID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewRetryable(err, "load affiliate %s", *lead.AffiliateID)
		}
		if err != nil {
			log.Warn("Attributed affiliate no longer exists", zap.String("affiliate_id", *lead.AffiliateID))
		}
	}

	data := MessageData{
		SiteName:      d.site.SiteName,
		LeadID:        lead.ID,
		PropertyTitle: property.Title,
		PropertyURL:   d.site.PropertyURL(property.Slug),
		VisitorName:   lead.VisitorName,
		VisitorPhone:  lead.VisitorPhone,
		Message:       lead.Message,
	}
	if affiliate != nil {
		data.AffiliateName = affiliate.Name
	}

	base := delivery{
		ctx:        ctx,
		leadID:     lead.ID,
		propertyID: property.ID,
		imageURL:   property.ImageURL,
	}
	if lead.AffiliateID != nil {
		base.affiliateID = *lead.AffiliateID
	}

	if affiliate.HasPhone() {
		d.submit(base, RoleAffiliate, *affiliate.Phone, data)
	} else {
		observer.IncNotificationDelivery(string(RoleAffiliate), "skipped")
	}

	if lead.VisitorPhone != "" && d.cfg.VisitorConfirmation {
		d.submit(base, RoleVisitor, lead.VisitorPhone, data)
	} else {
		observer.IncNotificationDelivery(string(RoleVisitor), "skipped")
	}
	return nil
}

func (d *Dispatcher) submit(base delivery, role DeliveryRole, to string, data MessageData) {
	job := base
	job.role = role
	job.to = to

	body, err := d.renderer.Render(role, data)
	if err != nil {
		d.recordFailure(&job, err)
		return
	}
	job.body = body

	d.inflight.Add(1)
	observer.SetNotificationQueueLength(d.pool.Waiting())
	if err := d.pool.Invoke(&job); err != nil {
		logger.FromContextOr(job.ctx, d.logger).Warn("Delivery pool rejected task, delivering inline",
			zap.String("role", string(role)), zap.Error(err))
		func() {
			defer d.inflight.Done()
			d.deliver(&job)
		}()
	}
}

// deliver sends one message and records the failure once every attempt is
// spent. All attempts share the gateway timeout.
func (d *Dispatcher) deliver(job *delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(job.ctx), d.timeout)
	defer cancel()
	log := logger.FromContextOr(job.ctx, d.logger)

	opts := SendOptions{
		DedupeWindow: d.cfg.DedupeWindow,
		Context: map[string]string{
			ContextLeadID:      job.leadID,
			ContextRole:        string(job.role),
			ContextPropertyID:  job.propertyID,
			ContextAffiliateID: job.affiliateID,
		},
	}
	if job.role == RoleAffiliate {
		opts.MediaURL = job.imageURL
		opts.Urgent = true
	}

	attempts := 0
	send := func() error {
		attempts++
		if d.gateway.SendMessage(ctx, job.to, job.body, opts) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return errSendRejected
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Retrying lead notification",
			zap.String("role", string(job.role)),
			zap.Int("attempt", attempts),
			zap.Duration("after", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(send, d.retryPolicy(ctx), notify); err == nil {
		observer.IncNotificationDelivery(string(job.role), "delivered")
		log.Info("Lead notification delivered",
			zap.String("role", string(job.role)),
			zap.String("recipient", utils.MaskPhone(job.to)),
			zap.Int("attempts", attempts),
		)
		return
	}

	cause := apperrors.ErrGateway
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause = apperrors.ErrTimeout
	}
	d.recordFailure(job, cause)
}

// retryPolicy allows cfg.MaxAttempts sends in total, at least one.
func (d *Dispatcher) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.RetryInitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = defaultRetryInitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := uint64(0)
	if d.cfg.MaxAttempts > 1 {
		retries = uint64(d.cfg.MaxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func (d *Dispatcher) recordFailure(job *delivery, cause error) {
	log := logger.FromContextOr(job.ctx, d.logger)
	recipient := utils.MaskPhone(job.to)

	log.Error("Lead notification failed",
		zap.String("lead_id", job.leadID),
		zap.String("affiliate_id", job.affiliateID),
		zap.String("property_id", job.propertyID),
		zap.String("role", string(job.role)),
		zap.String("recipient", recipient),
		zap.Error(cause),
	)
	observer.IncNotificationDelivery(string(job.role), "failed")

	if d.tracker == nil {
		return
	}
	trackCtx, cancel := context.WithTimeout(context.WithoutCancel(job.ctx), 5*time.Second)
	defer cancel()

	breach, err := d.tracker.RecordFailure(trackCtx, FailureContext{
		LeadID:      job.leadID,
		AffiliateID: job.affiliateID,
		PropertyID:  job.propertyID,
		Role:        job.role,
		Recipient:   recipient,
		Error:       cause.Error(),
		At:          utils.Now(),
	})
	if err != nil {
		log.Warn("Failed to record notification failure", zap.Error(err))
		return
	}
	if breach == nil {
		return
	}

	observer.IncFailureBreach()
	if d.alerter != nil {
		d.alerter.Alert(trackCtx, *breach)
	}
}

// Wait blocks until every submitted delivery has finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Stop waits for in-flight deliveries and releases the pool.
func (d *Dispatcher) Stop() {
	d.Wait()
	d.pool.Release()
	d.logger.Info("Notification dispatcher stopped")
}
