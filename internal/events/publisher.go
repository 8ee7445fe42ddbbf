package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// Publisher publishes domain events to JetStream. The message id header makes
// republishing the same event idempotent within the stream duplicate window.
type Publisher struct {
	client jetstream.ClientInterface
}

func NewPublisher(client jetstream.ClientInterface) *Publisher {
	return &Publisher{client: client}
}

// PublishLeadCreated publishes event on v1.leads.created.
func (p *Publisher) PublishLeadCreated(ctx context.Context, event model.LeadCreatedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lead created event: %w", err)
	}
	return p.Publish(ctx, string(model.V1LeadsCreated), event.EventID, data)
}

// Publish publishes an already encoded event.
func (p *Publisher) Publish(ctx context.Context, subject, eventID string, data []byte) error {
	headers := map[string]string{}
	if eventID != "" {
		headers[nats.MsgIdHdr] = eventID
	}
	if err := p.client.Publish(ctx, subject, data, headers); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrNATS, err)
	}
	return nil
}
