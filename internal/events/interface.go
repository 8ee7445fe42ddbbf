package events

import (
	"context"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// RouterInterface defines the interface for an event router
type RouterInterface interface {
	Register(eventType model.EventType, handler EventHandler)
	RegisterDefault(handler EventHandler)
	Route(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error
}

// ConsumerInterface defines the basic methods for a NATS consumer
type ConsumerInterface interface {
	Setup(ctx context.Context) error
	Start() error
	Stop()
}

var (
	_ RouterInterface   = (*Router)(nil)
	_ ConsumerInterface = (*LeadConsumer)(nil)
)
