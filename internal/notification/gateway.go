package notification

import (
	"context"
	"time"
)

// SendOptions tunes a single outbound message.
type SendOptions struct {
	MediaURL     string
	Urgent       bool
	DedupeWindow time.Duration
	// Context carries correlation values such as lead_id and role.
	Context map[string]string
}

// Gateway sends WhatsApp messages. SendMessage reports whether the message
// was accepted; it never returns an error.
type Gateway interface {
	SendMessage(ctx context.Context, to, body string, opts SendOptions) bool
}
