package model

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType is the versioned subject prefix of an event.
type EventType string

const (
	V1LeadsCreated EventType = "v1.leads.created"
)

// MapToBaseEventType maps a subject, optionally suffixed with one extra token,
// to a known EventType.
func MapToBaseEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case V1LeadsCreated:
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	switch EventType(input[:lastDotIndex]) {
	case V1LeadsCreated:
		return V1LeadsCreated, true
	default:
		return "", false
	}
}

// GetVersion returns the leading version token, e.g. "v1".
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}
	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}
	return ""
}

// MessageMetadata is the JetStream delivery metadata handed to event handlers.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	MessageID        string
	MessageSubject   string
}

// LeadCreatedEvent is raised once per lead after it is committed.
type LeadCreatedEvent struct {
	EventID     string    `json:"event_id"`
	LeadID      string    `json:"lead_id" validate:"required"`
	PropertyID  string    `json:"property_id" validate:"required"`
	AffiliateID *string   `json:"affiliate_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// DLQPayload is the envelope published to the dead letter subject.
type DLQPayload struct {
	SourceSubject   string          `json:"source_subject"`
	OriginalPayload json.RawMessage `json:"original_payload"`
	Error           string          `json:"error"`
	ErrorType       string          `json:"error_type"` // fatal, retryable or unknown
	RetryCount      uint64          `json:"retry_count"`
	MaxRetry        int             `json:"max_retry"`
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"`
	Timestamp       time.Time       `json:"ts"`
}
