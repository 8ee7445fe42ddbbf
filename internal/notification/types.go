package notification

import (
	"time"
)

// DeliveryRole names the recipient of a lead notification.
type DeliveryRole string

const (
	RoleAffiliate DeliveryRole = "affiliate"
	RoleVisitor   DeliveryRole = "visitor"
)

// Context keys carried in SendOptions.Context.
const (
	ContextLeadID      = "lead_id"
	ContextRole        = "role"
	ContextPropertyID  = "property_id"
	ContextAffiliateID = "affiliate_id"
)

// FailureContext describes one failed delivery.
type FailureContext struct {
	LeadID      string       `json:"lead_id"`
	AffiliateID string       `json:"affiliate_id,omitempty"`
	PropertyID  string       `json:"property_id"`
	Role        DeliveryRole `json:"role"`
	Recipient   string       `json:"recipient"` // masked
	Error       string       `json:"error"`
	At          time.Time    `json:"at"`
}

// Breach is raised once when failures within the window reach the threshold.
type Breach struct {
	Count  int
	Window time.Duration
	Recent []FailureContext // newest first
}
