package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// LeadStatus tracks sales follow-up. Transitions are manual and unordered.
type LeadStatus string

const (
	LeadNew      LeadStatus = "new"
	LeadFollowUp LeadStatus = "follow_up"
	LeadSurvey   LeadStatus = "survey"
	LeadClosed   LeadStatus = "closed"
	LeadLost     LeadStatus = "lost"
)

// LeadStatuses lists every valid status in display order.
var LeadStatuses = []LeadStatus{LeadNew, LeadFollowUp, LeadSurvey, LeadClosed, LeadLost}

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Lead is a visitor inquiry about a property.
type Lead struct {
	ID string `json:"id" gorm:"type:uuid;primaryKey"`
	// AffiliateID is copied by value when the lead is created and not recomputed.
	AffiliateID  *string    `json:"affiliate_id,omitempty" gorm:"column:affiliate_id;type:uuid;index"`
	PropertyID   string     `json:"property_id" gorm:"column:property_id;type:uuid;index;not null"`
	VisitorName  string     `json:"visitor_name" gorm:"column:visitor_name;not null"`
	VisitorPhone string     `json:"visitor_phone" gorm:"column:visitor_phone;not null"`
	Message      string     `json:"message,omitempty" gorm:"column:message;type:text"`
	Status       LeadStatus `json:"status" gorm:"column:status;index;not null;default:new"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Lead) TableName(namer schema.Namer) string {
	return namer.TableName("leads")
}

// LeadFilter narrows lead listings.
type LeadFilter struct {
	Status      LeadStatus
	AffiliateID string
	Limit       int
	Offset      int
}
