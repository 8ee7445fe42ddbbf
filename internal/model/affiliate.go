package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// AffiliateStatus is the lifecycle state of an affiliate account.
type AffiliateStatus string

const (
	AffiliatePending AffiliateStatus = "pending"
	AffiliateActive  AffiliateStatus = "active"
	AffiliateBlocked AffiliateStatus = "blocked"
)

// Affiliate is a partner who earns credit for leads they refer.
// Only active affiliates can be credited.
type Affiliate struct {
	ID    string `json:"id" gorm:"type:uuid;primaryKey"`
	Name  string `json:"name" gorm:"column:name;not null"`
	Email string `json:"email" gorm:"column:email;uniqueIndex"`
	// Phone is the affiliate's WhatsApp number in E.164 form. Nil means no lead notifications.
	Phone *string `json:"phone,omitempty" gorm:"column:phone"`
	// AffiliateCode is assigned once on approval and never changes.
	AffiliateCode *string         `json:"affiliate_code,omitempty" gorm:"column:affiliate_code;uniqueIndex"`
	Status        AffiliateStatus `json:"status" gorm:"column:status;index;not null;default:pending"`
	CreatedAt     time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Affiliate) TableName(namer schema.Namer) string {
	return namer.TableName("affiliates")
}

// IsActive reports whether the affiliate may currently earn attribution.
func (a *Affiliate) IsActive() bool {
	return a != nil && a.Status == AffiliateActive
}

// HasPhone reports whether the affiliate can receive WhatsApp notifications.
func (a *Affiliate) HasPhone() bool {
	return a != nil && a.Phone != nil && *a.Phone != ""
}

// Code returns the affiliate code or an empty string.
func (a *Affiliate) Code() string {
	if a == nil || a.AffiliateCode == nil {
		return ""
	}
	return *a.AffiliateCode
}
