package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// DeviceClass is the coarse device category derived from the user agent.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceBot     DeviceClass = "bot"
	DeviceUnknown DeviceClass = "unknown"
)

// Visit is an append-only record of one catalog or property page view.
type Visit struct {
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	// AffiliateID is copied from the attribution at write time.
	AffiliateID *string `json:"affiliate_id,omitempty" gorm:"column:affiliate_id;type:uuid;index"`
	// PropertyID is nil for catalog views.
	PropertyID  *string     `json:"property_id,omitempty" gorm:"column:property_id;type:uuid;index"`
	IPAddress   string      `json:"ip_address" gorm:"column:ip_address"`
	DeviceClass DeviceClass `json:"device_class" gorm:"column:device_class"`
	Browser     string      `json:"browser" gorm:"column:browser"`
	URL         string      `json:"url" gorm:"column:url;type:text"`
	VisitedAt   time.Time   `json:"visited_at" gorm:"column:visited_at;index;not null"`
}

func (Visit) TableName(namer schema.Namer) string {
	return namer.TableName("visits")
}
