package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Site setting keys.
const (
	SettingSiteName               = "site_name"
	SettingBaseURL                = "base_url"
	SettingOperatorEmails         = "operator_emails"
	SettingAffiliateLeadTemplate  = "affiliate_lead_template"
	SettingVisitorConfirmTemplate = "visitor_confirm_template"
)

type SiteSetting struct {
	Key       string    `json:"key" gorm:"column:key;primaryKey"`
	Value     string    `json:"value" gorm:"column:value;type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SiteSetting) TableName(namer schema.Namer) string {
	return namer.TableName("site_settings")
}
