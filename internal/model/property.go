package model

import (
	"time"

	"gorm.io/gorm/schema"
)

type PropertyStatus string

const (
	PropertyDraft     PropertyStatus = "draft"
	PropertyPublished PropertyStatus = "published"
	PropertyArchived  PropertyStatus = "archived"
)

// Property is a real-estate listing. Only published properties accept inquiries.
type Property struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string         `json:"title" gorm:"column:title;not null"`
	Slug        string         `json:"slug" gorm:"column:slug;uniqueIndex;not null"`
	Description string         `json:"description,omitempty" gorm:"column:description;type:text"`
	Price       int64          `json:"price" gorm:"column:price"`
	Currency    string         `json:"currency" gorm:"column:currency;default:IDR"`
	City        string         `json:"city,omitempty" gorm:"column:city;index"`
	ImageURL    string         `json:"image_url,omitempty" gorm:"column:image_url"`
	Status      PropertyStatus `json:"status" gorm:"column:status;index;not null;default:draft"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Property) TableName(namer schema.Namer) string {
	return namer.TableName("properties")
}

func (p *Property) IsPublished() bool {
	return p != nil && p.Status == PropertyPublished
}
