package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// OutboxEvent is an event committed alongside its aggregate and published afterwards.
type OutboxEvent struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	AggregateID string         `json:"aggregate_id" gorm:"column:aggregate_id;type:uuid;index;not null"`
	Subject     string         `json:"subject" gorm:"column:subject;not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"column:payload;type:jsonb;not null"`
	PublishedAt *time.Time     `json:"published_at,omitempty" gorm:"column:published_at;index"`
	Attempts    int            `json:"attempts" gorm:"column:attempts;not null;default:0"`
	LastError   string         `json:"last_error,omitempty" gorm:"column:last_error"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`
}

func (OutboxEvent) TableName(namer schema.Namer) string {
	return namer.TableName("outbox_events")
}
