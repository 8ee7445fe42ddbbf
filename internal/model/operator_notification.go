package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

const NotificationKindDeliveryFailures = "notification_failures"

// OperatorNotification is an in-app message for site operators.
type OperatorNotification struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind      string         `json:"kind" gorm:"column:kind;index;not null"`
	Title     string         `json:"title" gorm:"column:title;not null"`
	Body      string         `json:"body" gorm:"column:body;type:text"`
	Payload   datatypes.JSON `json:"payload,omitempty" gorm:"column:payload;type:jsonb"`
	ReadAt    *time.Time     `json:"read_at,omitempty" gorm:"column:read_at"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (OperatorNotification) TableName(namer schema.Namer) string {
	return namer.TableName("operator_notifications")
}
