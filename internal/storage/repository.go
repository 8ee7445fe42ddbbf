package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// AffiliateRepo defines affiliate storage operations
type AffiliateRepo interface {
	FindByID(ctx context.Context, id string) (*model.Affiliate, error)
	// FindActiveByCode returns ErrNotFound for unknown codes and for affiliates that are not active.
	FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error)
	Save(ctx context.Context, affiliate *model.Affiliate) error
	UpdateStatus(ctx context.Context, id string, status model.AffiliateStatus) error
	// AssignCode sets the code only when the affiliate has none yet.
	AssignCode(ctx context.Context, id, code string) error
}

// PropertyRepo defines property storage operations
type PropertyRepo interface {
	FindByID(ctx context.Context, id string) (*model.Property, error)
	FindBySlug(ctx context.Context, slug string) (*model.Property, error)
	ListPublished(ctx context.Context, limit, offset int) ([]model.Property, int64, error)
	Save(ctx context.Context, property *model.Property) error
}

// VisitRepo defines visit storage operations
type VisitRepo interface {
	Save(ctx context.Context, visit *model.Visit) error
}

// LeadRepo defines lead storage operations
type LeadRepo interface {
	// CreateWithOutbox inserts the lead and its outbox event in one transaction.
	CreateWithOutbox(ctx context.Context, lead *model.Lead, event *model.OutboxEvent) error
	FindByID(ctx context.Context, id string) (*model.Lead, error)
	UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error
	List(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
}

// OutboxRepo defines outbox storage operations
type OutboxRepo interface {
	FindUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// OperatorNotificationRepo defines in-app operator notification storage
type OperatorNotificationRepo interface {
	Save(ctx context.Context, notification *model.OperatorNotification) error
}

// SettingsRepo reads site settings
type SettingsRepo interface {
	All(ctx context.Context) (map[string]string, error)
}

// ExhaustedEventRepo defines exhausted event storage operations
type ExhaustedEventRepo interface {
	Save(ctx context.Context, event model.ExhaustedEvent) error
}
