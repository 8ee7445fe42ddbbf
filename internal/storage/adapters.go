package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// AffiliateRepoAdapter adapts the PostgresRepo to the AffiliateRepo interface
type AffiliateRepoAdapter struct {
	postgres *PostgresRepo
}

func NewAffiliateRepoAdapter(postgres *PostgresRepo) AffiliateRepo {
	return &AffiliateRepoAdapter{postgres: postgres}
}

func (a *AffiliateRepoAdapter) FindByID(ctx context.Context, id string) (*model.Affiliate, error) {
	return a.postgres.FindAffiliateByID(ctx, id)
}

func (a *AffiliateRepoAdapter) FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	return a.postgres.FindActiveAffiliateByCode(ctx, code)
}

func (a *AffiliateRepoAdapter) Save(ctx context.Context, affiliate *model.Affiliate) error {
	return a.postgres.SaveAffiliate(ctx, affiliate)
}

func (a *AffiliateRepoAdapter) UpdateStatus(ctx context.Context, id string, status model.AffiliateStatus) error {
	return a.postgres.UpdateAffiliateStatus(ctx, id, status)
}

func (a *AffiliateRepoAdapter) AssignCode(ctx context.Context, id, code string) error {
	return a.postgres.AssignAffiliateCode(ctx, id, code)
}

// PropertyRepoAdapter adapts the PostgresRepo to the PropertyRepo interface
type PropertyRepoAdapter struct {
	postgres *PostgresRepo
}

func NewPropertyRepoAdapter(postgres *PostgresRepo) PropertyRepo {
	return &PropertyRepoAdapter{postgres: postgres}
}

func (a *PropertyRepoAdapter) FindByID(ctx context.Context, id string) (*model.Property, error) {
	return a.postgres.FindPropertyByID(ctx, id)
}

func (a *PropertyRepoAdapter) FindBySlug(ctx context.Context, slug string) (*model.Property, error) {
	return a.postgres.FindPropertyBySlug(ctx, slug)
}

func (a *PropertyRepoAdapter) ListPublished(ctx context.Context, limit, offset int) ([]model.Property, int64, error) {
	return a.postgres.ListPublishedProperties(ctx, limit, offset)
}

func (a *PropertyRepoAdapter) Save(ctx context.Context, property *model.Property) error {
	return a.postgres.SaveProperty(ctx, property)
}

// VisitRepoAdapter adapts the PostgresRepo to the VisitRepo interface
type VisitRepoAdapter struct {
	postgres *PostgresRepo
}

func NewVisitRepoAdapter(postgres *PostgresRepo) VisitRepo {
	return &VisitRepoAdapter{postgres: postgres}
}

func (a *VisitRepoAdapter) Save(ctx context.Context, visit *model.Visit) error {
	return a.postgres.SaveVisit(ctx, visit)
}

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

func (a *LeadRepoAdapter) CreateWithOutbox(ctx context.Context, lead *model.Lead, event *model.OutboxEvent) error {
	return a.postgres.CreateLeadWithOutbox(ctx, lead, event)
}

func (a *LeadRepoAdapter) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	return a.postgres.FindLeadByID(ctx, id)
}

func (a *LeadRepoAdapter) UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error {
	return a.postgres.UpdateLeadStatus(ctx, id, status)
}

func (a *LeadRepoAdapter) List(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	return a.postgres.ListLeads(ctx, filter)
}

// OutboxRepoAdapter adapts the PostgresRepo to the OutboxRepo interface
type OutboxRepoAdapter struct {
	postgres *PostgresRepo
}

func NewOutboxRepoAdapter(postgres *PostgresRepo) OutboxRepo {
	return &OutboxRepoAdapter{postgres: postgres}
}

func (a *OutboxRepoAdapter) FindUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]model.OutboxEvent, error) {
	return a.postgres.FindUnpublishedOutbox(ctx, createdBefore, limit)
}

func (a *OutboxRepoAdapter) MarkPublished(ctx context.Context, id string) error {
	return a.postgres.MarkOutboxPublished(ctx, id)
}

func (a *OutboxRepoAdapter) MarkFailed(ctx context.Context, id string, reason string) error {
	return a.postgres.MarkOutboxFailed(ctx, id, reason)
}

// OperatorNotificationRepoAdapter adapts the PostgresRepo to the OperatorNotificationRepo interface
type OperatorNotificationRepoAdapter struct {
	postgres *PostgresRepo
}

func NewOperatorNotificationRepoAdapter(postgres *PostgresRepo) OperatorNotificationRepo {
	return &OperatorNotificationRepoAdapter{postgres: postgres}
}

func (a *OperatorNotificationRepoAdapter) Save(ctx context.Context, notification *model.OperatorNotification) error {
	return a.postgres.SaveOperatorNotification(ctx, notification)
}

// SettingsRepoAdapter adapts the PostgresRepo to the SettingsRepo interface
type SettingsRepoAdapter struct {
	postgres *PostgresRepo
}

func NewSettingsRepoAdapter(postgres *PostgresRepo) SettingsRepo {
	return &SettingsRepoAdapter{postgres: postgres}
}

func (a *SettingsRepoAdapter) All(ctx context.Context) (map[string]string, error) {
	return a.postgres.AllSettings(ctx)
}

// ExhaustedEventRepoAdapter adapts the PostgresRepo to the ExhaustedEventRepo interface
type ExhaustedEventRepoAdapter struct {
	postgres *PostgresRepo
}

func NewExhaustedEventRepoAdapter(postgres *PostgresRepo) ExhaustedEventRepo {
	return &ExhaustedEventRepoAdapter{postgres: postgres}
}

func (a *ExhaustedEventRepoAdapter) Save(ctx context.Context, event model.ExhaustedEvent) error {
	return a.postgres.SaveExhaustedEvent(ctx, event)
}
