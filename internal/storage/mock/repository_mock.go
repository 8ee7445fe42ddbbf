package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
)

var (
	_ storage.AffiliateRepo            = (*AffiliateRepoMock)(nil)
	_ storage.PropertyRepo             = (*PropertyRepoMock)(nil)
	_ storage.VisitRepo                = (*VisitRepoMock)(nil)
	_ storage.LeadRepo                 = (*LeadRepoMock)(nil)
	_ storage.OutboxRepo               = (*OutboxRepoMock)(nil)
	_ storage.OperatorNotificationRepo = (*OperatorNotificationRepoMock)(nil)
	_ storage.SettingsRepo             = (*SettingsRepoMock)(nil)
	_ storage.ExhaustedEventRepo       = (*ExhaustedEventRepoMock)(nil)
)

// AffiliateRepoMock mocks the AffiliateRepo interface
type AffiliateRepoMock struct {
	mock.Mock
}

func (m *AffiliateRepoMock) FindByID(ctx context.Context, id string) (*model.Affiliate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Affiliate), args.Error(1)
}

func (m *AffiliateRepoMock) FindActiveByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Affiliate), args.Error(1)
}

func (m *AffiliateRepoMock) Save(ctx context.Context, affiliate *model.Affiliate) error {
	return m.Called(ctx, affiliate).Error(0)
}

func (m *AffiliateRepoMock) UpdateStatus(ctx context.Context, id string, status model.AffiliateStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *AffiliateRepoMock) AssignCode(ctx context.Context, id, code string) error {
	return m.Called(ctx, id, code).Error(0)
}

// PropertyRepoMock mocks the PropertyRepo interface
type PropertyRepoMock struct {
	mock.Mock
}

func (m *PropertyRepoMock) FindByID(ctx context.Context, id string) (*model.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *PropertyRepoMock) FindBySlug(ctx context.Context, slug string) (*model.Property, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *PropertyRepoMock) ListPublished(ctx context.Context, limit, offset int) ([]model.Property, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Property), args.Get(1).(int64), args.Error(2)
}

func (m *PropertyRepoMock) Save(ctx context.Context, property *model.Property) error {
	return m.Called(ctx, property).Error(0)
}

// VisitRepoMock mocks the VisitRepo interface
type VisitRepoMock struct {
	mock.Mock
}

func (m *VisitRepoMock) Save(ctx context.Context, visit *model.Visit) error {
	return m.Called(ctx, visit).Error(0)
}

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

func (m *LeadRepoMock) CreateWithOutbox(ctx context.Context, lead *model.Lead, event *model.OutboxEvent) error {
	return m.Called(ctx, lead, event).Error(0)
}

func (m *LeadRepoMock) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *LeadRepoMock) UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *LeadRepoMock) List(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

// OutboxRepoMock mocks the OutboxRepo interface
type OutboxRepoMock struct {
	mock.Mock
}

func (m *OutboxRepoMock) FindUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxEvent), args.Error(1)
}

func (m *OutboxRepoMock) MarkPublished(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *OutboxRepoMock) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

// OperatorNotificationRepoMock mocks the OperatorNotificationRepo interface
type OperatorNotificationRepoMock struct {
	mock.Mock
}

func (m *OperatorNotificationRepoMock) Save(ctx context.Context, notification *model.OperatorNotification) error {
	return m.Called(ctx, notification).Error(0)
}

// SettingsRepoMock mocks the SettingsRepo interface
type SettingsRepoMock struct {
	mock.Mock
}

func (m *SettingsRepoMock) All(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// ExhaustedEventRepoMock mocks the ExhaustedEventRepo interface
type ExhaustedEventRepoMock struct {
	mock.Mock
}

func (m *ExhaustedEventRepoMock) Save(ctx context.Context, event model.ExhaustedEvent) error {
	return m.Called(ctx, event).Error(0)
}
