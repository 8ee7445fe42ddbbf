package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/notification"
	notificationmock "gitlab.com/timkado/api/affiliate-lead-service/internal/notification/mock"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
	storagemock "gitlab.com/timkado/api/affiliate-lead-service/internal/storage/mock"
)

func testSite() *settings.SiteSettings {
	return &settings.SiteSettings{
		SiteName:               "Rumah",
		BaseURL:                "https://rumah.example",
		OperatorEmails:         []string{"ops@rumah.example"},
		AffiliateLeadTemplate:  config.DefaultAffiliateLeadTemplate,
		VisitorConfirmTemplate: config.DefaultVisitorConfirmTemplate,
	}
}

func TestDedupingGatewayOverMockGateway(t *testing.T) {
	next := new(notificationmock.GatewayMock)
	next.On("SendMessage", mock.Anything, "+628111", "hello", mock.MatchedBy(func(o notification.SendOptions) bool {
		return o.Context[notification.ContextLeadID] == "lead-1"
	})).Return(true).Once()

	gw := notification.NewDedupingGateway(next, notification.NewMemoryDedupeStore(), time.Hour, zaptest.NewLogger(t))
	opts := notification.SendOptions{Context: map[string]string{
		notification.ContextLeadID: "lead-1",
		notification.ContextRole:   string(notification.RoleAffiliate),
	}}

	assert.True(t, gw.SendMessage(context.Background(), "+628111", "hello", opts))
	assert.True(t, gw.SendMessage(context.Background(), "+628111", "hello", opts), "suppressed repeat reports delivered")
	next.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestOperatorAlerterUsesMailer(t *testing.T) {
	mailer := new(notificationmock.MailerMock)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e notification.Email) bool {
		return e.From == "alerts@rumah.example" && len(e.To) == 1 && e.To[0] == "ops@rumah.example"
	})).Return(apperrors.ErrGateway).Once()

	repo := new(storagemock.OperatorNotificationRepoMock)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*model.OperatorNotification")).Return(nil).Once()

	alerter := notification.NewOperatorAlerter(mailer, repo, testSite(), "alerts@rumah.example", zaptest.NewLogger(t))
	alerter.Alert(context.Background(), notification.Breach{Count: 3, Window: time.Hour})

	mailer.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestDispatcherAlertsThroughAlerterOnBreach(t *testing.T) {
	affiliate := model.NewAffiliate()
	property := model.NewProperty()
	lead := model.NewLead(&model.Lead{PropertyID: property.ID, AffiliateID: &affiliate.ID})

	leads := new(storagemock.LeadRepoMock)
	leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
	properties := new(storagemock.PropertyRepoMock)
	properties.On("FindByID", mock.Anything, property.ID).Return(property, nil)
	affiliates := new(storagemock.AffiliateRepoMock)
	affiliates.On("FindByID", mock.Anything, affiliate.ID).Return(affiliate, nil)

	gateway := new(notificationmock.GatewayMock)
	gateway.On("SendMessage", mock.Anything, *affiliate.Phone, mock.Anything, mock.Anything).Return(false)

	alerter := new(notificationmock.AlerterMock)
	alerter.On("Alert", mock.Anything, mock.MatchedBy(func(b notification.Breach) bool {
		return b.Count == 1 && len(b.Recent) == 1 && b.Recent[0].LeadID == lead.ID
	})).Once()

	d, err := notification.NewDispatcher(notification.DispatcherDeps{
		Leads:      leads,
		Properties: properties,
		Affiliates: affiliates,
		Gateway:    gateway,
		Tracker:    notification.NewMemoryFailureTracker(1, time.Hour, 5),
		Alerter:    alerter,
		Site:       testSite(),
	}, config.NotificationConfig{MaxAttempts: 2, RetryInitialInterval: 10 * time.Millisecond},
		config.WorkerPoolConfig{PoolSize: 1, QueueSize: 4}, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer d.Stop()

	raw, err := json.Marshal(model.LeadCreatedEvent{EventID: "evt-1", LeadID: lead.ID, PropertyID: property.ID})
	require.NoError(t, err)
	require.NoError(t, d.HandleLeadCreated(context.Background(), model.V1LeadsCreated, &model.MessageMetadata{}, raw))
	d.Wait()

	alerter.AssertExpectations(t)
	gateway.AssertNumberOfCalls(t, "SendMessage", 2)
}

func TestDispatcherRetriesThroughDedupingGateway(t *testing.T) {
	affiliate := model.NewAffiliate()
	property := model.NewProperty()
	lead := model.NewLead(&model.Lead{PropertyID: property.ID, AffiliateID: &affiliate.ID})

	leads := new(storagemock.LeadRepoMock)
	leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
	properties := new(storagemock.PropertyRepoMock)
	properties.On("FindByID", mock.Anything, property.ID).Return(property, nil)
	affiliates := new(storagemock.AffiliateRepoMock)
	affiliates.On("FindByID", mock.Anything, affiliate.ID).Return(affiliate, nil)

	next := new(notificationmock.GatewayMock)
	next.On("SendMessage", mock.Anything, *affiliate.Phone, mock.Anything, mock.Anything).Return(false).Once()
	next.On("SendMessage", mock.Anything, *affiliate.Phone, mock.Anything, mock.Anything).Return(true).Once()

	tracker := notification.NewMemoryFailureTracker(1, time.Hour, 5)
	d, err := notification.NewDispatcher(notification.DispatcherDeps{
		Leads:      leads,
		Properties: properties,
		Affiliates: affiliates,
		Gateway:    notification.NewDedupingGateway(next, notification.NewMemoryDedupeStore(), time.Hour, zaptest.NewLogger(t)),
		Tracker:    tracker,
		Site:       testSite(),
	}, config.NotificationConfig{DedupeWindow: time.Hour, MaxAttempts: 3, RetryInitialInterval: 10 * time.Millisecond},
		config.WorkerPoolConfig{PoolSize: 1, QueueSize: 4}, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer d.Stop()

	raw, err := json.Marshal(model.LeadCreatedEvent{EventID: "evt-1", LeadID: lead.ID, PropertyID: property.ID})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, d.HandleLeadCreated(context.Background(), model.V1LeadsCreated, &model.MessageMetadata{}, raw))
		d.Wait()
	}

	next.AssertExpectations(t)
	next.AssertNumberOfCalls(t, "SendMessage", 2)
}
