//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/events"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/lead"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/notification"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
)

type sentMessage struct {
	to, body string
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (g *recordingGateway) SendMessage(_ context.Context, to, body string, _ notification.SendOptions) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{to: to, body: body})
	return true
}

func (g *recordingGateway) sentTo(to string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, m := range g.sent {
		if m.to == to {
			n++
		}
	}
	return n
}

// PipelineSuite runs lead creation through JetStream into the notification dispatcher.
type PipelineSuite struct {
	BaseIntegrationSuite

	gateway    *recordingGateway
	dispatcher *notification.Dispatcher
	consumer   *events.LeadConsumer
	publisher  *events.Publisher
	service    *lead.Service
	relay      *events.OutboxRelay

	affiliates storage.AffiliateRepo
	properties storage.PropertyRepo
	leads      storage.LeadRepo
}

func (s *PipelineSuite) SetupSuite() {
	s.BaseIntegrationSuite.SetupSuite()
	log := zap.NewNop()

	s.affiliates = storage.NewAffiliateRepoAdapter(s.Repo)
	s.properties = storage.NewPropertyRepoAdapter(s.Repo)
	s.leads = storage.NewLeadRepoAdapter(s.Repo)
	outbox := storage.NewOutboxRepoAdapter(s.Repo)

	s.gateway = &recordingGateway{}
	site := &settings.SiteSettings{
		SiteName:               "Rumah",
		BaseURL:                "https://rumah.example",
		AffiliateLeadTemplate:  config.DefaultAffiliateLeadTemplate,
		VisitorConfirmTemplate: config.DefaultVisitorConfirmTemplate,
	}

	var err error
	s.dispatcher, err = notification.NewDispatcher(notification.DispatcherDeps{
		Leads:      s.leads,
		Properties: s.properties,
		Affiliates: s.affiliates,
		Gateway:    notification.NewDedupingGateway(s.gateway, notification.NewMemoryDedupeStore(), time.Hour, log),
		Tracker:    notification.NewMemoryFailureTracker(5, time.Hour, 10),
		Site:       site,
	}, config.NotificationConfig{DedupeWindow: time.Hour}, config.WorkerPoolConfig{PoolSize: 4, QueueSize: 16}, 5*time.Second, log)
	s.Require().NoError(err)

	router := events.NewRouter()
	router.Register(model.V1LeadsCreated, s.dispatcher.HandleLeadCreated)

	s.consumer = events.NewLeadConsumer(s.JSClient, router, config.ConsumerNatsConfig{
		MaxAge:       1,
		Stream:       "LEADS_IT",
		Consumer:     "lead-notifier-it",
		QueueGroup:   "lead-notifier-it",
		SubjectList:  []string{"v1.leads.>"},
		MaxDeliver:   3,
		NakBaseDelay: 100 * time.Millisecond,
		NakMaxDelay:  time.Second,
	}, "v1.dlq.leads")
	s.Require().NoError(s.consumer.Setup(s.Ctx))
	s.Require().NoError(s.consumer.Start())

	s.publisher = events.NewPublisher(s.JSClient)
	s.service = lead.NewService(s.leads, s.properties, outbox, s.publisher, "ID", log)
	s.relay = events.NewOutboxRelay(outbox, s.publisher, config.OutboxConfig{Interval: time.Second, Batch: 10}, log)
}

func (s *PipelineSuite) TearDownSuite() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	s.BaseIntegrationSuite.TearDownSuite()
}

func (s *PipelineSuite) seed() (*model.Affiliate, *model.Property) {
	affiliate := model.NewAffiliate()
	s.Require().NoError(s.affiliates.Save(s.Ctx, affiliate))
	property := &model.Property{Title: "Villa Seminyak", Status: model.PropertyPublished, Currency: "IDR"}
	s.Require().NoError(s.properties.Save(s.Ctx, property))
	return affiliate, property
}

func (s *PipelineSuite) TestSubmittedLeadNotifiesAffiliate() {
	affiliate, property := s.seed()

	created, err := s.service.Submit(s.Ctx, lead.SubmitInput{
		PropertyID:   property.ID,
		VisitorName:  "Budi",
		VisitorPhone: "+62 812-3456-7890",
		Message:      "Is it still available?",
	}, &affiliate.ID)
	s.Require().NoError(err)
	s.Equal("+6281234567890", created.VisitorPhone)

	s.Eventually(func() bool {
		return s.gateway.sentTo(*affiliate.Phone) == 1
	}, 15*time.Second, 100*time.Millisecond)

	var unpublished int64
	s.Require().NoError(s.DB.WithContext(s.Ctx).Model(&model.OutboxEvent{}).
		Where("published_at IS NULL").Count(&unpublished).Error)
	s.Zero(unpublished)
}

func (s *PipelineSuite) TestRelayPublishesStrandedOutboxRows() {
	affiliate, property := s.seed()

	stranded := model.NewLead(&model.Lead{PropertyID: property.ID, AffiliateID: &affiliate.ID})
	event := model.LeadCreatedEvent{
		EventID:     "2f1d3c4b-5a69-4788-9abc-def012345678",
		LeadID:      stranded.ID,
		PropertyID:  property.ID,
		AffiliateID: &affiliate.ID,
		OccurredAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	s.Require().NoError(err)
	outboxEvent := &model.OutboxEvent{
		ID:          event.EventID,
		AggregateID: stranded.ID,
		Subject:     string(model.V1LeadsCreated),
		Payload:     payload,
		CreatedAt:   event.OccurredAt.Add(-time.Minute),
	}
	s.Require().NoError(s.leads.CreateWithOutbox(s.Ctx, stranded, outboxEvent))

	published, err := s.relay.Flush(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, published)

	s.Eventually(func() bool {
		return s.gateway.sentTo(*affiliate.Phone) == 1
	}, 15*time.Second, 100*time.Millisecond)

	published, err = s.relay.Flush(s.Ctx)
	s.Require().NoError(err)
	s.Zero(published)
}
