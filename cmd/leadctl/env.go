package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/affiliate"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/events"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/lead"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/validator"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

type leadOps interface {
	SetStatus(ctx context.Context, leadID string, status model.LeadStatus) error
	List(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	Renotify(ctx context.Context, leadID string) error
}

type affiliateOps interface {
	Approve(ctx context.Context, affiliateID string) (*model.Affiliate, error)
	Block(ctx context.Context, affiliateID string) error
}

type outboxOps interface {
	Flush(ctx context.Context) (int, error)
}

// env holds the services a command operates on.
type env struct {
	leads      leadOps
	affiliates affiliateOps
	outbox     outboxOps
	close      func()
}

type connectFunc func(ctx context.Context, configPath string) (*env, error)

// connect wires the services against the configured database and broker.
func connect(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	validator.SetDefaultRegion(cfg.Notification.DefaultRegion)

	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, false)
	if err != nil {
		return nil, err
	}
	jsClient, err := jetstream.NewClient(cfg.NATS.URL, "leadctl")
	if err != nil {
		_ = postgresRepo.Close(ctx)
		return nil, err
	}

	publisher := events.NewPublisher(jsClient)
	outboxRepo := storage.NewOutboxRepoAdapter(postgresRepo)
	log := logger.Log.With(zap.String("component", "leadctl"))

	return &env{
		leads: lead.NewService(
			storage.NewLeadRepoAdapter(postgresRepo),
			storage.NewPropertyRepoAdapter(postgresRepo),
			outboxRepo,
			publisher,
			cfg.Notification.DefaultRegion,
			log,
		),
		affiliates: affiliate.NewService(storage.NewAffiliateRepoAdapter(postgresRepo), log),
		outbox:     events.NewOutboxRelay(outboxRepo, publisher, cfg.Outbox, log),
		close: func() {
			jsClient.Close()
			_ = postgresRepo.Close(context.Background())
			logger.Sync()
		},
	}, nil
}
