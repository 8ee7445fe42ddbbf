//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

// BaseIntegrationSuite starts Postgres and NATS once per suite.
type BaseIntegrationSuite struct {
	suite.Suite
	Ctx    context.Context
	cancel context.CancelFunc

	Postgres    testcontainers.Container
	PostgresDSN string
	NATS        testcontainers.Container
	NATSURL     string

	DB       *gorm.DB
	Repo     *storage.PostgresRepo
	JSClient *jetstream.Client
}

func (s *BaseIntegrationSuite) SetupSuite() {
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	logger.Log = zaptest.NewLogger(s.T()).Named("integration")

	var err error
	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	s.Require().NoError(err)
	s.NATS, s.NATSURL, err = startNATS(s.Ctx)
	s.Require().NoError(err)

	s.Repo, err = storage.NewPostgresRepo(s.PostgresDSN, true)
	s.Require().NoError(err)
	s.DB, err = gorm.Open(postgres.Open(s.PostgresDSN), &gorm.Config{})
	s.Require().NoError(err)
	s.JSClient, err = jetstream.NewClient(s.NATSURL, "integration-test")
	s.Require().NoError(err)
}

func (s *BaseIntegrationSuite) TearDownSuite() {
	if s.JSClient != nil {
		s.JSClient.Close()
	}
	if s.Repo != nil {
		_ = s.Repo.Close(s.Ctx)
	}
	for _, c := range []testcontainers.Container{s.NATS, s.Postgres} {
		if c != nil {
			if err := c.Terminate(s.Ctx); err != nil {
				s.T().Logf("Error terminating container: %v", err)
			}
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// SetupTest empties every table so tests do not see each other's rows.
func (s *BaseIntegrationSuite) SetupTest() {
	err := s.DB.WithContext(s.Ctx).Exec(
		"TRUNCATE affiliates, properties, visits, leads, outbox_events, operator_notifications, site_settings, exhausted_events RESTART IDENTITY CASCADE",
	).Error
	s.Require().NoError(err)
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("affiliate_leads"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return container, dsn, nil
}

func startNATS(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := tcnats.Run(ctx, "nats:2.11-alpine")
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		return container, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	return container, url, nil
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}
