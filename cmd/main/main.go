package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/attribution"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/dlqworker"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/events"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/healthcheck"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/lead"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/notification"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/validator"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/visit"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/web"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)
	validator.SetDefaultRegion(cfg.Notification.DefaultRegion)

	logger.Log.Info("Starting affiliate lead service",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.String("nats_url", cfg.NATS.URL),
		zap.Bool("redis", cfg.Redis.URL != ""),
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	mainCtx = logger.WithLogger(mainCtx, logger.Log)

	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(mainCtx, cfg.Redis.URL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	}

	jsClient, err := jetstream.NewClient(cfg.NATS.URL, "affiliate-lead-service")
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	affiliateRepo := storage.NewAffiliateRepoAdapter(postgresRepo)
	propertyRepo := storage.NewPropertyRepoAdapter(postgresRepo)
	visitRepo := storage.NewVisitRepoAdapter(postgresRepo)
	leadRepo := storage.NewLeadRepoAdapter(postgresRepo)
	outboxRepo := storage.NewOutboxRepoAdapter(postgresRepo)
	notificationRepo := storage.NewOperatorNotificationRepoAdapter(postgresRepo)
	settingsRepo := storage.NewSettingsRepoAdapter(postgresRepo)
	exhaustedEventRepo := storage.NewExhaustedEventRepoAdapter(postgresRepo)

	site := settings.Load(mainCtx, settingsRepo, settings.Defaults(cfg), logger.Log)

	dispatcher, err := notification.NewDispatcher(notification.DispatcherDeps{
		Leads:      leadRepo,
		Properties: propertyRepo,
		Affiliates: affiliateRepo,
		Gateway:    newGateway(cfg, redisClient),
		Tracker:    newFailureTracker(cfg, redisClient),
		Alerter:    notification.NewOperatorAlerter(newMailer(cfg), notificationRepo, site, cfg.Alert.From, logger.Log),
		Site:       site,
	}, cfg.Notification, cfg.WorkerPools.Notification, cfg.Gateway.Timeout, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notification dispatcher", zap.Error(err))
	}

	router := events.NewRouter()
	router.Register(model.V1LeadsCreated, dispatcher.HandleLeadCreated)

	consumer := events.NewLeadConsumer(jsClient, router, cfg.NATS.Leads, cfg.NATS.DLQSubject)
	if err := consumer.Setup(mainCtx); err != nil {
		logger.Log.Fatal("Failed to set up lead consumer", zap.Error(err))
	}

	dlqWorker, err := dlqworker.NewWorker(mainCtx, cfg, logger.Log, jsClient, router, exhaustedEventRepo)
	if err != nil {
		logger.Log.Fatal("Failed to initialize DLQ worker", zap.Error(err))
	}

	publisher := events.NewPublisher(jsClient)
	leadService := lead.NewService(leadRepo, propertyRepo, outboxRepo, publisher, cfg.Notification.DefaultRegion, logger.Log)
	relay := events.NewOutboxRelay(outboxRepo, publisher, cfg.Outbox, logger.Log)

	cookies, err := attribution.NewCookieStore(cfg.Attribution)
	if err != nil {
		logger.Log.Fatal("Invalid attribution cookie configuration", zap.Error(err))
	}

	visits, err := visit.NewRecorder(visitRepo, cfg.WorkerPools.Visits, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize visit recorder", zap.Error(err))
	}

	webServer, err := web.NewServer(cfg.HTTP, web.Deps{
		Resolver:    attribution.NewResolver(affiliateRepo, logger.Log),
		Cookies:     cookies,
		Properties:  propertyRepo,
		Visits:      visits,
		Leads:       leadService,
		Limiter:     web.NewRateLimiter(cfg.RateLimit.InquiryRPS, cfg.RateLimit.InquiryBurst),
		CatalogPath: cfg.Attribution.CatalogPath,
	}, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize web server", zap.Error(err))
	}

	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), version, logger.Log)
	healthServer.AddCheck("postgres", postgresRepo.Ping)
	healthServer.AddCheck("nats", func(context.Context) error {
		if !jsClient.IsConnected() {
			return fmt.Errorf("nats disconnected")
		}
		return nil
	})
	if redisClient != nil {
		healthServer.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if cfg.Metrics.Enabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
	}
	healthServer.Start()

	if err := consumer.Start(); err != nil {
		logger.Log.Fatal("Failed to start lead consumer", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	utils.SafeGo(func() {
		if err := dlqWorker.Start(mainCtx); err != nil {
			logger.Log.Error("DLQ worker failed, initiating shutdown", zap.Error(err))
			mainCancel()
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}, nil)

	if cfg.Outbox.Enabled {
		utils.SafeGo(func() { relay.Run(mainCtx) }, nil)
	}
	webServer.Start()

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))
	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", shutdownTimeout))

	// Intake stops first so nothing new reaches the dispatcher while it drains.
	stopStep("web server", func() {
		if err := webServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping web server", zap.Error(err))
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	utils.SafeGo(func() {
		defer wg.Done()
		stopStep("lead consumer", consumer.Stop)
	}, shutdownPanic("lead consumer", &wg))
	utils.SafeGo(func() {
		defer wg.Done()
		stopStep("DLQ worker", dlqWorker.Stop)
	}, shutdownPanic("DLQ worker", &wg))

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		stopStep("notification dispatcher", dispatcher.Stop)
		stopStep("visit recorder", visits.Stop)
		stopStep("health check server", func() {
			if err := healthServer.Stop(shutdownCtx); err != nil {
				logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
			}
		})
		stopStep("connections", func() {
			if err := postgresRepo.Close(shutdownCtx); err != nil {
				logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
			}
			if redisClient != nil {
				_ = redisClient.Close()
			}
			jsClient.Close()
		})
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}
	logger.Log.Info("Affiliate lead service shutdown complete")
}

func stopStep(name string, stop func()) {
	logger.Log.Info("[shutdown] Stopping " + name)
	start := time.Now()
	stop()
	logger.Log.Info("[shutdown] Stopped "+name, zap.Duration("duration", time.Since(start)))
}

func shutdownPanic(name string, wg *sync.WaitGroup) utils.RecoverFn {
	return func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping "+name,
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	}
}

func newGateway(cfg *config.Config, client *redis.Client) notification.Gateway {
	var gateway notification.Gateway
	switch cfg.Gateway.Provider {
	case "twilio":
		gateway = notification.NewTwilioGateway(cfg.Gateway.TwilioSID, cfg.Gateway.TwilioAuth, cfg.Gateway.From, cfg.Gateway.Timeout, logger.Log)
	default:
		gateway = notification.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.Token, cfg.Gateway.Timeout, logger.Log)
	}

	var store notification.DedupeStore = notification.NewMemoryDedupeStore()
	if client != nil {
		store = notification.NewRedisDedupeStore(client)
	}
	return notification.NewDedupingGateway(gateway, store, cfg.Notification.DedupeWindow, logger.Log)
}

func newFailureTracker(cfg *config.Config, client *redis.Client) notification.FailureTracker {
	n := cfg.Notification
	if client != nil {
		return notification.NewRedisFailureTracker(client, n.FailureThreshold, n.FailureWindow, n.RecentContexts)
	}
	return notification.NewMemoryFailureTracker(n.FailureThreshold, n.FailureWindow, n.RecentContexts)
}

func newMailer(cfg *config.Config) notification.Mailer {
	a := cfg.Alert
	switch {
	case a.Provider == "sendgrid" && a.SendGridKey != "":
		return notification.NewSendGridMailer(a.SendGridKey)
	case a.SMTPHost != "":
		return notification.NewSMTPMailer(a.SMTPHost, a.SMTPPort, a.SMTPUsername, a.SMTPPassword)
	default:
		logger.Log.Warn("No alert mailer configured, operator alerts are in-app only")
		return nil
	}
}
