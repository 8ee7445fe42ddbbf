package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

type options struct {
	target      string
	slugs       string
	codes       string
	refRatio    float64
	rate        int
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	metricsPort int
	logLevel    string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "loadgen",
		Short:         "Generate referral and inquiry traffic against the public web server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("target") {
				opts.target = fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port)
			}
			if !cmd.Flags().Changed("log-level") {
				opts.logLevel = cfg.LogLevel
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.target, "target", "", "base URL of the web server (default from config)")
	f.StringVar(&opts.slugs, "slugs", "", "comma-separated published property slugs")
	f.StringVar(&opts.codes, "codes", "", "comma-separated affiliate codes used for referral clicks")
	f.Float64Var(&opts.refRatio, "ref-ratio", 0.5, "share of visitors arriving through a referral link")
	f.IntVar(&opts.rate, "rate", 20, "target visitors per second")
	f.DurationVar(&opts.duration, "duration", time.Minute, "load test duration")
	f.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per request timeout")
	f.IntVar(&opts.metricsPort, "metrics-port", 9091, "port for the Prometheus metrics endpoint")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("slugs")
	return cmd
}

func runLoad(parent context.Context, opts options) error {
	if opts.rate <= 0 || opts.concurrency <= 0 {
		return errors.New("rate and concurrency must be positive")
	}
	if err := logger.Initialize(opts.logLevel); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Log.Named("loadgen")

	gen, err := newGenerator(opts.target, splitCSV(opts.slugs), splitCSV(opts.codes), opts.refRatio, opts.timeout, log)
	if err != nil {
		return err
	}

	observer.InitMetrics(true)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(opts.metricsPort, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics server shutdown error", zap.Error(err))
		}
	}()

	log.Info("Starting load generator",
		zap.String("target", opts.target),
		zap.Int("rate_per_sec", opts.rate),
		zap.Duration("duration", opts.duration),
		zap.Int("concurrency", opts.concurrency),
		zap.Float64("ref_ratio", opts.refRatio),
	)

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(opts.concurrency, func(data interface{}) {
		defer wg.Done()
		t, ok := data.(task)
		if !ok {
			return
		}
		if err := gen.run(ctx, t); err != nil {
			log.Debug("Visitor task failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	submitted := runLoadLoop(ctx, gen, pool, &wg, opts.rate, opts.duration, log)

	log.Info("Waiting for in-flight visitors", zap.Int("submitted", submitted))
	wg.Wait()
	log.Info("Load generator finished")
	return nil
}

// runLoadLoop submits one task per tick until the duration elapses or ctx is
// done, and returns how many tasks were submitted.
func runLoadLoop(ctx context.Context, gen *generator, pool *ants.PoolWithFunc, wg *sync.WaitGroup, rate int, duration time.Duration, log *zap.Logger) int {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	timer := time.NewTimer(duration)
	defer timer.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("Load loop stopped by signal")
			return n
		case <-timer.C:
			log.Info("Load loop reached its duration")
			return n
		case <-ticker.C:
			wg.Add(1)
			if err := pool.Invoke(gen.next(n)); err != nil {
				wg.Done()
				log.Warn("Failed to submit visitor task", zap.Error(err))
				observer.IncLoadgenRequest("inquiry", "dropped")
				continue
			}
			n++
		}
	}
}

func startMetricsServer(port int, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
