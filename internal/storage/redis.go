package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

const redisConnectMaxElapsedTime = 30 * time.Second

// NewRedisClient parses url and pings the server with retry.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectRetryInitialInterval
	b.MaxInterval = connectRetryMaxInterval
	b.MaxElapsedTime = redisConnectMaxElapsedTime

	notify := func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Retrying redis connection", zap.Error(err), zap.Duration("after", d))
	}
	ping := func() error {
		return client.Ping(ctx).Err()
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis after retries: %w", err)
	}

	logger.FromContext(ctx).Info("Connected to Redis", zap.String("addr", opts.Addr))
	return client, nil
}
