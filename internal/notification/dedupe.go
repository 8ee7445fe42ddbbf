package notification

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	DefaultDedupeWindow = time.Hour
	dedupeKeyPrefix     = "notify:dedupe:"
)

// DedupeStore claims a key for a window. Claim reports false when the key is
// already held.
type DedupeStore interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// DedupeKey is the claim key for one recipient role of one lead.
func DedupeKey(leadID string, role DeliveryRole) string {
	return dedupeKeyPrefix + leadID + ":" + string(role)
}

// RedisDedupeStore claims keys with SET NX EX.
type RedisDedupeStore struct {
	client redis.UniversalClient
}

func NewRedisDedupeStore(client redis.UniversalClient) *RedisDedupeStore {
	return &RedisDedupeStore{client: client}
}

func (s *RedisDedupeStore) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, utils.Now().Unix(), window).Result()
}

func (s *RedisDedupeStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// MemoryDedupeStore is a process-local DedupeStore for single instance
// deployments and tests.
type MemoryDedupeStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryDedupeStore() *MemoryDedupeStore {
	return &MemoryDedupeStore{expires: make(map[string]time.Time), now: utils.Now}
}

func (s *MemoryDedupeStore) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}
	if _, held := s.expires[key]; held {
		return false, nil
	}
	s.expires[key] = now.Add(window)
	return true, nil
}

func (s *MemoryDedupeStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expires, key)
	s.mu.Unlock()
	return nil
}

// DedupingGateway suppresses repeat sends to the same lead and role within
// the dedupe window. A suppressed send counts as delivered. A failed send
// releases its claim so a retry can go out.
type DedupingGateway struct {
	next          Gateway
	store         DedupeStore
	defaultWindow time.Duration
	logger        *zap.Logger
}

func NewDedupingGateway(next Gateway, store DedupeStore, defaultWindow time.Duration, log *zap.Logger) *DedupingGateway {
	if defaultWindow <= 0 {
		defaultWindow = DefaultDedupeWindow
	}
	return &DedupingGateway{
		next:          next,
		store:         store,
		defaultWindow: defaultWindow,
		logger:        log.Named("dedupe"),
	}
}

func (g *DedupingGateway) SendMessage(ctx context.Context, to, body string, opts SendOptions) bool {
	leadID := opts.Context[ContextLeadID]
	role := DeliveryRole(opts.Context[ContextRole])
	if leadID == "" || role == "" {
		return g.next.SendMessage(ctx, to, body, opts)
	}

	log := logger.FromContextOr(ctx, g.logger)
	key := DedupeKey(leadID, role)
	window := opts.DedupeWindow
	if window <= 0 {
		window = g.defaultWindow
	}

	claimed, err := g.store.Claim(ctx, key, window)
	if err != nil {
		log.Warn("Dedupe claim failed, sending without dedupe", zap.String("key", key), zap.Error(err))
		return g.next.SendMessage(ctx, to, body, opts)
	}
	if !claimed {
		log.Info("Duplicate notification suppressed", zap.String("lead_id", leadID), zap.String("role", string(role)))
		return true
	}

	if g.next.SendMessage(ctx, to, body, opts) {
		return true
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.store.Release(releaseCtx, key); err != nil {
		log.Warn("Failed to release dedupe claim", zap.String("key", key), zap.Error(err))
	}
	return false
}
