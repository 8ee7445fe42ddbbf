package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	DefaultFailureWindow  = time.Hour
	DefaultRecentContexts = 10
	failureKeyPrefix      = "notify:failures"
)

// FailureTracker counts delivery failures over a rolling window. RecordFailure
// returns a Breach exactly once each time the count reaches the threshold.
type FailureTracker interface {
	RecordFailure(ctx context.Context, fc FailureContext) (*Breach, error)
}

// MemoryFailureTracker keeps a sliding window of failure times. It re-arms
// once the count inside the window drops below the threshold.
type MemoryFailureTracker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	keep      int
	times     []time.Time
	recent    []FailureContext // newest first
	alerted   bool
	now       func() time.Time
}

func NewMemoryFailureTracker(threshold int, window time.Duration, keep int) *MemoryFailureTracker {
	if window <= 0 {
		window = DefaultFailureWindow
	}
	if keep <= 0 {
		keep = DefaultRecentContexts
	}
	return &MemoryFailureTracker{threshold: threshold, window: window, keep: keep, now: utils.Now}
}

func (t *MemoryFailureTracker) RecordFailure(_ context.Context, fc FailureContext) (*Breach, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if fc.At.IsZero() {
		fc.At = now
	}

	cutoff := now.Add(-t.window)
	kept := t.times[:0]
	for _, ts := range t.times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.times = kept
	if len(t.times) < t.threshold {
		t.alerted = false
	}

	t.times = append(t.times, now)
	t.recent = append([]FailureContext{fc}, t.recent...)
	if len(t.recent) > t.keep {
		t.recent = t.recent[:t.keep]
	}

	if len(t.times) >= t.threshold && !t.alerted {
		t.alerted = true
		return &Breach{
			Count:  len(t.times),
			Window: t.window,
			Recent: append([]FailureContext(nil), t.recent...),
		}, nil
	}
	return nil, nil
}

// recordFailureScript increments the window counter, keeps the newest
// contexts and takes the alert latch once the threshold is reached.
//
// KEYS[1] counter, KEYS[2] recent list, KEYS[3] latch
// ARGV[1] ttl seconds, ARGV[2] context json, ARGV[3] keep, ARGV[4] threshold
var recordFailureScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
redis.call('LPUSH', KEYS[2], ARGV[2])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[3]) - 1)
redis.call('EXPIRE', KEYS[2], ARGV[1])
if count >= tonumber(ARGV[4]) then
  if redis.call('SET', KEYS[3], '1', 'NX', 'EX', ARGV[1]) then
    return {count, 1, redis.call('LRANGE', KEYS[2], 0, -1)}
  end
end
return {count, 0}
`)

// RedisFailureTracker counts failures in fixed windows shared by every
// instance. It re-arms at the start of the next window.
type RedisFailureTracker struct {
	client    redis.UniversalClient
	threshold int
	window    time.Duration
	keep      int
	now       func() time.Time
}

func NewRedisFailureTracker(client redis.UniversalClient, threshold int, window time.Duration, keep int) *RedisFailureTracker {
	if window <= 0 {
		window = DefaultFailureWindow
	}
	if keep <= 0 {
		keep = DefaultRecentContexts
	}
	return &RedisFailureTracker{client: client, threshold: threshold, window: window, keep: keep, now: utils.Now}
}

func (t *RedisFailureTracker) RecordFailure(ctx context.Context, fc FailureContext) (*Breach, error) {
	now := t.now()
	if fc.At.IsZero() {
		fc.At = now
	}
	encoded, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal failure context: %w", err)
	}

	windowSeconds := int64(t.window / time.Second)
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	bucket := strconv.FormatInt(now.Unix()/windowSeconds, 10)
	keys := []string{
		failureKeyPrefix + ":" + bucket + ":count",
		failureKeyPrefix + ":recent",
		failureKeyPrefix + ":" + bucket + ":alerted",
	}

	res, err := recordFailureScript.Run(ctx, t.client, keys, windowSeconds*2, string(encoded), t.keep, t.threshold).Slice()
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("record failure: unexpected script reply %v", res)
	}

	count, _ := res[0].(int64)
	latched, _ := res[1].(int64)
	if latched != 1 {
		return nil, nil
	}

	breach := &Breach{Count: int(count), Window: t.window}
	if len(res) > 2 {
		items, _ := res[2].([]interface{})
		for _, item := range items {
			raw, ok := item.(string)
			if !ok {
				continue
			}
			var recent FailureContext
			if json.Unmarshal([]byte(raw), &recent) == nil {
				breach.Recent = append(breach.Recent, recent)
			}
		}
	}
	return breach, nil
}
