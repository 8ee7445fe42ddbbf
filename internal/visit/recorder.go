package visit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	maxURLLength = 2048
	writeTimeout = 2 * time.Second
)

// Input describes one page view.
type Input struct {
	AffiliateID *string
	PropertyID  *string // nil for catalog views
	IP          string
	UserAgent   string
	URL         string
}

type write struct {
	ctx   context.Context
	visit *model.Visit
}

// Recorder appends a Visit for every qualifying page view. Writes run on a
// bounded pool and never hold up the page being served; when the pool is
// saturated the visit is dropped.
type Recorder struct {
	repo     storage.VisitRepo
	logger   *zap.Logger
	pool     *ants.PoolWithFunc
	inflight sync.WaitGroup
}

// NewRecorder creates a visit recorder and its write pool.
func NewRecorder(repo storage.VisitRepo, poolCfg config.WorkerPoolConfig, log *zap.Logger) (*Recorder, error) {
	r := &Recorder{repo: repo, logger: log.Named("visit_recorder")}

	poolSize := poolCfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	opts := []ants.Option{
		ants.WithNonblocking(true),
		ants.WithLogger(logger.Printf{L: r.logger.Named("ants_pool")}),
		ants.WithPanicHandler(func(p interface{}) {
			r.logger.Error("Panic recovered in visit writer", zap.Any("panic_error", p), zap.Stack("stack"))
		}),
	}
	if poolCfg.ExpiryTime > 0 {
		opts = append(opts, ants.WithExpiryDuration(poolCfg.ExpiryTime))
	}

	pool, err := ants.NewPoolWithFunc(poolSize, func(i interface{}) {
		defer r.inflight.Done()
		w, ok := i.(*write)
		if !ok {
			r.logger.Error("Invalid visit write received", zap.Any("data", i))
			return
		}
		r.save(w)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create visit pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

// Record queues one Visit for writing and returns immediately. Failures are
// logged and counted, never returned.
func (r *Recorder) Record(ctx context.Context, in Input) {
	device, browser := Classify(in.UserAgent)
	url := in.URL
	if len(url) > maxURLLength {
		url = url[:maxURLLength]
	}

	w := &write{
		ctx: context.WithoutCancel(ctx),
		visit: &model.Visit{
			AffiliateID: copyString(in.AffiliateID),
			PropertyID:  copyString(in.PropertyID),
			IPAddress:   in.IP,
			DeviceClass: device,
			Browser:     browser,
			URL:         url,
			VisitedAt:   utils.Now(),
		},
	}

	r.inflight.Add(1)
	if err := r.pool.Invoke(w); err != nil {
		r.inflight.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			observer.IncVisitRecorded("dropped")
		} else {
			observer.IncVisitRecorded("error")
		}
		logger.FromContextOr(ctx, r.logger).Warn("Visit dropped",
			zap.String("url", url),
			zap.Error(err),
		)
	}
}

func (r *Recorder) save(w *write) {
	ctx, cancel := context.WithTimeout(w.ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Save(ctx, w.visit); err != nil {
		logger.FromContextOr(ctx, r.logger).Warn("Failed to record visit",
			zap.String("url", w.visit.URL),
			zap.Error(err),
		)
		observer.IncVisitRecorded("error")
		return
	}
	observer.IncVisitRecorded("ok")
}

// Wait blocks until every queued write has finished.
func (r *Recorder) Wait() {
	r.inflight.Wait()
}

// Stop waits for queued writes and releases the pool.
func (r *Recorder) Stop() {
	r.inflight.Wait()
	r.pool.Release()
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
