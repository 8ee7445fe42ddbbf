package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// RawPublisher publishes an encoded event under a message id.
type RawPublisher interface {
	Publish(ctx context.Context, subject, eventID string, data []byte) error
}

// OutboxRelay republishes outbox rows that were committed but never marked
// published, e.g. because NATS was down when the lead was submitted.
type OutboxRelay struct {
	repo      storage.OutboxRepo
	publisher RawPublisher
	interval  time.Duration
	batch     int
	grace     time.Duration
	log       *zap.Logger
}

func NewOutboxRelay(repo storage.OutboxRepo, publisher RawPublisher, cfg config.OutboxConfig, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		interval:  cfg.Interval,
		batch:     cfg.Batch,
		grace:     cfg.Grace,
		log:       log.Named("outbox_relay"),
	}
}

// Run flushes every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	flush := utils.WrapWithContextRecovery(func(ctx context.Context) error {
		_, err := r.Flush(ctx)
		return err
	})

	r.log.Info("Outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batch))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if err := flush(logger.WithLogger(ctx, r.log)); err != nil {
				r.log.Warn("Outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of unpublished rows older than the grace period
// and returns how many were published. A row that fails to publish is marked
// failed and left for the next pass.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	pending, err := r.repo.FindUnpublished(ctx, utils.Now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range pending {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		log := r.log.With(zap.String("event_id", event.ID), zap.String("subject", event.Subject))

		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pubErr := r.publisher.Publish(pubCtx, event.Subject, event.ID, event.Payload)
		cancel()
		if pubErr != nil {
			observer.IncOutboxRelay("failed")
			log.Warn("Outbox publish failed", zap.Int("attempts", event.Attempts+1), zap.Error(pubErr))
			if markErr := r.repo.MarkFailed(ctx, event.ID, pubErr.Error()); markErr != nil {
				log.Error("Failed to record outbox failure", zap.Error(markErr))
			}
			continue
		}

		if markErr := r.repo.MarkPublished(ctx, event.ID); markErr != nil {
			// The event is out; a later pass republishes it and JetStream drops the duplicate.
			log.Error("Failed to mark outbox event published", zap.Error(markErr))
			continue
		}
		observer.IncOutboxRelay("published")
		published++
	}

	if len(pending) > 0 {
		r.log.Info("Outbox flush complete", zap.Int("pending", len(pending)), zap.Int("published", published))
	}
	return published, nil
}
