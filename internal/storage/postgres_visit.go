package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// SaveVisit appends a visit record. Visits are best effort, so the retry
// window is much shorter than for other commits.
func (r *PostgresRepo) SaveVisit(ctx context.Context, visit *model.Visit) error {
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = utils.Now()
	}

	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Create(visit).Error)
	}

	start := utils.Now()
	policy := newRetryPolicy(ctx, visitRetryMaxElapsedTime)
	err := retryableOperation(ctx, policy, "SaveVisit Commit", operation)
	observer.ObserveDbOperationDuration("save", "visit", time.Since(start), err)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to save visit after retries", zap.String("url", visit.URL), zap.Error(err))
		return err
	}
	return nil
}
