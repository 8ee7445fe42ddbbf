package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// FindUnpublishedOutbox returns unpublished events created before createdBefore, oldest first.
func (r *PostgresRepo) FindUnpublishedOutbox(ctx context.Context, createdBefore time.Time, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("published_at IS NULL AND created_at < ?", createdBefore).
			Order("created_at ASC").
			Limit(limit).
			Find(&events)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "FindUnpublishedOutbox", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to read outbox after retries", zap.Error(err))
		return nil, err
	}
	return events, nil
}

// MarkOutboxPublished stamps an outbox event as published.
func (r *PostgresRepo) MarkOutboxPublished(ctx context.Context, id string) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"published_at": utils.Now()})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: outbox event %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	return retryableOperation(ctx, commitPolicy, "MarkOutboxPublished Commit", operation)
}

// MarkOutboxFailed records a failed publish attempt.
func (r *PostgresRepo) MarkOutboxFailed(ctx context.Context, id string, reason string) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": reason,
			})
		return checkConstraintViolation(result.Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	return retryableOperation(ctx, commitPolicy, "MarkOutboxFailed Commit", operation)
}
