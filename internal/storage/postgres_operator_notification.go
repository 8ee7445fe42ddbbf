package storage

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

// SaveOperatorNotification stores an in-app notification for operators.
func (r *PostgresRepo) SaveOperatorNotification(ctx context.Context, notification *model.OperatorNotification) error {
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Create(notification).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	if err := retryableOperation(ctx, commitPolicy, "SaveOperatorNotification Commit", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to save operator notification after retries",
			zap.String("kind", notification.Kind),
			zap.Error(err))
		return err
	}
	return nil
}
