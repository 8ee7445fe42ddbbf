package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const defaultLeadListLimit = 50

// CreateLeadWithOutbox inserts a lead and its outbox event atomically.
// On any failure nothing is persisted.
func (r *PostgresRepo) CreateLeadWithOutbox(ctx context.Context, lead *model.Lead, event *model.OutboxEvent) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(lead).Error; err != nil {
				return err
			}
			if event != nil {
				if err := tx.Create(event).Error; err != nil {
					return err
				}
			}
			return nil
		})
		return checkConstraintViolation(err)
	}

	start := utils.Now()
	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	err := retryableOperation(ctx, commitPolicy, "CreateLeadWithOutbox Commit", operation)
	observer.ObserveDbOperationDuration("create", "lead", time.Since(start), err)
	if err != nil {
		loggerCtx.Error("Failed to create lead after retries",
			zap.String("lead_id", lead.ID),
			zap.String("property_id", lead.PropertyID),
			zap.Error(err))
		return err
	}
	return nil
}

// FindLeadByID finds a lead by primary key.
func (r *PostgresRepo) FindLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	var lead model.Lead
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("id = ?", id).First(&lead).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "FindLeadByID", operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find lead by ID after retries",
			zap.String("lead_id", id),
			zap.Error(err))
		return nil, err
	}
	return &lead, nil
}

// UpdateLeadStatus sets a lead status. Any valid status may follow any other.
func (r *PostgresRepo) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					loggerCtx.Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		result := tx.Model(&model.Lead{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"status": status, "updated_at": utils.Now()})
		if result.Error != nil {
			txErr = checkConstraintViolation(result.Error)
			return txErr
		}
		if result.RowsAffected == 0 {
			txErr = fmt.Errorf("%w: lead %s not found for status update", apperrors.ErrNotFound, id)
			return txErr
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit lead status update: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	if err := retryableOperation(ctx, commitPolicy, "UpdateLeadStatus Commit", operation); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			loggerCtx.Error("Failed to update lead status after retries",
				zap.String("lead_id", id),
				zap.String("status", string(status)),
				zap.Error(err))
		}
		return err
	}
	return nil
}

// ListLeads returns leads newest first.
func (r *PostgresRepo) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLeadListLimit
	}

	var leads []model.Lead
	operation := func() error {
		q := r.db.WithContext(ctx).Model(&model.Lead{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.AffiliateID != "" {
			q = q.Where("affiliate_id = ?", filter.AffiliateID)
		}
		return checkConstraintViolation(q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&leads).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "ListLeads", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to list leads after retries", zap.Error(err))
		return nil, err
	}
	return leads, nil
}
