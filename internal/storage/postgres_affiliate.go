package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// FindAffiliateByID finds an affiliate by primary key regardless of status.
func (r *PostgresRepo) FindAffiliateByID(ctx context.Context, id string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("id = ?", id).First(&affiliate).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "FindAffiliateByID", operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find affiliate by ID after retries",
			zap.String("affiliate_id", id),
			zap.Error(err))
		return nil, err
	}
	return &affiliate, nil
}

// FindActiveAffiliateByCode finds an active affiliate by its referral code.
func (r *PostgresRepo) FindActiveAffiliateByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.ErrNotFound
	}

	var affiliate model.Affiliate
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("affiliate_code = ? AND status = ?", code, model.AffiliateActive).
			First(&affiliate)
		return checkConstraintViolation(result.Error)
	}

	start := utils.Now()
	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	err := retryableOperation(ctx, readPolicy, "FindActiveAffiliateByCode", operation)
	observer.ObserveDbOperationDuration("find", "affiliate", time.Since(start), err)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find affiliate by code after retries",
			zap.String("affiliate_code", code),
			zap.Error(err))
		return nil, err
	}
	return &affiliate, nil
}

// SaveAffiliate inserts or fully updates an affiliate.
func (r *PostgresRepo) SaveAffiliate(ctx context.Context, affiliate *model.Affiliate) error {
	if affiliate.ID == "" {
		return fmt.Errorf("%w: affiliate id is required", apperrors.ErrBadRequest)
	}
	if affiliate.AffiliateCode != nil {
		code := strings.ToUpper(*affiliate.AffiliateCode)
		affiliate.AffiliateCode = &code
	}

	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Save(affiliate).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	if err := retryableOperation(ctx, commitPolicy, "SaveAffiliate Commit", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to save affiliate after retries",
			zap.String("affiliate_id", affiliate.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// UpdateAffiliateStatus changes the status of an affiliate.
func (r *PostgresRepo) UpdateAffiliateStatus(ctx context.Context, id string, status model.AffiliateStatus) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Affiliate{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"status": status, "updated_at": utils.Now()})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: affiliate %s not found for status update", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	if err := retryableOperation(ctx, commitPolicy, "UpdateAffiliateStatus Commit", operation); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			loggerCtx.Error("Failed to update affiliate status after retries",
				zap.String("affiliate_id", id),
				zap.Error(err))
		}
		return err
	}
	return nil
}

// AssignAffiliateCode sets the referral code if the affiliate has none. Codes are immutable.
func (r *PostgresRepo) AssignAffiliateCode(ctx context.Context, id, code string) error {
	code = strings.ToUpper(code)

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Affiliate{}).
			Where("id = ? AND affiliate_code IS NULL", id).
			Updates(map[string]interface{}{"affiliate_code": code, "updated_at": utils.Now()})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: affiliate %s missing or already has a code", apperrors.ErrConflict, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	return retryableOperation(ctx, commitPolicy, "AssignAffiliateCode Commit", operation)
}
