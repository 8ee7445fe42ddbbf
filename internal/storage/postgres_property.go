package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const maxSlugAttempts = 20

// FindPropertyByID finds a property by primary key regardless of status.
func (r *PostgresRepo) FindPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var property model.Property
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("id = ?", id).First(&property).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "FindPropertyByID", operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find property by ID after retries",
			zap.String("property_id", id),
			zap.Error(err))
		return nil, err
	}
	return &property, nil
}

// FindPropertyBySlug finds a property by slug regardless of status.
func (r *PostgresRepo) FindPropertyBySlug(ctx context.Context, propertySlug string) (*model.Property, error) {
	var property model.Property
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("slug = ?", propertySlug).First(&property).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "FindPropertyBySlug", operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find property by slug after retries",
			zap.String("slug", propertySlug),
			zap.Error(err))
		return nil, err
	}
	return &property, nil
}

// ListPublishedProperties returns one page of published properties, newest first, and the total count.
func (r *PostgresRepo) ListPublishedProperties(ctx context.Context, limit, offset int) ([]model.Property, int64, error) {
	var (
		properties []model.Property
		total      int64
	)
	published := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Property{}).Where("status = ?", model.PropertyPublished)
	}
	operation := func() error {
		if err := published().Count(&total).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return checkConstraintViolation(
			published().Order("created_at DESC").Limit(limit).Offset(offset).Find(&properties).Error,
		)
	}

	start := utils.Now()
	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	err := retryableOperation(ctx, readPolicy, "ListPublishedProperties", operation)
	observer.ObserveDbOperationDuration("list", "property", time.Since(start), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to list published properties after retries", zap.Error(err))
		return nil, 0, err
	}
	return properties, total, nil
}

// SaveProperty inserts or updates a property, deriving a unique slug from the title
// when none is set.
func (r *PostgresRepo) SaveProperty(ctx context.Context, property *model.Property) error {
	if property.ID == "" {
		property.ID = uuid.NewString()
	}
	if property.Slug == "" {
		s, err := r.uniqueSlug(ctx, property.Title, property.ID)
		if err != nil {
			return err
		}
		property.Slug = s
	}

	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Save(property).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	err := retryableOperation(ctx, commitPolicy, "SaveProperty Commit", operation)
	if errors.Is(err, apperrors.ErrDuplicate) {
		// Lost a race on the slug; pick the next free one once.
		s, slugErr := r.uniqueSlug(ctx, property.Title, property.ID)
		if slugErr != nil {
			return slugErr
		}
		property.Slug = s
		err = retryableOperation(ctx, newRetryPolicy(ctx, commitRetryMaxElapsedTime), "SaveProperty Commit", operation)
	}
	if err != nil {
		logger.FromContext(ctx).Error("Failed to save property after retries",
			zap.String("property_id", property.ID),
			zap.String("slug", property.Slug),
			zap.Error(err))
		return err
	}
	return nil
}

// uniqueSlug returns slug(title), or slug(title)-N for the smallest N that no other property uses.
func (r *PostgresRepo) uniqueSlug(ctx context.Context, title, selfID string) (string, error) {
	root := slug.Make(title)
	if root == "" {
		root = "property"
	}

	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := root
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", root, i)
		}

		var count int64
		err := r.db.WithContext(ctx).Model(&model.Property{}).
			Where("slug = ? AND id <> ?", candidate, selfID).
			Count(&count).Error
		if err != nil {
			return "", checkConstraintViolation(err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free slug for %q", apperrors.ErrConflict, title)
}
