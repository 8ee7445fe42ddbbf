package storage

import (
	"context"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// AllSettings returns every site setting as a key/value map.
// Callers are expected to fall back to defaults on error, so it does not retry.
func (r *PostgresRepo) AllSettings(ctx context.Context) (map[string]string, error) {
	var rows []model.SiteSetting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, checkConstraintViolation(err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}
