package storage

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

func TestPostgresRepo_SaveVisit(t *testing.T) {
	repo, mock := newMockDB(t)
	affID := "aff-1"
	visit := model.NewVisit(&model.Visit{AffiliateID: &affID})

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "visits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, repo.SaveVisit(testContext(t), visit))
	assert.Equal(t, int64(42), visit.ID)
}

func TestPostgresRepo_SaveVisit_Error(t *testing.T) {
	repo, mock := newMockDB(t)
	visit := &model.Visit{URL: "/properties"}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "visits"`)).
		WillReturnError(errors.New("permission denied for table visits"))

	err := repo.SaveVisit(testContext(t), visit)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.False(t, visit.VisitedAt.IsZero())
}
