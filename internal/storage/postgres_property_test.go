package storage

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

func TestPostgresRepo_FindPropertyBySlug(t *testing.T) {
	repo, mock := newMockDB(t)
	p := model.NewProperty()
	columns := []string{"id", "title", "slug", "status"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "properties" WHERE slug = $1`)).
		WithArgs(p.Slug, 1).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(p.ID, p.Title, p.Slug, "published"))

	got, err := repo.FindPropertyBySlug(testContext(t), p.Slug)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "properties" WHERE slug = $1`)).
		WithArgs("gone", 1).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.FindPropertyBySlug(testContext(t), "gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_ListPublishedProperties(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "properties" WHERE status = $1`)).
		WithArgs("published").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "properties" WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`)).
		WithArgs("published", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "status"}).
			AddRow("p3", "Third", "third", "published"))

	props, total, err := repo.ListPublishedProperties(testContext(t), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, props, 1)
	assert.Equal(t, "third", props[0].Slug)
}

func TestPostgresRepo_SaveProperty_GeneratesUniqueSlug(t *testing.T) {
	repo, mock := newMockDB(t)
	p := &model.Property{ID: "prop-1", Title: "Sunny Villa", Status: model.PropertyPublished}

	slugCheck := regexp.QuoteMeta(`SELECT count(*) FROM "properties" WHERE slug = $1 AND id <> $2`)
	mock.ExpectQuery(slugCheck).WithArgs("sunny-villa", "prop-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(slugCheck).WithArgs("sunny-villa-2", "prop-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	// gorm Save updates first and inserts when nothing was updated
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "properties" SET`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "properties"`)).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveProperty(testContext(t), p))
	assert.Equal(t, "sunny-villa-2", p.Slug)
}

func TestPostgresRepo_SaveProperty_KeepsExplicitSlug(t *testing.T) {
	repo, mock := newMockDB(t)
	p := &model.Property{ID: "prop-2", Title: "Whatever", Slug: "custom-slug"}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "properties" SET`)).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveProperty(testContext(t), p))
	assert.Equal(t, "custom-slug", p.Slug)
}
