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

var affiliateColumns = []string{"id", "name", "email", "phone", "affiliate_code", "status", "created_at", "updated_at"}

func TestPostgresRepo_FindActiveAffiliateByCode_Found(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := testContext(t)
	aff := model.NewAffiliate()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "affiliates" WHERE affiliate_code = $1 AND status = $2`)).
		WithArgs("AFF123", "active", 1).
		WillReturnRows(sqlmock.NewRows(affiliateColumns).
			AddRow(aff.ID, aff.Name, aff.Email, *aff.Phone, "AFF123", "active", aff.CreatedAt, aff.UpdatedAt))

	got, err := repo.FindActiveAffiliateByCode(ctx, " aff123 ")
	require.NoError(t, err)
	assert.Equal(t, aff.ID, got.ID)
	assert.Equal(t, "AFF123", got.Code())
	assert.True(t, got.IsActive())
}

func TestPostgresRepo_FindActiveAffiliateByCode_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := testContext(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "affiliates" WHERE affiliate_code = $1 AND status = $2`)).
		WithArgs("NOPE", "active", 1).
		WillReturnRows(sqlmock.NewRows(affiliateColumns))

	got, err := repo.FindActiveAffiliateByCode(ctx, "nope")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_FindActiveAffiliateByCode_EmptyCode(t *testing.T) {
	repo, _ := newMockDB(t)

	got, err := repo.FindActiveAffiliateByCode(testContext(t), "   ")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_FindAffiliateByID(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := testContext(t)
	aff := model.NewAffiliate(&model.Affiliate{Status: model.AffiliateBlocked})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "affiliates" WHERE id = $1`)).
		WithArgs(aff.ID, 1).
		WillReturnRows(sqlmock.NewRows(affiliateColumns).
			AddRow(aff.ID, aff.Name, aff.Email, nil, nil, "blocked", aff.CreatedAt, aff.UpdatedAt))

	got, err := repo.FindAffiliateByID(ctx, aff.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.False(t, got.HasPhone())
}

func TestPostgresRepo_UpdateAffiliateStatus(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "affiliates" SET "status"=$1,"updated_at"=$2 WHERE id = $3`)).
			WithArgs("blocked", AnyTime{}, "aff-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateAffiliateStatus(testContext(t), "aff-1", model.AffiliateBlocked))
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "affiliates" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateAffiliateStatus(testContext(t), "missing", model.AffiliateActive)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPostgresRepo_AssignAffiliateCode(t *testing.T) {
	t.Run("assigns upper-cased code once", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "affiliates" SET "affiliate_code"=$1,"updated_at"=$2 WHERE id = $3 AND affiliate_code IS NULL`)).
			WithArgs("AB12CD", AnyTime{}, "aff-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.AssignAffiliateCode(testContext(t), "aff-1", "ab12cd"))
	})

	t.Run("existing code is a conflict", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "affiliates" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.AssignAffiliateCode(testContext(t), "aff-1", "AB12CD")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}
