package storage

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

func newOutboxFor(t *testing.T, lead *model.Lead) *model.OutboxEvent {
	payload, err := json.Marshal(model.LeadCreatedEvent{EventID: "evt-1", LeadID: lead.ID, PropertyID: lead.PropertyID})
	require.NoError(t, err)
	return &model.OutboxEvent{
		ID:          "evt-1",
		AggregateID: lead.ID,
		Subject:     string(model.V1LeadsCreated),
		Payload:     datatypes.JSON(payload),
	}
}

func TestPostgresRepo_CreateLeadWithOutbox_Success(t *testing.T) {
	repo, mock := newMockDB(t)
	lead := model.NewLead()
	event := newOutboxFor(t, lead)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "leads"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateLeadWithOutbox(testContext(t), lead, event))
}

func TestPostgresRepo_CreateLeadWithOutbox_RollsBackOnOutboxFailure(t *testing.T) {
	repo, mock := newMockDB(t)
	lead := model.NewLead()
	event := newOutboxFor(t, lead)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "leads"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
		WillReturnError(&pgconn.PgError{Code: "23502", ColumnName: "payload"})
	mock.ExpectRollback()

	err := repo.CreateLeadWithOutbox(testContext(t), lead, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestPostgresRepo_CreateLeadWithOutbox_LeadInsertFails(t *testing.T) {
	repo, mock := newMockDB(t)
	lead := model.NewLead()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "leads"`)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "fk_leads_property"})
	mock.ExpectRollback()

	err := repo.CreateLeadWithOutbox(testContext(t), lead, newOutboxFor(t, lead))
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestPostgresRepo_FindLeadByID(t *testing.T) {
	repo, mock := newMockDB(t)
	lead := model.NewLead()
	columns := []string{"id", "affiliate_id", "property_id", "visitor_name", "visitor_phone", "message", "status", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE id = $1`)).
		WithArgs(lead.ID, 1).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			lead.ID, "aff-9", lead.PropertyID, lead.VisitorName, lead.VisitorPhone, lead.Message, "new", lead.CreatedAt, lead.UpdatedAt))

	got, err := repo.FindLeadByID(testContext(t), lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AffiliateID)
	assert.Equal(t, "aff-9", *got.AffiliateID)
	assert.Equal(t, model.LeadNew, got.Status)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE id = $1`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.FindLeadByID(testContext(t), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_UpdateLeadStatus(t *testing.T) {
	t.Run("any status may follow any other", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET "status"=$1,"updated_at"=$2 WHERE id = $3`)).
			WithArgs("new", AnyTime{}, "lead-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.UpdateLeadStatus(testContext(t), "lead-1", model.LeadNew))
	})

	t.Run("missing lead", func(t *testing.T) {
		repo, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.UpdateLeadStatus(testContext(t), "lead-x", model.LeadClosed)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPostgresRepo_ListLeads(t *testing.T) {
	repo, mock := newMockDB(t)
	columns := []string{"id", "property_id", "visitor_name", "visitor_phone", "status"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE status = $1 AND affiliate_id = $2 ORDER BY created_at DESC LIMIT $3`)).
		WithArgs("survey", "aff-1", 10).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("l1", "p1", "A", "+62812345678", "survey").
			AddRow("l2", "p2", "B", "+62812345679", "survey"))

	leads, err := repo.ListLeads(testContext(t), model.LeadFilter{Status: model.LeadSurvey, AffiliateID: "aff-1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}
