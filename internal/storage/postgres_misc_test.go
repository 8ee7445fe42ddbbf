package storage

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

func TestPostgresRepo_AllSettings(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "site_settings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow(model.SettingSiteName, "Rumah Kita", time.Now()).
			AddRow(model.SettingBaseURL, "https://rumah.example", time.Now()))

	settings, err := repo.AllSettings(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "Rumah Kita", settings[model.SettingSiteName])
	assert.Equal(t, "https://rumah.example", settings[model.SettingBaseURL])
}

func TestPostgresRepo_AllSettings_MissingTable(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "site_settings"`)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "site_settings" does not exist`})

	_, err := repo.AllSettings(testContext(t))
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}

func TestPostgresRepo_SaveOperatorNotification(t *testing.T) {
	repo, mock := newMockDB(t)
	n := &model.OperatorNotification{
		Kind:    model.NotificationKindDeliveryFailures,
		Title:   "WhatsApp delivery failures",
		Body:    "5 failures in the last hour",
		Payload: datatypes.JSON(`{"count":5}`),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "operator_notifications"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	require.NoError(t, repo.SaveOperatorNotification(testContext(t), n))
	assert.Equal(t, int64(9), n.ID)
}

func TestPostgresRepo_SaveExhaustedEvent(t *testing.T) {
	repo, mock := newMockDB(t)
	dlqPayload, _ := json.Marshal(model.DLQPayload{SourceSubject: "v1.leads.created", Error: "lead missing"})

	event := model.ExhaustedEvent{
		SourceSubject:   "v1.leads.created",
		LastError:       "lead missing",
		RetryCount:      5,
		EventTimestamp:  time.Now(),
		DLQPayload:      datatypes.JSON(dlqPayload),
		OriginalPayload: datatypes.JSON(`{"lead_id":"l1"}`),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exhausted_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	assert.NoError(t, repo.SaveExhaustedEvent(testContext(t), event))
}

func TestPostgresRepo_SaveExhaustedEvent_Error(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exhausted_events"`)).
		WillReturnError(&pgconn.PgError{Code: "23502", ColumnName: "dlq_payload"})

	err := repo.SaveExhaustedEvent(testContext(t), model.ExhaustedEvent{SourceSubject: "v1.leads.created"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}
