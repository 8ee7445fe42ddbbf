package storage

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
)

func TestPostgresRepo_FindUnpublishedOutbox(t *testing.T) {
	repo, mock := newMockDB(t)
	cutoff := time.Now().Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE published_at IS NULL AND created_at < $1 ORDER BY created_at ASC LIMIT $2`)).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "subject", "payload"}).
			AddRow("evt-1", "lead-1", "v1.leads.created", []byte(`{"lead_id":"lead-1"}`)))

	events, err := repo.FindUnpublishedOutbox(testContext(t), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"lead_id":"lead-1"}`, string(events[0].Payload))
}

func TestPostgresRepo_MarkOutboxPublished(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET "published_at"=$1 WHERE id = $2`)).
		WithArgs(AnyTime{}, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkOutboxPublished(testContext(t), "evt-1"))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET "published_at"=$1 WHERE id = $2`)).
		WithArgs(AnyTime{}, "evt-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkOutboxPublished(testContext(t), "evt-2"), apperrors.ErrNotFound)
}

func TestPostgresRepo_MarkOutboxFailed(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET "attempts"=attempts + 1,"last_error"=$1 WHERE id = $2`)).
		WithArgs("nats: timeout", "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkOutboxFailed(testContext(t), "evt-1", "nats: timeout"))
}
