package event

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranquileza/leadflow/internal/model"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewStore(mock), mock
}

func TestDedupeKey_Deterministic(t *testing.T) {
	a := DedupeKey("manychat", "123", "Hola,  quiero INFO")
	b := DedupeKey("manychat", "123", "hola, quiero info")
	c := DedupeKey("manychat", "456", "hola, quiero info")

	assert.Equal(t, a, b, "normalization must collapse case and whitespace")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestStore_Insert_AssignsIDAndStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO raw_events`).
		WithArgs(pgxmock.AnyArg(), "manychat", "123", "mid.1", "abc", []byte(`{}`), model.EventStatusNew).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ev := &model.RawEvent{
		Provider:  "manychat",
		ContactID: "123",
		MessageID: "mid.1",
		DedupeKey: "abc",
		Payload:   []byte(`{}`),
	}
	inserted, err := s.Insert(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, model.EventStatusNew, ev.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert_DuplicateIsNoOp(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO raw_events`).
		WithArgs(pgxmock.AnyArg(), "manychat", "123", "", "abc", []byte(`{}`), model.EventStatusNew).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.Insert(context.Background(), &model.RawEvent{
		Provider:  "manychat",
		ContactID: "123",
		DedupeKey: "abc",
		Payload:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PatchStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE raw_events`).
		WithArgs(model.EventStatusProcessed, "", "ana@gmail.com", "ev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.PatchStatus(context.Background(), "ev-1", model.EventStatusProcessed, "", "ana@gmail.com")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IncrementAttempt(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE raw_events`).
		WithArgs("ev-1").
		WillReturnRows(pgxmock.NewRows([]string{"attempt_count"}).AddRow(3))

	count, err := s.IncrementAttempt(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkPermanentFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE raw_events`).
		WithArgs("ev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkPermanentFailed(context.Background(), "ev-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SelectReprocessable(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM raw_events`).
		WithArgs(5, 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider", "contact_id", "message_id", "dedupe_key", "payload", "status",
			"attempt_count", "permanent_failed", "last_error", "resolved_email", "created_at", "updated_at",
		}).
			AddRow("ev-1", "manychat", "123", "", "k1", []byte(`{}`), model.EventStatusFailed, 2, false, "sync failed", "", now, now).
			AddRow("ev-2", "manychat", "456", "mid.2", "k2", []byte(`{}`), model.EventStatusNew, 0, false, "", "", now, now))

	events, err := s.SelectReprocessable(context.Background(), 5, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, model.EventStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].AttemptCount)
	assert.Equal(t, "ev-2", events[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRecent(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM raw_events`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider", "contact_id", "message_id", "dedupe_key", "payload", "status",
			"attempt_count", "permanent_failed", "last_error", "resolved_email", "created_at", "updated_at",
		}).
			AddRow("ev-9", "manychat", "", "", "k9", []byte(`{}`), model.EventStatusProcessed, 1, false, "", "ana@gmail.com", now, now))

	events, err := s.ListRecent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ana@gmail.com", events[0].ResolvedEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
