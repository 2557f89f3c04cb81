package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Wrap(db), mock
}

func TestUserGet(t *testing.T) {
	db, mock := newMockDB(t)
	updated := time.Now()
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_tier", "credits_month", "credits_used", "storage_used_bytes", "updated_at"}).
			AddRow("user-1", "pro", "2026-08", 195, int64(1000), updated))

	u, err := NewUserRepo(db).Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, models.PlanPro, u.PlanTier)
	require.Equal(t, 195, u.CreditsUsedThisMonth)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_tier", "credits_month", "credits_used", "storage_used_bytes", "updated_at"}))

	_, err := NewUserRepo(db).Get(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, xerrors.IsNotFound(err))
}

func TestSetCreditsUsedCAS(t *testing.T) {
	db, mock := newMockDB(t)
	prev := time.Now()

	mock.ExpectExec(`UPDATE "users"`).
		WithArgs("2026-08", 200, "user-1", prev).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewUserRepo(db).SetCreditsUsed(context.Background(), "user-1", "2026-08", 200, prev))

	// Lost race: zero rows affected surfaces the precondition failure.
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs("2026-08", 200, "user-1", prev).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := NewUserRepo(db).SetCreditsUsed(context.Background(), "user-1", "2026-08", 200, prev)
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestClipListCompletedKeys(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT "key" FROM "clips"`).
		WithArgs("u", "v", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).
			AddRow("u/v/clips/scene_001_original_9x16.mp4").
			AddRow("u/v/clips/scene_002_split_9x16.mp4"))

	keys, err := NewClipRepo(db).ListCompletedKeys(context.Background(), "u", "v")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.True(t, keys["u/v/clips/scene_001_original_9x16.mp4"])
}

func TestTransactionListPagination(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "ts", "operation_type", "state", "credits", "description", "balance_after", "video_id"})
	for i := 0; i < 3; i++ {
		rows.AddRow(string(rune('a'+i)), now.Add(-time.Duration(i)*time.Minute), "scene_processing", "charged", 10, "d", 100-10*i, "v")
	}
	mock.ExpectQuery(`SELECT "id", "ts"`).
		WithArgs("u", 3).
		WillReturnRows(rows)

	txs, next, err := NewTransactionRepo(db).List(context.Background(), "u", 2, nil, nil)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.NotNil(t, next, "a third row means another page exists")
	require.Equal(t, txs[1].ID, next.ID)
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), ID: "tx-9"}
	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.True(t, c.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, c.ID, decoded.ID)

	_, err = DecodeCursor("garbage")
	require.Error(t, err)
}
