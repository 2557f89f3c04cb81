package credits

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/store"
)

func newLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	wrapped := store.Wrap(db)
	return NewLedger(store.NewUserRepo(wrapped), store.NewTransactionRepo(wrapped)), mock
}

func reserveJob(cost int) models.Job {
	// StyleBaseCost is 10; cost must be a multiple of 10 here.
	targets := make([]models.SceneTarget, 0, cost/models.StyleBaseCost)
	for i := 0; i < cost/models.StyleBaseCost; i++ {
		targets = append(targets, models.SceneTarget{SceneID: uint32(i + 1), Style: models.StyleOriginal})
	}
	return models.Job{
		Kind: models.JobKindProcessVideo, JobID: "j", UserID: "u", VideoID: "v",
		Targets: targets, TargetAspect: models.AspectPortrait,
		CropMode: models.CropModeCenter, Tier: models.TierNone,
	}
}

func userRows(month string, used int, updated time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "plan_tier", "credits_month", "credits_used", "storage_used_bytes", "updated_at"}).
		AddRow("u", "free", month, used, int64(0), updated)
}

func TestReserveInsufficientCredits(t *testing.T) {
	ledger, mock := newLedger(t)
	month := models.MonthKey(time.Now())

	// Free plan allots 200; 195 used + 10 requested exceeds it.
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows(month, 195, time.Now()))

	_, err := ledger.Reserve(context.Background(), reserveJob(10))
	require.Error(t, err)
	require.Equal(t, xerrors.KindInsufficientCredits, xerrors.KindOf(err))
}

func TestReserveExactRemainingSucceeds(t *testing.T) {
	ledger, mock := newLedger(t)
	month := models.MonthKey(time.Now())
	updated := time.Now()

	// 190 used + 10 requested lands exactly on the 200 allotment.
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows(month, 190, updated))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(month, 200, "u", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "credit_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := ledger.Reserve(context.Background(), reserveJob(10))
	require.NoError(t, err)
	require.Equal(t, 10, res.Credits)
	require.Equal(t, 200, res.BalanceAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRetriesLostRace(t *testing.T) {
	ledger, mock := newLedger(t)
	month := models.MonthKey(time.Now())
	first := time.Now().Add(-time.Minute)
	second := time.Now()

	// First CAS attempt loses the race, second wins from a fresh read.
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows(month, 0, first))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(month, 10, "u", first).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows(month, 5, second))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(month, 15, "u", second).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "credit_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := ledger.Reserve(context.Background(), reserveJob(10))
	require.NoError(t, err)
	require.Equal(t, 15, res.BalanceAfter)
}

func TestReserveRollsMonth(t *testing.T) {
	ledger, mock := newLedger(t)
	month := models.MonthKey(time.Now())
	updated := time.Now()

	// Counter belongs to a previous month; it resets before the check.
	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows("2020-01", 199, updated))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(month, 10, "u", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "credit_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := ledger.Reserve(context.Background(), reserveJob(10))
	require.NoError(t, err)
	require.Equal(t, 10, res.BalanceAfter)
}

func TestRefund(t *testing.T) {
	ledger, mock := newLedger(t)
	month := models.MonthKey(time.Now())
	updated := time.Now()

	mock.ExpectQuery(`SELECT "id", "plan_tier"`).
		WillReturnRows(userRows(month, 50, updated))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(month, 40, "u", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "credit_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := &Reservation{TransactionID: "tx-1", UserID: "u", Credits: 10, BalanceAfter: 50}
	require.NoError(t, ledger.Refund(context.Background(), res))
}

func TestHistoryValidatesFilter(t *testing.T) {
	ledger, _ := newLedger(t)
	_, _, err := ledger.History(context.Background(), "u", 10, "", "bogus_filter")
	require.Error(t, err)
	require.Equal(t, xerrors.KindInputValidation, xerrors.KindOf(err))
}
