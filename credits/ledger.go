// Package credits implements the monthly-quota ledger: reservation at
// submission time, conversion to a charge on worker success, and a refund
// when a job fails before producing anything.
package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/store"
)

const maxReserveAttempts = 5

// Ledger coordinates the user credit counter and the append-only history.
type Ledger struct {
	users *store.UserRepo
	txs   *store.TransactionRepo
	now   func() time.Time
}

func NewLedger(users *store.UserRepo, txs *store.TransactionRepo) *Ledger {
	return &Ledger{users: users, txs: txs, now: config.Clock.GetTime}
}

// Reservation hands back what Charge and Refund need later.
type Reservation struct {
	TransactionID string
	UserID        string
	Credits       int
	BalanceAfter  int
}

func reserveBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, maxReserveAttempts)
}

// Reserve atomically checks balance_used + cost <= monthly allotment and
// increments the counter, retrying lost compare-and-swap races with
// backoff. The month counter rolls on the first write of a new YYYY-MM key,
// preserving history.
func (l *Ledger) Reserve(ctx context.Context, job models.Job) (*Reservation, error) {
	cost := models.JobCost(job)
	month := models.MonthKey(l.now())

	var reservation *Reservation
	attempt := func() error {
		user, err := l.users.Get(ctx, job.UserID)
		if err != nil {
			return backoff.Permanent(err)
		}

		used := user.CreditsUsedThisMonth
		if user.CreditsMonth != month {
			used = 0
		}
		allotment := user.PlanTier.MonthlyCredits()
		if used+cost > allotment {
			metrics.Metrics.CreditReservations.WithLabelValues("insufficient").Inc()
			return backoff.Permanent(xerrors.InsufficientCredits(
				fmt.Sprintf("reserving %d credits would exceed the monthly allotment of %d", cost, allotment)))
		}

		err = l.users.SetCreditsUsed(ctx, job.UserID, month, used+cost, user.UpdatedAt)
		if errors.Is(err, store.ErrPreconditionFailed) {
			return err // retry from a fresh read
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		reservation = &Reservation{
			TransactionID: uuid.New().String(),
			UserID:        job.UserID,
			Credits:       cost,
			BalanceAfter:  used + cost,
		}
		return nil
	}

	if err := backoff.Retry(attempt, reserveBackoff()); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			metrics.Metrics.CreditReservations.WithLabelValues("contention").Inc()
			return nil, xerrors.Transient("credit reservation lost too many races", err)
		}
		return nil, err
	}

	tx := models.CreditTransaction{
		ID:           reservation.TransactionID,
		Timestamp:    l.now(),
		Operation:    operationFor(job),
		State:        models.TxReserved,
		Credits:      cost,
		Description:  fmt.Sprintf("Reserved %d credits for %d clip(s)", cost, len(job.Targets)),
		BalanceAfter: reservation.BalanceAfter,
		VideoID:      job.VideoID,
		SceneIDs:     job.Scenes(),
	}
	if err := l.txs.Append(ctx, job.UserID, tx); err != nil {
		return nil, err
	}

	metrics.Metrics.CreditReservations.WithLabelValues("reserved").Inc()
	log.Log(job.JobID, "reserved credits", "credits", cost, "balance_after", reservation.BalanceAfter)
	return reservation, nil
}

// Charge converts a reservation to a final charge referencing the output
// artifacts. Deleting clips later does not refund.
func (l *Ledger) Charge(ctx context.Context, res *Reservation, artifactKeys []string) error {
	return l.txs.SetState(ctx, res.UserID, res.TransactionID, models.TxCharged, artifactKeys)
}

// Refund reverses a reservation after a system failure that produced zero
// clips. Partial success is not refunded.
func (l *Ledger) Refund(ctx context.Context, res *Reservation) error {
	month := models.MonthKey(l.now())

	attempt := func() error {
		user, err := l.users.Get(ctx, res.UserID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if user.CreditsMonth != month {
			// The month rolled between failure and refund; the counter was
			// already reset and there is nothing to give back.
			return nil
		}
		used := user.CreditsUsedThisMonth - res.Credits
		if used < 0 {
			used = 0
		}
		err = l.users.SetCreditsUsed(ctx, res.UserID, month, used, user.UpdatedAt)
		if errors.Is(err, store.ErrPreconditionFailed) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(attempt, reserveBackoff()); err != nil {
		return err
	}
	return l.txs.SetState(ctx, res.UserID, res.TransactionID, models.TxRefunded, nil)
}

// History pages the user's ledger with an optional validated filter.
func (l *Ledger) History(ctx context.Context, userID string, limit int, cursorToken, operationFilter string) ([]models.CreditTransaction, string, error) {
	var cursor *store.Cursor
	if cursorToken != "" {
		c, err := store.DecodeCursor(cursorToken)
		if err != nil {
			return nil, "", err
		}
		cursor = &c
	}

	var operation *models.CreditOperation
	if operationFilter != "" {
		op, err := models.ParseCreditOperation(operationFilter)
		if err != nil {
			return nil, "", xerrors.InputValidation(err.Error(), nil)
		}
		operation = &op
	}

	txs, next, err := l.txs.List(ctx, userID, limit, cursor, operation)
	if err != nil {
		return nil, "", err
	}
	nextToken := ""
	if next != nil {
		nextToken = next.Encode()
	}
	return txs, nextToken, nil
}

func operationFor(job models.Job) models.CreditOperation {
	switch job.Kind {
	case models.JobKindReprocessScenes:
		return models.OpReprocessing
	case models.JobKindRenderSceneStyle:
		return models.OpSceneProcessing
	default:
		return models.OpSceneProcessing
	}
}
