package store

import (
	"context"
	"database/sql"
	"time"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// User is the per-principal document: plan, monthly credit counter and
// storage accounting.
type User struct {
	ID                   string
	PlanTier             models.PlanTier
	CreditsMonth         string // YYYY-MM bucket the counter belongs to
	CreditsUsedThisMonth int
	StorageUsedBytes     int64
	UpdatedAt            time.Time
}

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (User, error) {
	start := time.Now()
	row := r.db.sql.QueryRowContext(ctx,
		`SELECT "id", "plan_tier", "credits_month", "credits_used", "storage_used_bytes", "updated_at"
		   FROM "users" WHERE "id" = $1`, userID)

	var u User
	var plan string
	err := row.Scan(&u.ID, &plan, &u.CreditsMonth, &u.CreditsUsedThisMonth, &u.StorageUsedBytes, &u.UpdatedAt)
	observe("users", "get", start, err)
	if err == sql.ErrNoRows {
		return User{}, xerrors.NotFound("user not found", err)
	}
	if err != nil {
		return User{}, xerrors.Transient("reading user", err)
	}
	u.PlanTier = models.ParsePlanTier(plan)
	return u, nil
}

// SetCreditsUsed writes the monthly counter under a compare-and-swap on the
// row's update timestamp. A mismatch means a concurrent writer won; the
// caller retries from a fresh read.
func (r *UserRepo) SetCreditsUsed(ctx context.Context, userID, month string, used int, prevUpdatedAt time.Time) error {
	start := time.Now()
	res, err := r.db.sql.ExecContext(ctx,
		`UPDATE "users"
		    SET "credits_month" = $1, "credits_used" = $2, "updated_at" = NOW()
		  WHERE "id" = $3 AND "updated_at" = $4`,
		month, used, userID, prevUpdatedAt)
	observe("users", "set_credits_used", start, err)
	if err != nil {
		return xerrors.Transient("updating user credits", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return xerrors.Transient("reading update result", err)
	}
	if affected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// AddStorageUsed adjusts the stored-bytes accounting. Negative deltas are
// clamped at zero.
func (r *UserRepo) AddStorageUsed(ctx context.Context, userID string, deltaBytes int64) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`UPDATE "users"
		    SET "storage_used_bytes" = GREATEST("storage_used_bytes" + $1, 0), "updated_at" = NOW()
		  WHERE "id" = $2`,
		deltaBytes, userID)
	observe("users", "add_storage_used", start, err)
	if err != nil {
		return xerrors.Transient("updating storage accounting", err)
	}
	return nil
}

// PlanTier resolves the user's plan, failing safe to Free on any problem.
func (r *UserRepo) PlanTier(ctx context.Context, userID string) models.PlanTier {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return models.PlanFree
	}
	return u.PlanTier
}
