package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// TransactionRepo is the append-only credit ledger.
type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Append(ctx context.Context, userID string, tx models.CreditTransaction) error {
	start := time.Now()
	sceneIDs := make([]int64, len(tx.SceneIDs))
	for i, id := range tx.SceneIDs {
		sceneIDs[i] = int64(id)
	}
	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO "credit_transactions"
		   ("id", "user_id", "ts", "operation_type", "state", "credits", "description",
		    "balance_after", "video_id", "scene_ids", "artifact_keys")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, userID, tx.Timestamp, string(tx.Operation), string(tx.State), tx.Credits,
		tx.Description, tx.BalanceAfter, nullable(tx.VideoID), pq.Array(sceneIDs), pq.Array(tx.ArtifactKeys))
	observe("credit_transactions", "append", start, err)
	if err != nil {
		return xerrors.Transient("appending credit transaction", err)
	}
	return nil
}

// SetState rewrites the lifecycle state of an existing transaction, used to
// convert a reservation to a charge or a refund.
func (r *TransactionRepo) SetState(ctx context.Context, userID, txID string, state models.TransactionState, artifactKeys []string) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`UPDATE "credit_transactions"
		    SET "state" = $1, "artifact_keys" = $2
		  WHERE "user_id" = $3 AND "id" = $4`,
		string(state), pq.Array(artifactKeys), userID, txID)
	observe("credit_transactions", "set_state", start, err)
	if err != nil {
		return xerrors.Transient("updating credit transaction state", err)
	}
	return nil
}

// Cursor is an opaque (timestamp, id) pagination token.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Encode renders the cursor as its wire form.
func (c Cursor) Encode() string {
	return fmt.Sprintf("%s|%s", c.Timestamp.UTC().Format(time.RFC3339Nano), c.ID)
}

func DecodeCursor(s string) (Cursor, error) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return Cursor{}, xerrors.InputValidation("malformed cursor", nil)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, xerrors.InputValidation("malformed cursor timestamp", err)
	}
	return Cursor{Timestamp: ts, ID: parts[1]}, nil
}

// List pages through a user's ledger newest-first, optionally filtered by a
// validated operation kind. Returns the page plus the next cursor when more
// rows exist.
func (r *TransactionRepo) List(ctx context.Context, userID string, limit int, cursor *Cursor, operation *models.CreditOperation) ([]models.CreditTransaction, *Cursor, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT "id", "ts", "operation_type", "state", "credits", "description",
	                 "balance_after", COALESCE("video_id", '')
	            FROM "credit_transactions" WHERE "user_id" = $1`
	args := []interface{}{userID}

	if operation != nil {
		args = append(args, string(*operation))
		query += fmt.Sprintf(` AND "operation_type" = $%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.ID)
		query += fmt.Sprintf(` AND ("ts", "id") < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY "ts" DESC, "id" DESC LIMIT $%d`, len(args))

	start := time.Now()
	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	observe("credit_transactions", "list", start, err)
	if err != nil {
		return nil, nil, xerrors.Transient("listing credit transactions", err)
	}
	defer rows.Close()

	var out []models.CreditTransaction
	for rows.Next() {
		var tx models.CreditTransaction
		var op, state string
		if err := rows.Scan(&tx.ID, &tx.Timestamp, &op, &state, &tx.Credits,
			&tx.Description, &tx.BalanceAfter, &tx.VideoID); err != nil {
			return nil, nil, xerrors.Transient("scanning transaction row", err)
		}
		tx.Operation = models.CreditOperation(op)
		tx.State = models.TransactionState(state)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, xerrors.Transient("iterating transaction rows", err)
	}

	var next *Cursor
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = &Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return out, next, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
