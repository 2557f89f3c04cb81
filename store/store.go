// Package store holds the typed repositories over the document database.
// The user's credit counter is guarded by a compare-and-swap precondition on
// the row's update timestamp; video status updates are unconditional writes
// with no precondition. List queries paginate with (timestamp, id) cursors.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/vmatresu/vclip/metrics"
)

// ErrPreconditionFailed signals a lost compare-and-swap race; callers retry
// with backoff.
var ErrPreconditionFailed = errors.New("PreconditionFailedError")

type DB struct {
	sql *sql.DB
}

func Open(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("error opening document store connection: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{sql: db}, nil
}

// Wrap adopts an existing handle; used by tests with sqlmock.
func Wrap(db *sql.DB) *DB {
	return &DB{sql: db}
}

func (d *DB) Ping() error {
	return d.sql.Ping()
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func observe(repository, operation string, start time.Time, err error) {
	metrics.Metrics.DocumentStore.RequestDuration.
		WithLabelValues(repository, operation).
		Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DocumentStore.FailureCount.
			WithLabelValues(repository, operation).
			Inc()
	}
}
