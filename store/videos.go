package store

import (
	"context"
	"time"

	xerrors "github.com/vmatresu/vclip/errors"
)

// VideoStatus mirrors the persisted video state the clients poll.
type VideoStatus string

const (
	VideoStatusUploaded   VideoStatus = "uploaded"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

type VideoRepo struct {
	db *DB
}

func NewVideoRepo(db *DB) *VideoRepo {
	return &VideoRepo{db: db}
}

func (r *VideoRepo) UpdateStatus(ctx context.Context, userID, videoID string, status VideoStatus) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`UPDATE "videos" SET "status" = $1, "updated_at" = NOW()
		  WHERE "user_id" = $2 AND "id" = $3`,
		string(status), userID, videoID)
	observe("videos", "update_status", start, err)
	if err != nil {
		return xerrors.Transient("updating video status", err)
	}
	return nil
}

// SetExpectedClips records how many clips the job intends to produce, so
// progress reads can show completed/total.
func (r *VideoRepo) SetExpectedClips(ctx context.Context, userID, videoID string, expected uint32) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`UPDATE "videos" SET "clips_expected" = $1, "updated_at" = NOW()
		  WHERE "user_id" = $2 AND "id" = $3`,
		expected, userID, videoID)
	observe("videos", "set_expected_clips", start, err)
	if err != nil {
		return xerrors.Transient("setting expected clips", err)
	}
	return nil
}

func (r *VideoRepo) UpdateClipsCount(ctx context.Context, userID, videoID string, completed uint32) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`UPDATE "videos" SET "clips_completed" = $1, "updated_at" = NOW()
		  WHERE "user_id" = $2 AND "id" = $3`,
		completed, userID, videoID)
	observe("videos", "update_clips_count", start, err)
	if err != nil {
		return xerrors.Transient("updating clips count", err)
	}
	return nil
}

// Duration returns the probed source duration in seconds, if recorded.
func (r *VideoRepo) Duration(ctx context.Context, userID, videoID string) (float64, error) {
	start := time.Now()
	var duration float64
	err := r.db.sql.QueryRowContext(ctx,
		`SELECT "duration_seconds" FROM "videos" WHERE "user_id" = $1 AND "id" = $2`,
		userID, videoID).Scan(&duration)
	observe("videos", "duration", start, err)
	if err != nil {
		return 0, xerrors.Transient("reading video duration", err)
	}
	return duration, nil
}
