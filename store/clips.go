package store

import (
	"context"
	"time"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// ClipStatus tracks a single rendered clip's persistence state.
type ClipStatus string

const (
	ClipStatusProcessing ClipStatus = "processing"
	ClipStatusCompleted  ClipStatus = "completed"
	ClipStatusFailed     ClipStatus = "failed"
)

// Clip is the persisted metadata for one rendered output. The blob key is
// the primary identity: deterministic keys make re-renders idempotent.
type Clip struct {
	Key          string
	UserID       string
	VideoID      string
	SceneID      uint32
	Style        models.Style
	Status       ClipStatus
	SizeBytes    int64
	DurationSecs float64
	ThumbnailKey string
	ProcessingMs int64
	UpdatedAt    time.Time
}

type ClipRepo struct {
	db *DB
}

func NewClipRepo(db *DB) *ClipRepo {
	return &ClipRepo{db: db}
}

// Upsert writes the clip row keyed by its blob key. Last-writer-wins is
// acceptable: two workers racing on the same deterministic key carry
// equivalent content.
func (r *ClipRepo) Upsert(ctx context.Context, clip Clip) error {
	start := time.Now()
	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO "clips" ("key", "user_id", "video_id", "scene_id", "style", "status",
		                      "size_bytes", "duration_seconds", "thumbnail_key", "processing_ms", "updated_at")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 ON CONFLICT ("key") DO UPDATE SET
		   "status" = EXCLUDED."status",
		   "size_bytes" = EXCLUDED."size_bytes",
		   "duration_seconds" = EXCLUDED."duration_seconds",
		   "thumbnail_key" = EXCLUDED."thumbnail_key",
		   "processing_ms" = EXCLUDED."processing_ms",
		   "updated_at" = NOW()`,
		clip.Key, clip.UserID, clip.VideoID, clip.SceneID, string(clip.Style), string(clip.Status),
		clip.SizeBytes, clip.DurationSecs, clip.ThumbnailKey, clip.ProcessingMs)
	observe("clips", "upsert", start, err)
	if err != nil {
		return xerrors.Transient("upserting clip", err)
	}
	return nil
}

// ListCompletedKeys returns the blob keys of all completed clips for a
// video. The executor uses this for skip-on-resume.
func (r *ClipRepo) ListCompletedKeys(ctx context.Context, userID, videoID string) (map[string]bool, error) {
	start := time.Now()
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT "key" FROM "clips"
		  WHERE "user_id" = $1 AND "video_id" = $2 AND "status" = $3`,
		userID, videoID, string(ClipStatusCompleted))
	observe("clips", "list_completed", start, err)
	if err != nil {
		return nil, xerrors.Transient("listing completed clips", err)
	}
	defer rows.Close()

	keys := map[string]bool{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, xerrors.Transient("scanning clip row", err)
		}
		keys[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Transient("iterating clip rows", err)
	}
	return keys, nil
}
