// Package coordinator guards the lifecycle of shared on-disk source files
// across distributed workers with a Redis reference count.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
)

// SourceVideoCoordinator counts the jobs that need a source video on disk.
// Counts live on the shared store, never in memory: correctness requires
// cross-worker coordination. The TTL provides crash recovery — a dead
// worker's count expires and the next Start begins at 1. That can delete a
// still-needed file early, so callers must be prepared to re-download on
// file-not-found mid-processing.
type SourceVideoCoordinator struct {
	rdb    redis.UniversalClient
	keyTTL time.Duration
}

func New(rdb redis.UniversalClient) *SourceVideoCoordinator {
	return &SourceVideoCoordinator{rdb: rdb, keyTTL: config.SourceRefTTL}
}

func NewWithTTL(rdb redis.UniversalClient, ttl time.Duration) *SourceVideoCoordinator {
	return &SourceVideoCoordinator{rdb: rdb, keyTTL: ttl}
}

func refKey(userID, videoID string) string {
	return fmt.Sprintf("video:%s:%s:active_jobs", userID, videoID)
}

// Start atomically increments the count and refreshes the TTL, returning
// the post-increment value. The first caller (0 -> 1) is responsible for
// downloading the file.
func (c *SourceVideoCoordinator) Start(ctx context.Context, userID, videoID string) (int64, error) {
	key := refKey(userID, videoID)
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, xerrors.Transient("incrementing source refcount", err)
	}
	return incr.Val(), nil
}

// Finish atomically decrements the count. When it reaches zero the key is
// deleted and cleanup of the local file is authorized.
func (c *SourceVideoCoordinator) Finish(ctx context.Context, userID, videoID string) (cleanupAuthorized bool, err error) {
	key := refKey(userID, videoID)
	remaining, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return false, xerrors.Transient("decrementing source refcount", err)
	}
	if remaining <= 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return false, xerrors.Transient("deleting source refcount key", err)
		}
		return true, nil
	}
	return false, nil
}

// ActiveCount reads the current count, for observability.
func (c *SourceVideoCoordinator) ActiveCount(ctx context.Context, userID, videoID string) (int64, error) {
	n, err := c.rdb.Get(ctx, refKey(userID, videoID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Transient("reading source refcount", err)
	}
	return n, nil
}

// ForceCleanup is the admin override for orphaned keys from crashed workers.
func (c *SourceVideoCoordinator) ForceCleanup(ctx context.Context, userID, videoID string) error {
	log.LogNoJobID("force cleaning source refcount", "user_id", userID, "video_id", videoID)
	if err := c.rdb.Del(ctx, refKey(userID, videoID)).Err(); err != nil {
		return xerrors.Transient("force-deleting source refcount key", err)
	}
	return nil
}

// CleanupWorkDir removes a job's work directory once cleanup is authorized.
func CleanupWorkDir(workDir string) error {
	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		return nil
	}
	log.LogNoJobID("cleaning up work directory", "work_dir", workDir)
	return os.RemoveAll(workDir)
}
