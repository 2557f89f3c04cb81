package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/models"
)

// StatusCache is the fast-read snapshot store plus the two side indices:
// the active-jobs set the stale detector sweeps, and the per-job heartbeat
// key the executor refreshes.
type StatusCache struct {
	rdb redis.UniversalClient
}

func NewStatusCache(rdb redis.UniversalClient) *StatusCache {
	return &StatusCache{rdb: rdb}
}

func statusKey(jobID string) string {
	return "job:status:" + jobID
}

func heartbeatKey(jobID string) string {
	return "heartbeat:" + jobID
}

// Write stores the status snapshot, refreshes its TTL and mirrors it into
// the active-jobs index. Terminal snapshots get a shorter TTL and leave the
// index.
func (c *StatusCache) Write(ctx context.Context, status models.JobStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return xerrors.InputValidation("encoding job status", err)
	}

	ttl := config.StatusTTL
	if status.IsTerminal() {
		ttl = config.StatusTerminalTTL
	}
	if err := c.rdb.Set(ctx, statusKey(status.JobID), payload, ttl).Err(); err != nil {
		return xerrors.Transient("writing job status", err)
	}

	if status.IsTerminal() {
		return c.RemoveActive(ctx, status.JobID)
	}
	if err := c.rdb.HSet(ctx, config.ActiveJobsKey, status.JobID, payload).Err(); err != nil {
		return xerrors.Transient("updating active jobs index", err)
	}
	return nil
}

// Get returns the snapshot, or NotFound after expiry.
func (c *StatusCache) Get(ctx context.Context, jobID string) (models.JobStatus, error) {
	payload, err := c.rdb.Get(ctx, statusKey(jobID)).Bytes()
	if err == redis.Nil {
		return models.JobStatus{}, xerrors.NotFound("job status not found", err)
	}
	if err != nil {
		return models.JobStatus{}, xerrors.Transient("reading job status", err)
	}
	var status models.JobStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return models.JobStatus{}, xerrors.IntegrityViolation("corrupt job status entry", err)
	}
	return status, nil
}

// ListActive returns every status in the active-jobs index.
func (c *StatusCache) ListActive(ctx context.Context) ([]models.JobStatus, error) {
	entries, err := c.rdb.HGetAll(ctx, config.ActiveJobsKey).Result()
	if err != nil {
		return nil, xerrors.Transient("listing active jobs", err)
	}
	out := make([]models.JobStatus, 0, len(entries))
	for jobID, payload := range entries {
		var status models.JobStatus
		if err := json.Unmarshal([]byte(payload), &status); err != nil {
			log.Log(jobID, "dropping corrupt active-jobs entry", "err", err)
			_ = c.RemoveActive(ctx, jobID)
			continue
		}
		out = append(out, status)
	}
	return out, nil
}

// RemoveActive drops one job from the active-jobs index.
func (c *StatusCache) RemoveActive(ctx context.Context, jobID string) error {
	if err := c.rdb.HDel(ctx, config.ActiveJobsKey, jobID).Err(); err != nil {
		return xerrors.Transient("removing from active jobs index", err)
	}
	return nil
}

// CleanupActive garbage-collects index entries whose status key is gone,
// catching jobs that slipped past every termination path. Returns the
// number removed.
func (c *StatusCache) CleanupActive(ctx context.Context) (int, error) {
	entries, err := c.rdb.HKeys(ctx, config.ActiveJobsKey).Result()
	if err != nil {
		return 0, xerrors.Transient("listing active jobs index", err)
	}
	removed := 0
	for _, jobID := range entries {
		exists, err := c.rdb.Exists(ctx, statusKey(jobID)).Result()
		if err != nil {
			return removed, xerrors.Transient("checking status key", err)
		}
		if exists == 0 {
			if err := c.RemoveActive(ctx, jobID); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// TouchHeartbeat refreshes the liveness key.
func (c *StatusCache) TouchHeartbeat(ctx context.Context, jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := c.rdb.Set(ctx, heartbeatKey(jobID), now, config.HeartbeatTTL).Err(); err != nil {
		return xerrors.Transient("touching heartbeat", err)
	}
	return nil
}

// ClearHeartbeat removes the liveness key.
func (c *StatusCache) ClearHeartbeat(ctx context.Context, jobID string) error {
	if err := c.rdb.Del(ctx, heartbeatKey(jobID)).Err(); err != nil {
		return xerrors.Transient("clearing heartbeat", err)
	}
	return nil
}
