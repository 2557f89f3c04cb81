// Package stale sweeps the active-jobs index for workers that went silent
// and fails their jobs so clients stop waiting on them.
package stale

import (
	"context"
	"time"

	"github.com/vmatresu/vclip/config"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/progress"
	"github.com/vmatresu/vclip/store"
)

// statusStore is the slice of the status cache the detector needs.
type statusStore interface {
	ListActive(ctx context.Context) ([]models.JobStatus, error)
	Get(ctx context.Context, jobID string) (models.JobStatus, error)
	Write(ctx context.Context, status models.JobStatus) error
	RemoveActive(ctx context.Context, jobID string) error
	ClearHeartbeat(ctx context.Context, jobID string) error
	CleanupActive(ctx context.Context) (int, error)
}

// errorPublisher publishes the client-facing error event.
type errorPublisher interface {
	Error(ctx context.Context, jobID, message string) error
}

// videoStatusUpdater reflects the failure on the persisted video record.
type videoStatusUpdater interface {
	UpdateStatus(ctx context.Context, userID, videoID string, status store.VideoStatus) error
}

// Detector periodically recovers jobs with no heartbeat. It is safe to run
// as multiple replicas: each recovery step is idempotent, and a second
// detector observing a terminal phase skips the job.
type Detector struct {
	status statusStore
	bus    errorPublisher
	videos videoStatusUpdater

	interval      time.Duration
	thresholdSecs int64
	graceSecs     int64
	now           func() time.Time
}

func NewDetector(status *progress.StatusCache, bus *progress.Bus, videos *store.VideoRepo) *Detector {
	return &Detector{
		status:        status,
		bus:           bus,
		videos:        videos,
		interval:      config.StaleSweepInterval,
		thresholdSecs: config.StaleThresholdSecs,
		graceSecs:     config.StaleGraceSecs,
		now:           time.Now,
	}
}

// Run sweeps until the context is cancelled.
func (d *Detector) Run(ctx context.Context) {
	log.LogNoJobID("starting stale job detector", "interval", d.interval.String())
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := d.CheckOnce(ctx); err != nil {
				log.LogNoJobID("stale job detection error", "err", err)
			}
		}
	}
}

// CheckOnce runs a single detection and recovery cycle and reports how many
// jobs were found stale and how many were recovered.
func (d *Detector) CheckOnce(ctx context.Context) (stale, recovered int, err error) {
	active, err := d.status.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, status := range active {
		if status.IsTerminal() {
			// Shouldn't be in the active set; remove lazily.
			_ = d.status.RemoveActive(ctx, status.JobID)
			continue
		}
		if !status.IsStale(d.now(), d.thresholdSecs, d.graceSecs) {
			continue
		}
		stale++

		log.Log(status.JobID, "detected stale job (no heartbeat)",
			"video_id", status.VideoID,
			"started_at", status.StartedAt.Format(time.RFC3339),
		)
		if err := d.recover(ctx, status); err != nil {
			log.LogError(status.JobID, "failed to recover stale job", err)
			continue
		}
		recovered++
		metrics.Metrics.StaleRecovered.Inc()
	}

	// Purge index entries whose job vanished without emitting Done.
	if cleaned, err := d.status.CleanupActive(ctx); err == nil && cleaned > 0 {
		log.LogNoJobID("cleaned up orphaned active job entries", "count", cleaned)
	}

	return stale, recovered, nil
}

func (d *Detector) recover(ctx context.Context, status models.JobStatus) error {
	// Re-read and re-check under the takeover rule: a racing detector or a
	// resurrected worker may have finished the job already.
	current, err := d.status.Get(ctx, status.JobID)
	if err == nil {
		status = current
	}
	if status.IsTerminal() {
		return d.status.RemoveActive(ctx, status.JobID)
	}

	status.MarkStale(d.now())
	if err := d.status.Write(ctx, status); err != nil {
		return err
	}

	// Notify any connected clients, best effort.
	if err := d.bus.Error(ctx, status.JobID, models.StaleTimeoutMessage); err != nil {
		log.Log(status.JobID, "could not publish stale error event", "err", err)
	}

	// Reflect the failure on the persisted video record. Not fatal if it
	// fails: the status cache is updated and the client will see it there.
	if err := d.videos.UpdateStatus(ctx, status.UserID, status.VideoID, store.VideoStatusFailed); err != nil {
		log.LogError(status.JobID, "failed to update persisted video status", err)
	}

	if err := d.status.RemoveActive(ctx, status.JobID); err != nil {
		return err
	}
	return d.status.ClearHeartbeat(ctx, status.JobID)
}
