package stale

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/store"
)

type fakeStatusStore struct {
	statuses map[string]models.JobStatus
	active   map[string]bool
	cleared  []string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		statuses: map[string]models.JobStatus{},
		active:   map[string]bool{},
	}
}

func (f *fakeStatusStore) put(s models.JobStatus) {
	f.statuses[s.JobID] = s
	if !s.IsTerminal() {
		f.active[s.JobID] = true
	}
}

func (f *fakeStatusStore) ListActive(ctx context.Context) ([]models.JobStatus, error) {
	var out []models.JobStatus
	for jobID := range f.active {
		out = append(out, f.statuses[jobID])
	}
	return out, nil
}

func (f *fakeStatusStore) Get(ctx context.Context, jobID string) (models.JobStatus, error) {
	return f.statuses[jobID], nil
}

func (f *fakeStatusStore) Write(ctx context.Context, status models.JobStatus) error {
	f.statuses[status.JobID] = status
	if status.IsTerminal() {
		delete(f.active, status.JobID)
	}
	return nil
}

func (f *fakeStatusStore) RemoveActive(ctx context.Context, jobID string) error {
	delete(f.active, jobID)
	return nil
}

func (f *fakeStatusStore) ClearHeartbeat(ctx context.Context, jobID string) error {
	f.cleared = append(f.cleared, jobID)
	return nil
}

func (f *fakeStatusStore) CleanupActive(ctx context.Context) (int, error) {
	removed := 0
	for jobID := range f.active {
		if _, ok := f.statuses[jobID]; !ok {
			delete(f.active, jobID)
			removed++
		}
	}
	return removed, nil
}

type fakeBus struct {
	errors []string
}

func (f *fakeBus) Error(ctx context.Context, jobID, message string) error {
	f.errors = append(f.errors, jobID+": "+message)
	return nil
}

type fakeVideos struct {
	updates map[string]store.VideoStatus
}

func (f *fakeVideos) UpdateStatus(ctx context.Context, userID, videoID string, status store.VideoStatus) error {
	if f.updates == nil {
		f.updates = map[string]store.VideoStatus{}
	}
	f.updates[videoID] = status
	return nil
}

func newTestDetector(status *fakeStatusStore, bus *fakeBus, videos *fakeVideos, now time.Time) *Detector {
	return &Detector{
		status:        status,
		bus:           bus,
		videos:        videos,
		interval:      time.Second,
		thresholdSecs: 300,
		graceSecs:     120,
		now:           func() time.Time { return now },
	}
}

func TestSweepFailsJobWithoutHeartbeat(t *testing.T) {
	now := time.Now()
	status := newFakeStatusStore()
	bus := &fakeBus{}
	videos := &fakeVideos{}

	// Started 180s ago, never heartbeat; grace period is 120s.
	s := models.NewJobStatus("job-1", "video-1", "user-1", now.Add(-180*time.Second))
	s.Phase = models.PhaseProcessing
	status.put(s)

	d := newTestDetector(status, bus, videos, now)
	staleCount, recovered, err := d.CheckOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, staleCount)
	require.Equal(t, 1, recovered)

	got := status.statuses["job-1"]
	require.Equal(t, models.PhaseStale, got.Phase)
	require.Equal(t, models.StaleTimeoutMessage, got.ErrorMessage)
	require.False(t, status.active["job-1"], "recovered job leaves the active index")
	require.Contains(t, status.cleared, "job-1")
	require.Len(t, bus.errors, 1)
	require.Equal(t, store.VideoStatusFailed, videos.updates["video-1"])
}

func TestSweepSkipsHealthyAndTerminalJobs(t *testing.T) {
	now := time.Now()
	status := newFakeStatusStore()
	bus := &fakeBus{}
	videos := &fakeVideos{}

	healthy := models.NewJobStatus("healthy", "v1", "u", now.Add(-time.Hour))
	healthy.Phase = models.PhaseProcessing
	healthy.RecordHeartbeat(now.Add(-10 * time.Second))
	status.put(healthy)

	// A terminal job lingering in the index is removed lazily, not recovered.
	done := models.NewJobStatus("done", "v2", "u", now.Add(-time.Hour))
	done.Complete(now)
	status.statuses["done"] = done
	status.active["done"] = true

	d := newTestDetector(status, bus, videos, now)
	staleCount, recovered, err := d.CheckOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, staleCount)
	require.Zero(t, recovered)

	require.True(t, status.active["healthy"])
	require.False(t, status.active["done"])
	require.Empty(t, bus.errors)
}

func TestSweepStaleHeartbeat(t *testing.T) {
	now := time.Now()
	status := newFakeStatusStore()
	bus := &fakeBus{}
	videos := &fakeVideos{}

	s := models.NewJobStatus("job-hb", "v", "u", now.Add(-time.Hour))
	s.Phase = models.PhaseProcessing
	s.RecordHeartbeat(now.Add(-301 * time.Second))
	status.put(s)

	d := newTestDetector(status, bus, videos, now)
	staleCount, recovered, err := d.CheckOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, staleCount)
	require.Equal(t, 1, recovered)
	require.Equal(t, models.PhaseStale, status.statuses["job-hb"].Phase)
}

// A job another replica already marked stale is terminal when listed, so
// the sweep drops it from the index without recovering it again.
func TestRecoveryIsIdempotentAcrossReplicas(t *testing.T) {
	now := time.Now()
	status := newFakeStatusStore()
	bus := &fakeBus{}
	videos := &fakeVideos{}

	s := models.NewJobStatus("job-race", "v", "u", now.Add(-time.Hour))
	s.Phase = models.PhaseProcessing
	status.put(s)

	// The stored status turned terminal after it was indexed, as if a peer
	// replica won the race; the fake lists the stored status.
	terminal := s
	terminal.MarkStale(now)
	status.statuses["job-race"] = terminal

	d := newTestDetector(status, bus, videos, now)
	_, recovered, err := d.CheckOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, recovered, "terminal jobs must not be re-recovered")
	require.Empty(t, bus.errors)
	require.False(t, status.active["job-race"])
}

func TestCleanupActivePurgesOrphanEntries(t *testing.T) {
	now := time.Now()
	status := newFakeStatusStore()
	status.active["vanished"] = true // index entry with no status key

	d := newTestDetector(status, &fakeBus{}, &fakeVideos{}, now)
	_, _, err := d.CheckOnce(context.Background())
	require.NoError(t, err)
	require.False(t, status.active["vanished"])
}
