package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	require.True(t, PhaseQueued.CanTransitionTo(PhaseProcessing))
	require.True(t, PhaseProcessing.CanTransitionTo(PhaseCompleted))
	require.True(t, PhaseProcessing.CanTransitionTo(PhaseFailed))
	require.True(t, PhaseProcessing.CanTransitionTo(PhaseStale))
	require.False(t, PhaseCompleted.CanTransitionTo(PhaseProcessing))
	require.False(t, PhaseFailed.CanTransitionTo(PhaseCompleted))
	require.False(t, PhaseQueued.CanTransitionTo(PhaseCompleted))
}

func TestProgressClampsAndBumpsSeq(t *testing.T) {
	now := time.Now()
	s := NewJobStatus("j", "v", "u", now)
	require.Equal(t, uint64(0), s.EventSeq)

	s.SetProgress(150, now)
	require.Equal(t, 100, s.Progress)
	require.Equal(t, uint64(1), s.EventSeq)

	s.SetProgress(-1, now)
	require.Equal(t, 0, s.Progress)
	require.Equal(t, uint64(2), s.EventSeq)
}

func TestStaleDetection(t *testing.T) {
	now := time.Now()
	s := NewJobStatus("j", "v", "u", now)
	s.Phase = PhaseProcessing

	// Within grace period, not stale.
	require.False(t, s.IsStale(now, 300, 120))

	// Old job without heartbeat is stale past the grace period.
	s.StartedAt = now.Add(-180 * time.Second)
	require.True(t, s.IsStale(now, 300, 120))

	// With a recent heartbeat, not stale.
	s.RecordHeartbeat(now)
	require.False(t, s.IsStale(now, 300, 120))

	// Heartbeat older than the threshold is stale.
	old := now.Add(-301 * time.Second)
	s.LastHeartbeat = &old
	require.True(t, s.IsStale(now, 300, 120))

	// Terminal states are never stale.
	s.Complete(now)
	require.False(t, s.IsStale(now, 300, 120))
}

func TestCompleteSetsTerminalSnapshot(t *testing.T) {
	now := time.Now()
	s := NewJobStatus("j", "v", "u", now)
	s.Phase = PhaseProcessing
	s.Complete(now)
	require.True(t, s.IsTerminal())
	require.Equal(t, 100, s.Progress)
	require.Equal(t, "Complete", s.CurrentStep)
}
