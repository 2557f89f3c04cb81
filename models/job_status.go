package models

import "time"

// JobPhase is the lifecycle state of a job.
type JobPhase string

const (
	PhaseQueued     JobPhase = "queued"
	PhaseProcessing JobPhase = "processing"
	PhaseCompleted  JobPhase = "completed"
	PhaseFailed     JobPhase = "failed"
	PhaseStale      JobPhase = "stale"
)

// IsTerminal reports whether no further updates are expected.
func (p JobPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseStale
}

// CanTransitionTo enforces the legal phase machine:
// queued -> processing -> {completed|failed|stale}.
func (p JobPhase) CanTransitionTo(next JobPhase) bool {
	if p == next {
		return true
	}
	switch p {
	case PhaseQueued:
		return next == PhaseProcessing
	case PhaseProcessing:
		return next.IsTerminal()
	default:
		return false
	}
}

// JobStatus is the mutable snapshot of an in-flight job held in the status
// cache. Mutated only by the owning executor, plus the stale detector under
// the takeover rule.
type JobStatus struct {
	JobID          string     `json:"job_id"`
	VideoID        string     `json:"video_id"`
	UserID         string     `json:"user_id"`
	Phase          JobPhase   `json:"phase"`
	Progress       int        `json:"progress"`
	ClipsCompleted uint32     `json:"clips_completed"`
	ClipsTotal     uint32     `json:"clips_total"`
	CurrentStep    string     `json:"current_step,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	EventSeq       uint64     `json:"event_seq"`
}

func NewJobStatus(jobID, videoID, userID string, now time.Time) JobStatus {
	return JobStatus{
		JobID:     jobID,
		VideoID:   videoID,
		UserID:    userID,
		Phase:     PhaseQueued,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (s *JobStatus) IsTerminal() bool {
	return s.Phase.IsTerminal()
}

// SetProgress clamps to [0,100] and bumps the event sequence.
func (s *JobStatus) SetProgress(progress int, now time.Time) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	s.Progress = progress
	s.UpdatedAt = now
	s.EventSeq++
}

func (s *JobStatus) SetStep(step string, now time.Time) {
	s.CurrentStep = step
	s.UpdatedAt = now
	s.EventSeq++
}

func (s *JobStatus) RecordHeartbeat(now time.Time) {
	hb := now
	s.LastHeartbeat = &hb
	s.UpdatedAt = now
}

func (s *JobStatus) Complete(now time.Time) {
	s.Phase = PhaseCompleted
	s.Progress = 100
	s.CurrentStep = "Complete"
	s.UpdatedAt = now
	s.EventSeq++
}

func (s *JobStatus) Fail(errorMessage string, now time.Time) {
	s.Phase = PhaseFailed
	s.ErrorMessage = errorMessage
	s.UpdatedAt = now
	s.EventSeq++
}

// StaleTimeoutMessage is the uniform text the stale detector writes.
const StaleTimeoutMessage = "Processing timed out. The worker may have crashed. Please try again."

func (s *JobStatus) MarkStale(now time.Time) {
	s.Phase = PhaseStale
	s.ErrorMessage = StaleTimeoutMessage
	s.UpdatedAt = now
	s.EventSeq++
}

// IsStale applies the detector rule: no heartbeat for longer than
// thresholdSecs, or no heartbeat ever and started more than graceSecs ago.
func (s *JobStatus) IsStale(now time.Time, thresholdSecs, graceSecs int64) bool {
	if s.IsTerminal() {
		return false
	}
	if s.LastHeartbeat != nil {
		return int64(now.Sub(*s.LastHeartbeat).Seconds()) > thresholdSecs
	}
	return int64(now.Sub(s.StartedAt).Seconds()) > graceSecs
}
