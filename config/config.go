package config

import "time"

var Version string

// Used so that we can generate fixed timestamps in tests
var Clock TimestampGenerator = RealTimestampGenerator{}

// Queue defaults. The dedup marker outlives most duplicate submissions but
// allows a legitimate re-run after an hour.
const (
	DefaultJobStream     = "vclip:jobs"
	DefaultConsumerGroup = "vclip:workers"
	DefaultDLQStream     = "vclip:dlq"
	DedupTTL             = time.Hour
	VisibilityTimeout    = 10 * time.Minute
	MaxDeliveryAttempts  = 3
)

// Progress plumbing defaults.
const (
	ActiveJobsKey     = "active_jobs"
	HeartbeatTTL      = 90 * time.Second
	HeartbeatInterval = 30 * time.Second
	StatusTTL         = 24 * time.Hour
	StatusTerminalTTL = time.Hour
	ProgressThrottle  = 2 * time.Second
)

// Stale detection defaults.
const (
	StaleSweepInterval = 30 * time.Second
	StaleThresholdSecs = 300
	StaleGraceSecs     = 120
)

// Source refcount keys expire eventually even if a worker dies holding one.
const SourceRefTTL = 24 * time.Hour

// Per-worker concurrency caps. All overridable from flags.
var (
	MaxConcurrentJobs      = 2
	MaxConcurrentEncodes   = 4
	MaxConcurrentScenes    = 4
	MaxConcurrentInference = 3
	MaxConcurrentDownloads = 2
)

// Detection defaults.
const (
	DefaultFPSSample      = 8.0
	DefaultIoUThreshold   = 0.3
	DefaultTrackMaxGap    = 10
	DefaultFaceConfidence = 0.45
	InferenceWidth        = 960
	InferenceHeight       = 540
	MotionCoastWindowSecs = 2.0
	MotionDiffThreshold   = 25.0
)

// Planner defaults.
const (
	DefaultSwitchThreshold        = 120.0
	DefaultMinSegmentDuration     = 1.0
	DefaultSmoothingWindowSeconds = 0.8
	DefaultShotThreshold          = 0.5
	DefaultMinShotDuration        = 0.5
	DefaultCropPaddingFraction    = 0.25
	DefaultMaxPanSpeed            = 400.0 // px/s
	DefaultDeadZoneFraction       = 0.04
)

// The maximum allowed input file size
const MaxInputFileSizeBytes = 30 * 1024 * 1024 * 1024 // 30 GiB

// Render defaults.
const (
	DefaultCRF              = 23
	DefaultPreset           = "veryfast"
	DefaultCodec            = "libx264"
	OutputDurationTolerance = 1.5 // seconds
	ThumbnailWidth          = 640
)

var DownloadOSURLRetries uint64 = 10

// ShutdownTimeout bounds the graceful drain of in-flight jobs.
var ShutdownTimeout = 10 * time.Minute
