package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// BlobMetrics is labelled by operation and key class (source, clip,
// thumbnail, raw, neural) so per-artifact-kind store behavior is visible.
type BlobMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type PipelineMetrics struct {
	Count          *prometheus.CounterVec
	Duration       *prometheus.SummaryVec
	ClipsRendered  *prometheus.CounterVec
	SourceBytes    *prometheus.SummaryVec
	SourceDuration *prometheus.SummaryVec
}

type VClipMetrics struct {
	Version prometheus.Counter

	JobsInFlight   prometheus.Gauge
	QueueDepth     prometheus.Gauge
	DLQDepth       prometheus.Gauge
	StaleRecovered prometheus.Counter

	DetectionFrames     *prometheus.CounterVec
	DetectionDuration   *prometheus.HistogramVec
	RenderEncodeSpeed   *prometheus.HistogramVec
	CreditReservations  *prometheus.CounterVec
	SourceDownloadBytes prometheus.Counter

	Blob          BlobMetrics
	DocumentStore ClientMetrics

	Pipeline PipelineMetrics
}

var pipelineLabels = []string{"style", "tier", "state"}

func NewMetrics() *VClipMetrics {
	m := &VClipMetrics{
		// Fired once on startup to let us check which version of this service we're running
		Version: promauto.NewCounter(prometheus.CounterOpts{
			Name: "version",
			Help: "Current Git SHA / Tag that's running. Incremented once on app startup.",
		}),
		JobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "A count of the jobs in flight",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Length of the job stream",
		}),
		DLQDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dlq_depth",
			Help: "Length of the dead-letter stream",
		}),
		StaleRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stale_jobs_recovered_total",
			Help: "Jobs transitioned to failed by the stale detector",
		}),
		DetectionFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_frames_total",
			Help: "Sampled frames run through a detection provider",
		}, []string{"provider"}),
		DetectionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detection_duration_seconds",
			Help:    "Time spent in detection per scene",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"tier"}),
		RenderEncodeSpeed: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "render_encode_speed",
			Help:    "ffmpeg speed multiplier observed at completion",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16},
		}, []string{"style"}),
		CreditReservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_reservations_total",
			Help: "Credit reservation attempts by outcome",
		}, []string{"outcome"}),
		SourceDownloadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "source_download_bytes_total",
			Help: "Bytes downloaded for source videos",
		}),
		Blob: BlobMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "blob_store_retry_count",
				Help: "Retries observed on the most recent blob transfer",
			}, []string{"operation", "class"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "blob_store_failure_count",
				Help: "Number of failed blob store requests",
			}, []string{"operation", "class"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "blob_store_request_duration",
				Help: "Duration of blob store requests",
			}, []string{"operation", "class"}),
		},
		DocumentStore: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "document_store_retry_count",
				Help: "Number of retries on document store requests",
			}, []string{"repository", "operation"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "document_store_failure_count",
				Help: "Number of failed document store requests",
			}, []string{"repository", "operation"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "document_store_request_duration",
				Help: "Duration of document store requests",
			}, []string{"repository", "operation"}),
		},
		Pipeline: PipelineMetrics{
			Count: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pipeline_count",
				Help: "Number of pipeline runs",
			}, pipelineLabels),
			Duration: promauto.NewSummaryVec(prometheus.SummaryOpts{
				Name: "pipeline_duration",
				Help: "Time taken per pipeline run",
			}, pipelineLabels),
			ClipsRendered: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pipeline_clips_rendered",
				Help: "Number of clips rendered",
			}, pipelineLabels),
			SourceBytes: promauto.NewSummaryVec(prometheus.SummaryOpts{
				Name: "pipeline_source_bytes",
				Help: "Size of source file",
			}, pipelineLabels),
			SourceDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
				Name: "pipeline_source_duration",
				Help: "Duration in milliseconds of source file",
			}, pipelineLabels),
		},
	}

	return m
}

var Metrics = NewMetrics()
