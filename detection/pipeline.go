package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/tracking"
)

// Config selects the providers and their knobs.
type Config struct {
	FPSSample      float64
	ModelPath      string
	Confidence     float64
	IoUThreshold   float64
	TrackMaxGap    uint32
	// CollectHistograms also emits per-frame color histograms, needed by
	// the cinematic shot detector.
	CollectHistograms bool
}

func DefaultConfig(modelPath string) Config {
	return Config{
		FPSSample:    config.DefaultFPSSample,
		ModelPath:    modelPath,
		Confidence:   config.DefaultFaceConfidence,
		IoUThreshold: config.DefaultIoUThreshold,
		TrackMaxGap:  config.DefaultTrackMaxGap,
	}
}

// Result is everything a single detection run produced.
type Result struct {
	Frames         []models.FrameResult
	Histograms     []ColorHistogram
	SampleInterval float64
}

// Pipeline runs tiered per-frame detection over a scene segment.
type Pipeline interface {
	// Run samples the segment and returns per-frame detections with
	// stable track ids. Sample i is at time start + i*interval.
	Run(ctx context.Context, jobID, segmentPath string, duration float64, width, height int) (*Result, error)
	Close()
}

// Build composes the pipeline for a tier. Each tier is strict: a provider
// that cannot initialize returns an error instead of silently degrading;
// the caller decides the fallback.
func Build(tier models.DetectionTier, cfg Config) (Pipeline, error) {
	switch tier {
	case models.TierNone:
		return &heuristicPipeline{cfg: cfg}, nil
	case models.TierBasic, models.TierSpeakerAware:
		detector, err := NewFaceDetector(cfg.ModelPath, cfg.Confidence)
		if err != nil {
			return nil, err
		}
		return &facePipeline{
			cfg:          cfg,
			detector:     detector,
			withActivity: tier == models.TierSpeakerAware,
		}, nil
	case models.TierMotionAware:
		return &motionPipeline{cfg: cfg}, nil
	default:
		return nil, xerrors.InputValidation(fmt.Sprintf("unknown detection tier %q", tier), nil)
	}
}

// heuristicPipeline emits a centered synthetic track so downstream framing
// behaves exactly like the detected case.
type heuristicPipeline struct {
	cfg Config
}

func (p *heuristicPipeline) Run(ctx context.Context, jobID, segmentPath string, duration float64, width, height int) (*Result, error) {
	interval := FrameExtractor{FPSSample: p.cfg.FPSSample}.Interval()
	samples := int(duration/interval) + 1

	center := models.NewBoundingBox(
		float64(width)/2-float64(width)/6,
		float64(height)/2-float64(height)/6,
		float64(width)/3,
		float64(height)/3,
	)

	result := &Result{SampleInterval: interval}
	for i := 0; i < samples; i++ {
		t := float64(i) * interval
		if t > duration {
			break
		}
		result.Frames = append(result.Frames, models.FrameResult{
			Time:  t,
			Space: models.CoordPixels,
			Detections: []models.Detection{{
				Time: t, BBox: center, Score: 1.0, TrackID: 0,
			}},
		})
	}
	return result, nil
}

func (p *heuristicPipeline) Close() {}

// facePipeline runs the neural face detector, the IoU tracker and,
// optionally, the mouth-activity analyzer on every sampled frame.
type facePipeline struct {
	cfg          Config
	detector     *FaceDetector
	withActivity bool
}

func (p *facePipeline) Run(ctx context.Context, jobID, segmentPath string, duration float64, width, height int) (*Result, error) {
	extractor := FrameExtractor{FPSSample: p.cfg.FPSSample}
	tracker := tracking.NewTracker(p.cfg.IoUThreshold, p.cfg.TrackMaxGap)
	var mouth *MouthActivityAnalyzer
	if p.withActivity {
		mouth = NewMouthActivityAnalyzer()
	}

	start := time.Now()
	result := &Result{SampleInterval: extractor.Interval()}
	err := extractor.Extract(ctx, segmentPath, width, height, func(index int, frame *Frame) error {
		t := float64(index) * extractor.Interval()
		if t > duration {
			return nil
		}

		detections, err := p.detector.DetectFaces(frame, t)
		if err != nil {
			return err
		}
		tracked := tracker.Update(detections)

		if mouth != nil {
			for i := range tracked {
				score := mouth.Score(frame, tracked[i])
				tracked[i].MouthActivity = &score
			}
		}

		result.Frames = append(result.Frames, models.FrameResult{
			Time:       t,
			Space:      models.CoordPixels,
			Detections: tracked,
		})
		if p.cfg.CollectHistograms {
			result.Histograms = append(result.Histograms, Histogram(frame))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tier := models.TierBasic
	if p.withActivity {
		tier = models.TierSpeakerAware
	}
	metrics.Metrics.DetectionDuration.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())
	log.Log(jobID, "face detection complete",
		"frames", len(result.Frames),
		"tier", string(tier),
		"duration", fmt.Sprintf("%.2fs", duration),
	)
	return result, nil
}

func (p *facePipeline) Close() {
	p.detector.Close()
}

// motionPipeline synthesizes tracks from frame-diff motion centers.
type motionPipeline struct {
	cfg Config
}

func (p *motionPipeline) Run(ctx context.Context, jobID, segmentPath string, duration float64, width, height int) (*Result, error) {
	extractor := FrameExtractor{FPSSample: p.cfg.FPSSample}
	motion := NewMotionDetector(extractor.Interval())
	tracker := tracking.NewTracker(p.cfg.IoUThreshold, p.cfg.TrackMaxGap)

	start := time.Now()
	result := &Result{SampleInterval: extractor.Interval()}
	err := extractor.Extract(ctx, segmentPath, width, height, func(index int, frame *Frame) error {
		t := float64(index) * extractor.Interval()
		if t > duration {
			return nil
		}
		metrics.Metrics.DetectionFrames.WithLabelValues("motion").Inc()

		tracked := tracker.Update(motion.Detect(frame, t))
		result.Frames = append(result.Frames, models.FrameResult{
			Time:       t,
			Space:      models.CoordPixels,
			Detections: tracked,
		})
		if p.cfg.CollectHistograms {
			result.Histograms = append(result.Histograms, Histogram(frame))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Metrics.DetectionDuration.WithLabelValues(string(models.TierMotionAware)).Observe(time.Since(start).Seconds())
	return result, nil
}

func (p *motionPipeline) Close() {}
