// Package planner transforms scored detections into a smooth render plan:
// layout spans, crop-window keyframes, smoothing, shot handling and the
// cinematic trajectory.
package planner

import (
	"github.com/vmatresu/vclip/config"
	"github.com/vmatresu/vclip/detection"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// Config carries every planner knob with sane defaults.
type Config struct {
	SwitchThreshold        float64
	MinSegmentDuration     float64
	SmoothingWindowSeconds float64
	CropPaddingFraction    float64
	ShotThreshold          float64
	MinShotDuration        float64
	Trajectory             TrajectoryConfig
}

func DefaultPlannerConfig() Config {
	return Config{
		SwitchThreshold:        config.DefaultSwitchThreshold,
		MinSegmentDuration:     config.DefaultMinSegmentDuration,
		SmoothingWindowSeconds: config.DefaultSmoothingWindowSeconds,
		CropPaddingFraction:    config.DefaultCropPaddingFraction,
		ShotThreshold:          config.DefaultShotThreshold,
		MinShotDuration:        config.DefaultMinShotDuration,
		Trajectory:             DefaultTrajectoryConfig(),
	}
}

// Plan is the full render plan for one scene: layout spans partitioning the
// timeline, a dense primary camera path, and a secondary path when any span
// splits.
type Plan struct {
	Spans     []models.LayoutSpan
	Primary   []models.CameraKeyframe
	Secondary []models.CameraKeyframe
	Shots     []models.ShotBoundary
}

// HasSplit reports whether any span renders the stacked layout.
func (p Plan) HasSplit() bool {
	for _, span := range p.Spans {
		if span.Layout.Split {
			return true
		}
	}
	return false
}

// Planner assembles the full plan for a scene.
type Planner struct {
	cfg Config
}

func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Smoothing mode by style: static styles lock, intelligent styles track.
func smoothingFor(style models.Style) SmoothingMode {
	switch style {
	case models.StyleIntelligent, models.StyleIntelligentSpeaker,
		models.StyleIntelligentSplit, models.StyleIntelligentSplitActivity,
		models.StyleIntelligentSplitMotion:
		return SmoothingTracking
	case models.StyleCinematic:
		return SmoothingTracking
	default:
		return SmoothingStatic
	}
}

// PlanScene builds spans and camera paths for one (scene, style).
func (p *Planner) PlanScene(style models.Style, timeline []models.TimelineFrame, duration float64, frameWidth, frameHeight int, sampleInterval float64, aspect models.AspectRatio) (*Plan, error) {
	if len(timeline) == 0 {
		return nil, xerrors.New(xerrors.KindNotFound, "planning requires a scored timeline", nil)
	}

	layout := LayoutPlanner{MinSegmentDuration: p.cfg.MinSegmentDuration}
	spans, err := layout.Plan(timeline, duration)
	if err != nil {
		return nil, err
	}

	// Non-split intelligent styles always render the full layout.
	if !style.IsSplit() {
		primary := spans[0].Layout.Primary
		spans = []models.LayoutSpan{{Start: 0, End: duration, Layout: models.FullLayout(primary)}}
	}

	cropAspect := aspect.Ratio()
	splitAspect := cropAspect * 2 // each split panel is half the output height

	synth := CropSynthesizer{
		FrameWidth:      float64(frameWidth),
		FrameHeight:     float64(frameHeight),
		PaddingFraction: p.cfg.CropPaddingFraction,
		Aspect:          cropAspect,
	}
	if p.hasSplit(spans) {
		synth.Aspect = splitAspect
	}

	primaryTrack := spans[0].Layout.Primary
	primary := synth.Keyframes(timeline, primaryTrack)
	if len(primary) == 0 {
		return nil, xerrors.New(xerrors.KindNotFound, "no camera keyframes could be synthesized", nil)
	}
	primary = p.smooth(style, primary, sampleInterval)

	plan := &Plan{Spans: spans, Primary: primary}

	if p.hasSplit(spans) {
		secondaryTrack := p.secondaryTrack(spans)
		secondary := synth.Keyframes(timeline, secondaryTrack)
		plan.Secondary = p.smooth(style, secondary, sampleInterval)
	}
	return plan, nil
}

// PlanCinematic adds shot detection and the premium trajectory on top of
// the base plan.
func (p *Planner) PlanCinematic(timeline []models.TimelineFrame, histograms []detection.ColorHistogram, duration float64, frameWidth, frameHeight int, sampleInterval float64, aspect models.AspectRatio) (*Plan, error) {
	base, err := p.PlanScene(models.StyleCinematic, timeline, duration, frameWidth, frameHeight, sampleInterval, aspect)
	if err != nil {
		return nil, err
	}

	shotDetector := ShotDetector{Threshold: p.cfg.ShotThreshold, MinShotDuration: p.cfg.MinShotDuration}
	base.Shots = shotDetector.Detect(histograms, sampleInterval, duration)

	consolidated := ConsolidateSegments(base.Primary, p.cfg.SwitchThreshold, p.cfg.MinSegmentDuration)

	counts := make([]int, len(timeline))
	for i, frame := range timeline {
		counts[i] = len(frame.Detections)
	}

	trajectory := NewCinematicTrajectory(p.cfg.Trajectory, float64(frameWidth), float64(frameHeight))
	base.Primary = trajectory.Plan(consolidated, counts, base.Shots)
	return base, nil
}

func (p *Planner) smooth(style models.Style, keyframes []models.CameraKeyframe, sampleInterval float64) []models.CameraKeyframe {
	sampleRate := 1.0 / sampleInterval
	var smoothed []models.CameraKeyframe
	switch smoothingFor(style) {
	case SmoothingStatic:
		smoothed = SmoothStatic(keyframes)
	case SmoothingLight:
		smoothed = SmoothLight(keyframes)
	default:
		smoothed = SmoothTracking(keyframes, p.cfg.SmoothingWindowSeconds, sampleRate)
	}
	return ConsolidateSegments(smoothed, p.cfg.SwitchThreshold, p.cfg.MinSegmentDuration)
}

func (p *Planner) hasSplit(spans []models.LayoutSpan) bool {
	for _, s := range spans {
		if s.Layout.Split {
			return true
		}
	}
	return false
}

func (p *Planner) secondaryTrack(spans []models.LayoutSpan) uint32 {
	for _, s := range spans {
		if s.Layout.Split {
			return s.Layout.Secondary
		}
	}
	return 0
}
