package tracking

import (
	"math"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// ScorerConfig weights the two activity signals.
type ScorerConfig struct {
	WeightMotion     float64
	WeightSizeChange float64
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{WeightMotion: 0.7, WeightSizeChange: 0.3}
}

type prevTrack struct {
	bbox models.BoundingBox
	area float64
}

// ActivityScorer converts tracked detections into per-frame activity
// scores. It stays lightweight so it can run over long clips without
// holding frame history.
type ActivityScorer struct {
	cfg         ScorerConfig
	frameWidth  float64
	frameHeight float64
	state       map[uint32]prevTrack
}

func NewActivityScorer(cfg ScorerConfig, frameWidth, frameHeight int) *ActivityScorer {
	return &ActivityScorer{
		cfg:         cfg,
		frameWidth:  float64(frameWidth),
		frameHeight: float64(frameHeight),
		state:       map[uint32]prevTrack{},
	}
}

// BuildTimeline scores every frame, preserving the detections alongside.
// Fails when there is nothing to score: the caller decides the fallback.
func (s *ActivityScorer) BuildTimeline(frames []models.FrameResult, duration float64) ([]models.TimelineFrame, error) {
	if len(frames) == 0 {
		return nil, xerrors.New(xerrors.KindNotFound, "activity scoring requires detections across the segment", nil)
	}

	out := make([]models.TimelineFrame, 0, len(frames))
	hasTracks := false
	for _, frame := range frames {
		if frame.Time > duration {
			break
		}
		scores := make([]models.ActivityScore, 0, len(frame.Detections))
		for _, det := range frame.Detections {
			var motion, size float64
			if prev, ok := s.state[det.TrackID]; ok {
				motion = s.motionScore(prev.bbox, det.BBox)
				size = sizeDeltaScore(prev.area, det.BBox.Area())
			}
			scores = append(scores, models.ActivityScore{
				TrackID: det.TrackID,
				Score:   s.combine(motion, size),
			})
			s.state[det.TrackID] = prevTrack{bbox: det.BBox, area: det.BBox.Area()}
			hasTracks = true
		}
		// Record the frame even with no detections; the planner fails fast
		// later if the whole timeline is empty.
		out = append(out, models.TimelineFrame{
			Time:       frame.Time,
			Detections: frame.Detections,
			Activity:   scores,
		})
	}

	if !hasTracks {
		return nil, xerrors.New(xerrors.KindNotFound, "no tracked subjects to score", nil)
	}
	return out, nil
}

// motionScore is the normalized center displacement since the previous
// frame, saturating around a full-frame traverse.
func (s *ActivityScorer) motionScore(prev, current models.BoundingBox) float64 {
	dx := current.CX() - prev.CX()
	dy := current.CY() - prev.CY()
	distance := math.Sqrt(dx*dx + dy*dy)
	norm := distance / math.Max(s.frameWidth, s.frameHeight)
	return clamp01(norm)
}

// sizeDeltaScore is the relative area growth, clamped non-negative.
func sizeDeltaScore(prevArea, currentArea float64) float64 {
	if prevArea <= 0 {
		return 0
	}
	return clamp01((currentArea - prevArea) / prevArea)
}

func (s *ActivityScorer) combine(motion, size float64) float64 {
	wm := math.Max(s.cfg.WeightMotion, 0)
	ws := math.Max(s.cfg.WeightSizeChange, 0)
	total := wm + ws
	if total <= 0 {
		return 0
	}
	return (motion*wm + size*ws) / total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
