package planner

import (
	"math"

	"github.com/vmatresu/vclip/models"
)

// CropSynthesizer converts a selected track's bounding boxes into camera
// keyframes at the scene's target aspect ratio.
type CropSynthesizer struct {
	FrameWidth      float64
	FrameHeight     float64
	PaddingFraction float64
	// Aspect is the crop window's width/height ratio.
	Aspect float64
}

// Keyframes synthesizes one keyframe per frame for the given track. Frames
// where the track is absent reuse the previous window, so the sequence
// always covers the full timeline.
func (c CropSynthesizer) Keyframes(timeline []models.TimelineFrame, trackID uint32) []models.CameraKeyframe {
	var out []models.CameraKeyframe
	var last *models.CameraKeyframe

	for _, frame := range timeline {
		det, found := findTrack(frame, trackID)
		if !found {
			if last != nil {
				kf := models.NewCameraKeyframe(frame.Time, last.CX, last.CY, last.Width, last.Height)
				out = append(out, kf)
			}
			continue
		}

		kf := c.window(det.BBox, frame.Time)
		out = append(out, kf)
		last = &kf
	}

	// Backfill any leading frames that preceded the first sighting.
	if len(out) > 0 && len(out) < len(timeline) {
		missing := len(timeline) - len(out)
		first := out[0]
		lead := make([]models.CameraKeyframe, 0, missing)
		for i := 0; i < missing; i++ {
			lead = append(lead, models.NewCameraKeyframe(timeline[i].Time, first.CX, first.CY, first.Width, first.Height))
		}
		out = append(lead, out...)
	}
	return out
}

// window pads the box, grows it to the target aspect and clamps it inside
// the frame.
func (c CropSynthesizer) window(bbox models.BoundingBox, time float64) models.CameraKeyframe {
	pad := math.Max(bbox.Width, bbox.Height) * c.PaddingFraction
	padded := bbox.Pad(pad).Clamp(c.FrameWidth, c.FrameHeight)

	w, h := padded.Width, padded.Height
	if c.Aspect > 0 {
		if w/h > c.Aspect {
			h = w / c.Aspect
		} else {
			w = h * c.Aspect
		}
	}
	// The aspect correction may spill out of frame; shrink preserving
	// aspect, then clamp position.
	if w > c.FrameWidth {
		w = c.FrameWidth
		h = w / c.Aspect
	}
	if h > c.FrameHeight {
		h = c.FrameHeight
		if c.Aspect > 0 {
			w = h * c.Aspect
		}
	}

	cx := padded.CX()
	cy := padded.CY()
	cx = math.Max(w/2, math.Min(cx, c.FrameWidth-w/2))
	cy = math.Max(h/2, math.Min(cy, c.FrameHeight-h/2))

	return models.NewCameraKeyframe(time, cx, cy, w, h)
}

func findTrack(frame models.TimelineFrame, trackID uint32) (models.Detection, bool) {
	for _, det := range frame.Detections {
		if det.TrackID == trackID {
			return det, true
		}
	}
	return models.Detection{}, false
}
