package planner

import (
	"math"

	"github.com/vmatresu/vclip/models"
)

// segment is a half-open index range [start, end) into a keyframe slice.
type segment struct {
	start int
	end   int
}

// segmentBoundaries splits the keyframes wherever a per-axis jump exceeds
// the switch threshold. Large instantaneous moves are camera switches, not
// subject motion.
func segmentBoundaries(keyframes []models.CameraKeyframe, switchThreshold float64) []segment {
	var segments []segment
	start := 0
	for i := 1; i < len(keyframes); i++ {
		dx := math.Abs(keyframes[i].CX - keyframes[i-1].CX)
		dy := math.Abs(keyframes[i].CY - keyframes[i-1].CY)
		if dx > switchThreshold || dy > switchThreshold {
			segments = append(segments, segment{start, i})
			start = i
		}
	}
	segments = append(segments, segment{start, len(keyframes)})
	return segments
}

// segmentRepresentative is the per-axis median of a segment, stable against
// outliers. It keeps the first keyframe's time so ordering stays intact.
func segmentRepresentative(keyframes []models.CameraKeyframe, seg segment) models.CameraKeyframe {
	window := keyframes[seg.start:seg.end]
	if len(window) == 0 {
		return keyframes[seg.start]
	}
	cx, cy, w, h := axes(window)
	return models.NewCameraKeyframe(window[0].Time, median(cx), median(cy), median(w), median(h))
}

// FlattenShortSegments collapses segments shorter than the minimum duration
// onto the preceding stable representative. This removes single-frame
// camera flips without temporal lookahead.
func FlattenShortSegments(keyframes []models.CameraKeyframe, switchThreshold, minSegmentDuration float64) []models.CameraKeyframe {
	segments := segmentBoundaries(keyframes, switchThreshold)
	if len(segments) <= 1 {
		return append([]models.CameraKeyframe(nil), keyframes...)
	}

	out := make([]models.CameraKeyframe, 0, len(keyframes))
	lastRep := segmentRepresentative(keyframes, segments[0])

	for idx, seg := range segments {
		duration := keyframes[seg.end-1].Time - keyframes[seg.start].Time
		var rep models.CameraKeyframe
		if idx == 0 || duration >= minSegmentDuration {
			rep = segmentRepresentative(keyframes, seg)
		} else {
			rep = lastRep
		}

		for i := seg.start; i < seg.end; i++ {
			out = append(out, models.NewCameraKeyframe(keyframes[i].Time, rep.CX, rep.CY, rep.Width, rep.Height))
		}
		lastRep = rep
	}
	return out
}

// ConsolidateSegments replaces each segment by its representative and then
// re-smooths within the segment, so motion inside a shot stays fluid while
// switches stay sharp.
func ConsolidateSegments(keyframes []models.CameraKeyframe, switchThreshold, minSegmentDuration float64) []models.CameraKeyframe {
	flattened := FlattenShortSegments(keyframes, switchThreshold, minSegmentDuration)
	segments := segmentBoundaries(flattened, switchThreshold)

	out := make([]models.CameraKeyframe, 0, len(flattened))
	for _, seg := range segments {
		out = append(out, SmoothLight(flattened[seg.start:seg.end])...)
	}
	return out
}
