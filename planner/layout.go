package planner

import (
	"sort"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/models"
)

// Dual-activity gate: a scene enters split mode only when enough frames
// show two confident subjects at once. Avoids jittery splits on transient
// false positives.
const (
	minDualFrames        = 3
	dualConfidence       = 0.45
	minDualFrameFraction = 0.5
)

// LayoutPlanner turns a scored timeline into layout spans partitioning the
// scene without gaps.
type LayoutPlanner struct {
	MinSegmentDuration float64
}

// Plan classifies the timeline into full/split spans. When the scene
// qualifies for split, the leftmost-center track maps to the top panel and
// the rightmost to the bottom; this assignment is deterministic.
func (p LayoutPlanner) Plan(timeline []models.TimelineFrame, duration float64) ([]models.LayoutSpan, error) {
	if len(timeline) == 0 {
		return nil, xerrors.New(xerrors.KindNotFound, "layout planning requires a scored timeline", nil)
	}

	dualFrames := 0
	for _, frame := range timeline {
		if confidentCount(frame) >= 2 {
			dualFrames++
		}
	}

	primary := p.dominantTrack(timeline)

	if dualFrames < minDualFrames || float64(dualFrames) < minDualFrameFraction*float64(len(timeline)) {
		log.LogNoJobID("layout: insufficient dual activity, keeping single view",
			"dual_frames", dualFrames, "total_frames", len(timeline))
		return []models.LayoutSpan{{Start: 0, End: duration, Layout: models.FullLayout(primary)}}, nil
	}

	top, bottom, ok := p.splitAssignment(timeline)
	if !ok {
		return []models.LayoutSpan{{Start: 0, End: duration, Layout: models.FullLayout(primary)}}, nil
	}

	spans := p.classifySpans(timeline, duration, primary, top, bottom)
	return p.collapseShortSpans(spans), nil
}

func confidentCount(frame models.TimelineFrame) int {
	n := 0
	for _, det := range frame.Detections {
		if det.Score > dualConfidence {
			n++
		}
	}
	return n
}

// dominantTrack is the track with the highest cumulative activity,
// defaulting to the first seen.
func (p LayoutPlanner) dominantTrack(timeline []models.TimelineFrame) uint32 {
	totals := map[uint32]float64{}
	var first *uint32
	for _, frame := range timeline {
		for _, det := range frame.Detections {
			if first == nil {
				id := det.TrackID
				first = &id
			}
			totals[det.TrackID] += 0.001 // presence counts a little
		}
		for _, a := range frame.Activity {
			totals[a.TrackID] += a.Score
		}
	}
	if first == nil {
		return 0
	}
	best, bestScore := *first, -1.0
	for id, score := range totals {
		if score > bestScore || (score == bestScore && id < best) {
			best, bestScore = id, score
		}
	}
	return best
}

// splitAssignment aggregates each track's union box over the scene and maps
// the left-center track to the top panel. Invariant: top center-x is
// strictly less than bottom center-x.
func (p LayoutPlanner) splitAssignment(timeline []models.TimelineFrame) (top, bottom uint32, ok bool) {
	boxes := map[uint32][]models.BoundingBox{}
	for _, frame := range timeline {
		for _, det := range frame.Detections {
			boxes[det.TrackID] = append(boxes[det.TrackID], det.BBox)
		}
	}
	if len(boxes) < 2 {
		return 0, 0, false
	}

	type trackBox struct {
		id  uint32
		box models.BoundingBox
	}
	tracks := make([]trackBox, 0, len(boxes))
	for id, b := range boxes {
		union, ok := models.Union(b)
		if !ok {
			continue
		}
		tracks = append(tracks, trackBox{id, union})
	}
	if len(tracks) < 2 {
		return 0, 0, false
	}

	sort.Slice(tracks, func(a, b int) bool {
		if tracks[a].box.CX() == tracks[b].box.CX() {
			return tracks[a].id < tracks[b].id
		}
		return tracks[a].box.CX() < tracks[b].box.CX()
	})
	return tracks[0].id, tracks[len(tracks)-1].id, true
}

// classifySpans walks the timeline, opening a new span whenever the
// single/dual classification flips.
func (p LayoutPlanner) classifySpans(timeline []models.TimelineFrame, duration float64, primary, top, bottom uint32) []models.LayoutSpan {
	var spans []models.LayoutSpan
	spanStart := 0.0
	var current *models.LayoutMode

	flush := func(end float64) {
		if current != nil && end > spanStart {
			spans = append(spans, models.LayoutSpan{Start: spanStart, End: end, Layout: *current})
		}
	}

	for _, frame := range timeline {
		var want models.LayoutMode
		if confidentCount(frame) >= 2 {
			want = models.SplitLayout(top, bottom)
		} else {
			want = models.FullLayout(primary)
		}
		if current == nil {
			current = &want
			continue
		}
		if *current != want {
			flush(frame.Time)
			spanStart = frame.Time
			current = &want
		}
	}
	flush(duration)

	if len(spans) == 0 {
		spans = []models.LayoutSpan{{Start: 0, End: duration, Layout: models.FullLayout(primary)}}
	}
	// Close any trailing gap.
	if last := &spans[len(spans)-1]; last.End < duration {
		last.End = duration
	}
	return spans
}

// collapseShortSpans merges spans shorter than the minimum into their
// predecessor so the layout does not strobe.
func (p LayoutPlanner) collapseShortSpans(spans []models.LayoutSpan) []models.LayoutSpan {
	if len(spans) <= 1 {
		return spans
	}
	out := []models.LayoutSpan{spans[0]}
	for _, span := range spans[1:] {
		last := &out[len(out)-1]
		if span.End-span.Start < p.MinSegmentDuration || span.Layout == last.Layout {
			last.End = span.End
			continue
		}
		out = append(out, span)
	}
	// A short leading span folds into its successor.
	if len(out) > 1 && out[0].End-out[0].Start < p.MinSegmentDuration {
		out[1].Start = out[0].Start
		out = out[1:]
	}
	return out
}
