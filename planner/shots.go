package planner

import (
	"github.com/vmatresu/vclip/detection"
	"github.com/vmatresu/vclip/models"
)

// ShotDetector splits a scene into shots by color-histogram distance
// between consecutive sampled frames. Used by the cinematic tier only.
type ShotDetector struct {
	Threshold       float64
	MinShotDuration float64
}

// Detect finds shot boundaries in a histogram sequence sampled at
// sampleInterval. Shots shorter than the minimum are merged backward into
// their predecessor.
func (d ShotDetector) Detect(histograms []detection.ColorHistogram, sampleInterval, duration float64) []models.ShotBoundary {
	if len(histograms) < 2 {
		return []models.ShotBoundary{{Start: 0, End: duration}}
	}

	var cuts []float64
	for i := 1; i < len(histograms); i++ {
		if histograms[i-1].Distance(histograms[i]) > d.Threshold {
			cuts = append(cuts, float64(i)*sampleInterval)
		}
	}

	shots := []models.ShotBoundary{}
	start := 0.0
	for _, cut := range cuts {
		if cut <= start {
			continue
		}
		shots = append(shots, models.ShotBoundary{Start: start, End: cut})
		start = cut
	}
	shots = append(shots, models.ShotBoundary{Start: start, End: duration})

	return d.mergeShort(shots)
}

func (d ShotDetector) mergeShort(shots []models.ShotBoundary) []models.ShotBoundary {
	if len(shots) <= 1 {
		return shots
	}
	merged := []models.ShotBoundary{shots[0]}
	for _, shot := range shots[1:] {
		if shot.End-shot.Start < d.MinShotDuration {
			// Merge backward into the previous shot.
			merged[len(merged)-1].End = shot.End
			continue
		}
		merged = append(merged, shot)
	}
	// The leading shot can itself be too short; fold it forward.
	if len(merged) > 1 && merged[0].End-merged[0].Start < d.MinShotDuration {
		merged[1].Start = merged[0].Start
		merged = merged[1:]
	}
	return merged
}
