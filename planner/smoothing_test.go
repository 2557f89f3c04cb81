package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/detection"
	"github.com/vmatresu/vclip/models"
)

// makeHistograms builds n histograms whose dominant bin flips at each cut
// index, producing maximal L1 distance at those samples.
func makeHistograms(cuts []int, n int) []detection.ColorHistogram {
	cutSet := map[int]bool{}
	for _, c := range cuts {
		cutSet[c] = true
	}
	out := make([]detection.ColorHistogram, n)
	bin := 0
	for i := 0; i < n; i++ {
		if cutSet[i] {
			bin = (bin + 1) % 2
		}
		out[i][bin*63] = 1.0
	}
	return out
}

func kf(t, cx float64) models.CameraKeyframe {
	return models.NewCameraKeyframe(t, cx, 100, 200, 400)
}

func TestSmoothStaticLocksOnMedian(t *testing.T) {
	in := []models.CameraKeyframe{kf(0, 90), kf(0.1, 100), kf(0.2, 300)}
	out := SmoothStatic(in)
	for _, k := range out {
		require.Equal(t, 100.0, k.CX)
	}
}

func TestTrackingWindowIsOddAndAtLeastThree(t *testing.T) {
	require.Equal(t, 3, TrackingWindow(0.1, 8))
	require.Equal(t, 7, TrackingWindow(0.8, 8)) // ceil(6.4)=7
	require.Equal(t, 9, TrackingWindow(1.0, 8)) // 8 -> next odd
}

func TestSmoothTrackingPreservesTimes(t *testing.T) {
	in := []models.CameraKeyframe{kf(0, 0), kf(0.125, 100), kf(0.25, 200), kf(0.375, 300)}
	out := SmoothTracking(in, 0.8, 8)
	require.Len(t, out, len(in))
	for i := range in {
		require.Equal(t, in[i].Time, out[i].Time)
	}
	// The interior is averaged toward neighbors.
	require.Less(t, math.Abs(out[1].CX-150), math.Abs(in[1].CX-150)+1)
}

func TestSegmentBoundariesDetectSwitch(t *testing.T) {
	in := []models.CameraKeyframe{kf(0, 100), kf(0.1, 110), kf(0.2, 500), kf(0.3, 510)}
	segs := segmentBoundaries(in, 50)
	require.Len(t, segs, 2)
	require.Equal(t, segment{0, 2}, segs[0])
	require.Equal(t, segment{2, 4}, segs[1])
}

func TestFlattenShortSegmentsCollapsesFlips(t *testing.T) {
	in := []models.CameraKeyframe{
		kf(0.0, 100), kf(1.0, 110),
		kf(1.1, 500), // single-frame flip
		kf(1.2, 110), kf(2.0, 115),
	}
	out := FlattenShortSegments(in, 50, 2.0)
	require.Len(t, out, 5)
	// The flipped keyframe is pulled back to the preceding representative.
	require.InDelta(t, out[0].CX, out[2].CX, 20)
}

// Keyframe continuity: after consolidation, per-axis jumps inside a single
// segment stay bounded by the switch threshold.
func TestConsolidationBoundsIntraSegmentJumps(t *testing.T) {
	var in []models.CameraKeyframe
	for i := 0; i < 40; i++ {
		cx := 100 + float64(i%5)*10 // jitter below threshold
		if i >= 20 {
			cx += 600 // one real switch
		}
		in = append(in, kf(float64(i)*0.125, cx))
	}

	out := ConsolidateSegments(in, 120, 1.0)
	require.NotEmpty(t, out)

	switches := 0
	for i := 1; i < len(out); i++ {
		require.Greater(t, out[i].Time, out[i-1].Time, "keyframe times strictly increase")
		dx := math.Abs(out[i].CX - out[i-1].CX)
		if dx > 120 {
			switches++
		}
	}
	require.LessOrEqual(t, switches, 1, "only the genuine switch may exceed the threshold")
}

func TestShotDetectorMergesShortShots(t *testing.T) {
	d := ShotDetector{Threshold: 0.5, MinShotDuration: 1.0}

	// Histograms with a cut at sample 8 and a spurious one at 9.
	shots := d.Detect(makeHistograms([]int{8, 9}, 24), 0.125, 3.0)
	require.NotEmpty(t, shots)
	require.Equal(t, 0.0, shots[0].Start)
	require.Equal(t, 3.0, shots[len(shots)-1].End)
	for _, s := range shots {
		require.GreaterOrEqual(t, s.End-s.Start, 1.0, "short shots are merged backward")
	}
}
