package planner

import (
	"math"
	"sort"

	"github.com/vmatresu/vclip/models"
)

// SmoothingMode selects the camera smoothing algorithm.
type SmoothingMode string

const (
	// SmoothingStatic locks the camera on the per-axis median.
	SmoothingStatic SmoothingMode = "static"
	// SmoothingTracking follows the subject with a moving average.
	SmoothingTracking SmoothingMode = "tracking"
	// SmoothingLight applies a small fixed window for per-segment polish.
	SmoothingLight SmoothingMode = "light"
)

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// movingAverage applies a symmetric window, shrinking it at the edges.
func movingAverage(values []float64, window int) []float64 {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2

	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

func axes(keyframes []models.CameraKeyframe) (cx, cy, w, h []float64) {
	cx = make([]float64, len(keyframes))
	cy = make([]float64, len(keyframes))
	w = make([]float64, len(keyframes))
	h = make([]float64, len(keyframes))
	for i, kf := range keyframes {
		cx[i], cy[i], w[i], h[i] = kf.CX, kf.CY, kf.Width, kf.Height
	}
	return
}

func rebuild(keyframes []models.CameraKeyframe, cx, cy, w, h []float64) []models.CameraKeyframe {
	out := make([]models.CameraKeyframe, len(keyframes))
	for i, kf := range keyframes {
		out[i] = models.NewCameraKeyframe(kf.Time, cx[i], cy[i], w[i], h[i])
	}
	return out
}

// SmoothStatic replaces every keyframe by the per-axis median.
func SmoothStatic(keyframes []models.CameraKeyframe) []models.CameraKeyframe {
	if len(keyframes) == 0 {
		return nil
	}
	cx, cy, w, h := axes(keyframes)
	mcx, mcy, mw, mh := median(cx), median(cy), median(w), median(h)
	out := make([]models.CameraKeyframe, len(keyframes))
	for i, kf := range keyframes {
		out[i] = models.NewCameraKeyframe(kf.Time, mcx, mcy, mw, mh)
	}
	return out
}

// TrackingWindow converts the configured smoothing duration into an odd
// moving-average window of at least 3 samples.
func TrackingWindow(smoothingWindowSeconds, sampleRate float64) int {
	window := int(math.Ceil(smoothingWindowSeconds * sampleRate))
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	return window
}

// SmoothTracking applies a symmetric moving average sized from the
// configured window duration and sample rate.
func SmoothTracking(keyframes []models.CameraKeyframe, smoothingWindowSeconds, sampleRate float64) []models.CameraKeyframe {
	if len(keyframes) == 0 {
		return nil
	}
	window := TrackingWindow(smoothingWindowSeconds, sampleRate)
	cx, cy, w, h := axes(keyframes)
	return rebuild(keyframes,
		movingAverage(cx, window),
		movingAverage(cy, window),
		movingAverage(w, window),
		movingAverage(h, window),
	)
}

// SmoothLight applies the small fixed window used for per-segment polish.
func SmoothLight(keyframes []models.CameraKeyframe) []models.CameraKeyframe {
	if len(keyframes) == 0 {
		return nil
	}
	cx, cy, w, h := axes(keyframes)
	return rebuild(keyframes,
		movingAverage(cx, 3),
		movingAverage(cy, 3),
		movingAverage(w, 3),
		movingAverage(h, 3),
	)
}
