package detection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/models"
)

func solidFrame(w, h int, r, g, b byte) *Frame {
	pix := make([]byte, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return &Frame{Width: w, Height: h, Pix: pix}
}

func TestMappingMetaRoundTrip(t *testing.T) {
	meta := NewMappingMeta(1920, 1080, 960, 540)
	require.InDelta(t, 0.5, meta.Scale, 0.0001)
	require.Equal(t, 0, meta.PadLeft)
	require.Equal(t, 0, meta.PadTop)

	sx, sy, sw, sh := meta.ToSource(100, 50, 200, 100)
	require.InDelta(t, 200.0, sx, 0.001)
	require.InDelta(t, 100.0, sy, 0.001)
	require.InDelta(t, 400.0, sw, 0.001)
	require.InDelta(t, 200.0, sh, 0.001)
}

func TestMappingMetaLetterboxesTallSources(t *testing.T) {
	meta := NewMappingMeta(1080, 1920, 960, 540)
	// Height-bound scale with horizontal padding.
	require.InDelta(t, 540.0/1920.0, meta.Scale, 0.0001)
	require.Greater(t, meta.PadLeft, 0)
	require.Equal(t, 0, meta.PadTop)

	// A box at the pad boundary maps back to x=0.
	sx, _, _, _ := meta.ToSource(float64(meta.PadLeft), 0, 10, 10)
	require.InDelta(t, 0.0, sx, 0.001)
}

func TestHistogramDistance(t *testing.T) {
	red := Histogram(solidFrame(64, 64, 255, 0, 0))
	red2 := Histogram(solidFrame(64, 64, 250, 0, 0))
	blue := Histogram(solidFrame(64, 64, 0, 0, 255))

	require.InDelta(t, 0.0, red.Distance(red2), 0.0001, "same-bin colors are identical")
	require.InDelta(t, 2.0, red.Distance(blue), 0.0001, "disjoint histograms are maximally distant")
}

func TestMotionDetectorCoasting(t *testing.T) {
	// 8 samples/sec -> 2s coast window = 16 samples.
	d := NewMotionDetector(0.125)

	dark := solidFrame(640, 360, 10, 10, 10)
	bright := solidFrame(640, 360, 200, 200, 200)

	// First frame: nothing to diff against.
	require.Empty(t, d.Detect(dark, 0))

	// Full-frame change registers motion at the frame center.
	dets := d.Detect(bright, 0.125)
	require.Len(t, dets, 1)
	require.InDelta(t, 320, dets[0].BBox.CX(), 20)

	// No change: coasting keeps emitting the last center.
	dets = d.Detect(bright, 0.25)
	require.Len(t, dets, 1, "coasting window should reuse the last center")

	// Exhaust the coast window.
	for i := 0; i < 16; i++ {
		dets = d.Detect(bright, 0.375+float64(i)*0.125)
	}
	require.Empty(t, dets, "after the coast window the track disappears")
}

func TestMouthActivityRespondsToChange(t *testing.T) {
	a := NewMouthActivityAnalyzer()
	face := models.Detection{TrackID: 7, BBox: models.NewBoundingBox(100, 100, 200, 200)}

	dark := solidFrame(640, 360, 10, 10, 10)
	bright := solidFrame(640, 360, 220, 220, 220)

	require.Equal(t, 0.0, a.Score(dark, face), "first observation scores zero")

	score := a.Score(bright, face)
	require.Greater(t, score, 0.5, "large aperture delta should score high")

	// A static mouth decays toward zero.
	var last float64 = score
	for i := 0; i < 10; i++ {
		last = a.Score(bright, face)
	}
	require.Less(t, last, score)
}

func TestHeuristicPipelineEmitsCenteredTrack(t *testing.T) {
	p, err := Build(models.TierNone, DefaultConfig(""))
	require.NoError(t, err)
	defer p.Close()

	result, err := p.Run(context.Background(), "job", "unused.mp4", 1.0, 1920, 1080)
	require.NoError(t, err)
	require.NotEmpty(t, result.Frames)
	for _, f := range result.Frames {
		require.Len(t, f.Detections, 1)
		require.Equal(t, uint32(0), f.Detections[0].TrackID)
		require.InDelta(t, 960, f.Detections[0].BBox.CX(), 1)
	}
}

func TestBuildRejectsMissingModel(t *testing.T) {
	_, err := Build(models.TierBasic, DefaultConfig("/nonexistent/model.onnx"))
	require.Error(t, err, "strict tier must fail when the model is missing")
}
