package detection

import (
	"math"

	"github.com/vmatresu/vclip/models"
)

// mouthEMAAlpha controls how quickly the per-track aperture signature
// adapts. Smaller values smooth more.
const mouthEMAAlpha = 0.3

// apertureSaturation is the mean-intensity delta treated as full activity.
const apertureSaturation = 24.0

type mouthState struct {
	lastAperture float64
	ema          float64
	seen         bool
}

// MouthActivityAnalyzer estimates per-track speaking activity from the
// mouth region of each tracked face: a temporal EMA of aperture deltas,
// emitted as a score in [0,1].
type MouthActivityAnalyzer struct {
	state map[uint32]*mouthState
}

func NewMouthActivityAnalyzer() *MouthActivityAnalyzer {
	return &MouthActivityAnalyzer{state: map[uint32]*mouthState{}}
}

// Score computes the activity score for one tracked face on this frame.
func (a *MouthActivityAnalyzer) Score(frame *Frame, det models.Detection) float64 {
	aperture := mouthAperture(frame, det.BBox)

	st, ok := a.state[det.TrackID]
	if !ok {
		st = &mouthState{}
		a.state[det.TrackID] = st
	}
	if !st.seen {
		st.lastAperture = aperture
		st.seen = true
		return 0
	}

	delta := math.Abs(aperture - st.lastAperture)
	st.lastAperture = aperture
	st.ema = mouthEMAAlpha*delta + (1-mouthEMAAlpha)*st.ema

	score := st.ema / apertureSaturation
	if score > 1 {
		score = 1
	}
	return score
}

// Reset drops all per-track state between scenes.
func (a *MouthActivityAnalyzer) Reset() {
	a.state = map[uint32]*mouthState{}
}

// mouthAperture samples the lower-center portion of the face box and
// returns its mean luma. Mouth opening and closing moves this value frame
// to frame; the absolute level does not matter, only the deltas.
func mouthAperture(frame *Frame, face models.BoundingBox) float64 {
	// Lower third of the face, middle half horizontally.
	x0 := int(face.X + face.Width*0.25)
	x1 := int(face.X + face.Width*0.75)
	y0 := int(face.Y + face.Height*0.66)
	y1 := int(face.Y + face.Height)

	x0 = clampInt(x0, 0, frame.Width-1)
	x1 = clampInt(x1, 0, frame.Width)
	y0 = clampInt(y0, 0, frame.Height-1)
	y1 = clampInt(y1, 0, frame.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	var sum, count float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, b := frame.At(x, y)
			sum += float64(299*int(r)+587*int(g)+114*int(b)) / 1000
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
