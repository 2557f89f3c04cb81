package detection

import (
	"github.com/vmatresu/vclip/config"
	"github.com/vmatresu/vclip/models"
)

// motionGridWidth is the processing width for frame differencing. Small on
// purpose: the center of mass is all we need.
const motionGridWidth = 64

// MotionDetector finds the intensity-weighted center of motion between
// consecutive downscaled grayscale frames. A short coasting window reuses
// the last center when motion momentarily stops, so the synthesized track
// does not flicker.
type MotionDetector struct {
	threshold    float64
	coastSamples int

	prev       []byte
	prevW      int
	prevH      int
	lastCenter *[2]float64
	coastLeft  int
}

func NewMotionDetector(sampleInterval float64) *MotionDetector {
	coast := int(config.MotionCoastWindowSecs / sampleInterval)
	if coast < 1 {
		coast = 1
	}
	return &MotionDetector{
		threshold:    config.MotionDiffThreshold,
		coastSamples: coast,
	}
}

// Detect returns a synthesized detection box around the motion center, or
// nothing when no motion has been seen recently. The first frame never
// yields motion.
func (d *MotionDetector) Detect(frame *Frame, time float64) []models.Detection {
	gray, w, h := grayDownscale(frame, motionGridWidth)

	var center *[2]float64
	if d.prev != nil && w == d.prevW && h == d.prevH {
		center = d.centerOfMotion(gray, w, h, frame)
	}
	d.prev = gray
	d.prevW, d.prevH = w, h

	if center != nil {
		d.lastCenter = center
		d.coastLeft = d.coastSamples
	} else if d.lastCenter != nil && d.coastLeft > 0 {
		// Coast on the previous center.
		d.coastLeft--
		center = d.lastCenter
	} else {
		d.lastCenter = nil
		return nil
	}

	// Synthesize a track-sized box around the motion center, a third of
	// the frame on each axis.
	bw := float64(frame.Width) / 3
	bh := float64(frame.Height) / 3
	bbox := models.NewBoundingBox(center[0]-bw/2, center[1]-bh/2, bw, bh).
		Clamp(float64(frame.Width), float64(frame.Height))

	return []models.Detection{{
		Time:  time,
		BBox:  bbox,
		Score: 1.0,
	}}
}

// centerOfMotion thresholds the absolute frame difference and takes the
// intensity-weighted center of mass, mapped back to source pixels.
func (d *MotionDetector) centerOfMotion(gray []byte, w, h int, frame *Frame) *[2]float64 {
	var mass, mx, my float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			diff := int(gray[y*w+x]) - int(d.prev[y*w+x])
			if diff < 0 {
				diff = -diff
			}
			if float64(diff) < d.threshold {
				continue
			}
			weight := float64(diff)
			mass += weight
			mx += weight * float64(x)
			my += weight * float64(y)
		}
	}
	// Require a minimum amount of changed mass to ignore sensor noise.
	if mass <= 10*d.threshold {
		return nil
	}

	scaleX := float64(frame.Width) / float64(w)
	scaleY := float64(frame.Height) / float64(h)
	return &[2]float64{mx / mass * scaleX, my / mass * scaleY}
}

// Reset clears differencing state between scenes.
func (d *MotionDetector) Reset() {
	d.prev = nil
	d.lastCenter = nil
	d.coastLeft = 0
}
