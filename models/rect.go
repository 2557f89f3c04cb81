package models

import "math"

// BoundingBox is an axis-aligned rectangle in source pixel space unless the
// owning frame says otherwise.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

func NewBoundingBox(x, y, w, h float64) BoundingBox {
	return BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func (b BoundingBox) CX() float64 {
	return b.X + b.Width/2
}

func (b BoundingBox) CY() float64 {
	return b.Y + b.Height/2
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// IoU computes intersection-over-union with another box.
func (b BoundingBox) IoU(other BoundingBox) float64 {
	x1 := math.Max(b.X, other.X)
	y1 := math.Max(b.Y, other.Y)
	x2 := math.Min(b.X+b.Width, other.X+other.Width)
	y2 := math.Min(b.Y+b.Height, other.Y+other.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Pad grows the box by pad pixels on every side.
func (b BoundingBox) Pad(pad float64) BoundingBox {
	return BoundingBox{
		X:      b.X - pad,
		Y:      b.Y - pad,
		Width:  b.Width + 2*pad,
		Height: b.Height + 2*pad,
	}
}

// Clamp constrains the box to the frame, preserving size where possible.
func (b BoundingBox) Clamp(frameWidth, frameHeight float64) BoundingBox {
	w := math.Min(b.Width, frameWidth)
	h := math.Min(b.Height, frameHeight)
	x := math.Max(0, math.Min(b.X, frameWidth-w))
	y := math.Max(0, math.Min(b.Y, frameHeight-h))
	return BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// Union returns the smallest box covering all inputs, or false when empty.
func Union(boxes []BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	minX, minY := boxes[0].X, boxes[0].Y
	maxX, maxY := boxes[0].X+boxes[0].Width, boxes[0].Y+boxes[0].Height
	for _, b := range boxes[1:] {
		minX = math.Min(minX, b.X)
		minY = math.Min(minY, b.Y)
		maxX = math.Max(maxX, b.X+b.Width)
		maxY = math.Max(maxY, b.Y+b.Height)
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
