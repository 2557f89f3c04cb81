package detection

// MappingMeta records how a source frame was letterboxed into the fixed
// inference size, so detections can be mapped back to source pixels.
type MappingMeta struct {
	SourceWidth  int
	SourceHeight int
	InfWidth     int
	InfHeight    int
	Scale        float64
	PadLeft      int
	PadTop       int
	ScaledWidth  int
	ScaledHeight int
}

// NewMappingMeta computes the aspect-preserving scale and the symmetric
// padding that centers the scaled image in the inference canvas.
func NewMappingMeta(sourceWidth, sourceHeight, infWidth, infHeight int) MappingMeta {
	scaleX := float64(infWidth) / float64(sourceWidth)
	scaleY := float64(infHeight) / float64(sourceHeight)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	scaledW := int(float64(sourceWidth) * scale)
	scaledH := int(float64(sourceHeight) * scale)

	return MappingMeta{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		InfWidth:     infWidth,
		InfHeight:    infHeight,
		Scale:        scale,
		PadLeft:      (infWidth - scaledW) / 2,
		PadTop:       (infHeight - scaledH) / 2,
		ScaledWidth:  scaledW,
		ScaledHeight: scaledH,
	}
}

// ToSource maps a rectangle from inference space back to source pixels.
func (m MappingMeta) ToSource(x, y, w, h float64) (sx, sy, sw, sh float64) {
	sx = (x - float64(m.PadLeft)) / m.Scale
	sy = (y - float64(m.PadTop)) / m.Scale
	sw = w / m.Scale
	sh = h / m.Scale
	return
}

// Letterbox resamples a source frame into a zero-padded inference tensor
// laid out CHW float32 in [0,255], the face model's expected input.
func Letterbox(frame *Frame, meta MappingMeta) []float32 {
	out := make([]float32, 3*meta.InfWidth*meta.InfHeight)
	plane := meta.InfWidth * meta.InfHeight

	for y := 0; y < meta.ScaledHeight; y++ {
		srcY := int(float64(y) / m64(meta.Scale))
		if srcY >= frame.Height {
			srcY = frame.Height - 1
		}
		dstY := y + meta.PadTop
		for x := 0; x < meta.ScaledWidth; x++ {
			srcX := int(float64(x) / m64(meta.Scale))
			if srcX >= frame.Width {
				srcX = frame.Width - 1
			}
			dstX := x + meta.PadLeft
			r, g, b := frame.At(srcX, srcY)
			i := dstY*meta.InfWidth + dstX
			out[i] = float32(r)
			out[plane+i] = float32(g)
			out[2*plane+i] = float32(b)
		}
	}
	return out
}

func m64(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
