package render

import (
	"fmt"

	"github.com/vmatresu/vclip/models"
)

// Static filter graphs. These assume a 1920-wide normalized source and a
// 1080x1920 portrait output.

// FilterSplit stacks the left and right halves vertically.
const FilterSplit = "scale=1920:-2,split=2[full][full2];" +
	"[full]crop=910:1080:0:0[left];" +
	"[full2]crop=960:1080:960:0[right];" +
	"[left]scale=1080:-2,crop=1080:960[left_scaled];" +
	"[right]scale=1080:-2,crop=1080:960[right_scaled];" +
	"[left_scaled][right_scaled]vstack=inputs=2"

// FilterLeftFocus expands the left half to portrait, anchored to the top.
const FilterLeftFocus = "scale=1920:-2," +
	"crop=910:1080:0:0," +
	"scale=1080:1920:force_original_aspect_ratio=decrease," +
	"pad=1080:1920:(ow-iw)/2:0"

// FilterRightFocus expands the right half to portrait.
const FilterRightFocus = "scale=1920:-2," +
	"crop=960:1080:960:0," +
	"scale=1080:1920:force_original_aspect_ratio=decrease," +
	"pad=1080:1920:(ow-iw)/2:0"

// FilterCenterFocus crops a 9:16 slice anchored at the horizontal center,
// clamped to avoid negative offsets.
const FilterCenterFocus = "scale=1920:-2," +
	"crop=ih*9/16:ih:max((iw-ih*9/16)/2\\,0):0," +
	"scale=1080:1920:force_original_aspect_ratio=decrease," +
	"pad=1080:1920:(ow-iw)/2:0"

// FilterDefaultPortrait is the fallback portrait crop.
const FilterDefaultPortrait = "scale=-2:1920,crop=1080:1920"

// StaticFilter returns the constant filter graph for a static style, or
// false for styles that build their graph dynamically.
func StaticFilter(style models.Style) (string, bool) {
	switch style {
	case models.StyleSplit:
		return FilterSplit, true
	case models.StyleLeftFocus:
		return FilterLeftFocus, true
	case models.StyleRightFocus:
		return FilterRightFocus, true
	case models.StyleCenterFocus:
		return FilterCenterFocus, true
	case models.StyleOriginal:
		return "", true // no filter; stream copy of geometry
	default:
		return "", false
	}
}

// FastSplitFilter is the deterministic no-detection split: crop 45% off
// each side and stack, biased upward to keep faces in frame.
func FastSplitFilter(sourceWidth, sourceHeight int) string {
	cropW := int(float64(sourceWidth) * 0.45)
	rightX := sourceWidth - cropW
	tileH := int(float64(cropW) * 8.0 / 9.0)
	if tileH > sourceHeight {
		tileH = sourceHeight
	}
	bottomY := int(float64(sourceHeight-tileH) * 0.15)

	return fmt.Sprintf(
		"split=2[l][r];"+
			"[l]crop=%d:%d:0:0,scale=1080:960[top];"+
			"[r]crop=%d:%d:%d:%d,scale=1080:960[bottom];"+
			"[top][bottom]vstack=inputs=2",
		cropW, tileH, cropW, tileH, rightX, bottomY)
}

// StreamerFilter composes a zoomed-blurred background with the scaled
// foreground for landscape-in-portrait, with an optional countdown text
// overlay.
func StreamerFilter(withCountdown bool, durationSecs float64) string {
	graph := "split=2[bg][fg];" +
		"[bg]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,boxblur=20:5[blurred];" +
		"[fg]scale=1080:-2[scaled];" +
		"[blurred][scaled]overlay=(W-w)/2:(H-h)/2"
	if withCountdown {
		graph += fmt.Sprintf(
			"[composed];[composed]drawtext=text='%%{eif\\:max(0\\,%d-t)\\:d}':"+
				"fontcolor=white:fontsize=72:box=1:boxcolor=black@0.4:x=(w-text_w)/2:y=96",
			int(durationSecs))
	}
	return graph
}

// WatermarkFilter overlays the brand mark for free-tier exports.
func WatermarkFilter(inner string) string {
	wm := "drawtext=text='vclip':fontcolor=white@0.5:fontsize=36:x=w-text_w-24:y=h-text_h-24"
	if inner == "" {
		return wm
	}
	return inner + "," + wm
}
