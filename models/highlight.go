package models

import (
	"fmt"

	"github.com/vmatresu/vclip/config"
)

// Highlight is one interesting scene inside a video, as suggested by the
// analysis stage or the user.
type Highlight struct {
	ID          uint32 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// Start and End come over the wire as timestamps parsed as seconds.
	Start         string  `json:"start"`
	End           string  `json:"end"`
	PadBeforeSecs float64 `json:"pad_before_seconds"`
	PadAfterSecs  float64 `json:"pad_after_seconds"`
	HookCategory  string  `json:"hook_category,omitempty"`
}

// Window resolves the padded scene window, clamped to [0, videoDuration].
// Requires 0 <= start < end.
func (h Highlight) Window(videoDuration float64) (start, end float64, err error) {
	startSecs, err := config.ParseTimestamp(h.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("highlight %d: bad start: %w", h.ID, err)
	}
	endSecs, err := config.ParseTimestamp(h.End)
	if err != nil {
		return 0, 0, fmt.Errorf("highlight %d: bad end: %w", h.ID, err)
	}
	if startSecs >= endSecs {
		return 0, 0, fmt.Errorf("highlight %d: start %.2f is not before end %.2f", h.ID, startSecs, endSecs)
	}

	start = startSecs - h.PadBeforeSecs
	if start < 0 {
		start = 0
	}
	end = endSecs + h.PadAfterSecs
	if videoDuration > 0 && end > videoDuration {
		end = videoDuration
	}
	return start, end, nil
}
