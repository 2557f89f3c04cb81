package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type TimestampGenerator interface {
	GetTime() time.Time
}

type RealTimestampGenerator struct{}

func (t RealTimestampGenerator) GetTime() time.Time {
	return time.Now()
}

type FixedTimestampGenerator struct {
	Timestamp time.Time
}

func (t FixedTimestampGenerator) GetTime() time.Time {
	return t.Timestamp
}

// ParseTimestamp accepts either plain seconds ("93.5") or clock notation
// ("1:33.5", "0:01:33.5") and returns seconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if !strings.Contains(s, ":") {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse timestamp %q: %w", s, err)
		}
		if secs < 0 {
			return 0, fmt.Errorf("negative timestamp %q", s)
		}
		return secs, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("cannot parse timestamp %q: too many separators", s)
	}
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse timestamp %q: %w", s, err)
		}
		if v < 0 {
			return 0, fmt.Errorf("negative timestamp component in %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimestamp renders seconds as ffmpeg-compatible HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	base := time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
	return base.Format("15:04:05.000")
}
