package render

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Progress is one parsed snapshot from the media toolchain's progress pipe.
type Progress struct {
	Frame     uint64
	FPS       float64
	OutTimeMs int64
	Speed     float64
	Complete  bool
}

// Percentage maps output time to [0,100] given the expected duration.
func (p Progress) Percentage(totalDurationMs int64) float64 {
	if totalDurationMs <= 0 {
		return 0
	}
	pct := float64(p.OutTimeMs) / float64(totalDurationMs) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ParseProgress consumes `-progress pipe:` key=value output and invokes the
// callback at most once per throttle interval, plus once at completion.
// Snapshots inside a throttle interval are skipped. The callback runs
// synchronously on the reading loop, so a slow callback delays reading
// of the pipe.
func ParseProgress(r io.Reader, throttle time.Duration, fn func(Progress)) {
	scanner := bufio.NewScanner(r)
	var cur Progress
	var lastEmit time.Time

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "frame":
			cur.Frame, _ = strconv.ParseUint(value, 10, 64)
		case "fps":
			cur.FPS, _ = strconv.ParseFloat(value, 64)
		case "out_time_ms":
			// ffmpeg reports microseconds in this field despite the name.
			us, _ := strconv.ParseInt(value, 10, 64)
			cur.OutTimeMs = us / 1000
		case "speed":
			cur.Speed, _ = strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64)
		case "progress":
			cur.Complete = value == "end"
			if cur.Complete || time.Since(lastEmit) >= throttle {
				fn(cur)
				lastEmit = time.Now()
			}
		}
	}
}
