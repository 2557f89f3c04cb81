// Package render drives the media toolchain: one encode pass per style,
// with a time-indexed command list for intelligent camera paths.
package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/models"
	"github.com/vmatresu/vclip/planner"
	"github.com/vmatresu/vclip/subprocess"
	"github.com/vmatresu/vclip/video"
)

// Request describes one clip render.
type Request struct {
	JobID       string
	SegmentPath string
	OutputPath  string
	Style       models.Style
	Aspect      models.AspectRatio
	Encoding    models.EncodingConfig
	// Plan is required for intelligent styles, ignored for static ones.
	Plan         *planner.Plan
	SourceWidth  int
	SourceHeight int
	DurationSecs float64
	Watermark    bool
	Countdown    bool
	OnProgress   func(Progress)
}

// Result reports what the encode produced.
type Result struct {
	OutputPath    string
	ThumbnailPath string
	SizeBytes     int64
	DurationSecs  float64
	ProcessingMs  int64
}

// Renderer invokes the media toolchain as a subprocess.
type Renderer struct {
	Probe video.Prober
}

func NewRenderer() *Renderer {
	return &Renderer{Probe: video.Probe{}}
}

// Render runs the single encode pass for the request: build the filter
// graph, invoke the toolchain with an explicit stream mapping, parse its
// progress pipe, verify the output and generate a thumbnail. On
// cancellation the subprocess is killed and partial outputs removed.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	graph, err := r.buildGraph(&req)
	if err != nil {
		return nil, err
	}

	// Encode into a temp file adjacent to the destination, then move.
	tmpOut := req.OutputPath + ".part.mp4"
	defer os.Remove(tmpOut)

	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-progress", "pipe:1",
		"-i", req.SegmentPath,
	}
	if graph != "" {
		args = append(args, "-filter_complex", "[0:v]"+graph+"[vout]",
			"-map", "[vout]", "-map", "0:a:0?")
	} else {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0?")
	}
	args = append(args,
		"-c:v", req.Encoding.Codec,
		"-preset", req.Encoding.Preset,
	)
	if req.Encoding.IsHardware() {
		args = append(args, "-q:v", strconv.Itoa(req.Encoding.HardwareQuality))
	} else {
		args = append(args, "-crf", strconv.Itoa(req.Encoding.CRF))
	}
	args = append(args,
		"-c:a", "copy",
		"-movflags", "faststart",
		tmpOut,
	)

	if err := r.runEncode(ctx, req, args); err != nil {
		return nil, err
	}

	// Post-probe: duration within tolerance of the expected segment.
	probed, err := r.Probe.ProbeFile(req.JobID, tmpOut)
	if err != nil {
		return nil, xerrors.IntegrityViolation("rendered output failed probing", err)
	}
	if req.DurationSecs > 0 && math.Abs(probed.Duration-req.DurationSecs) > config.OutputDurationTolerance {
		return nil, xerrors.IntegrityViolation(
			fmt.Sprintf("rendered duration %.2fs deviates from expected %.2fs", probed.Duration, req.DurationSecs), nil)
	}

	if err := video.MoveFile(tmpOut, req.OutputPath); err != nil {
		return nil, err
	}

	thumbPath, err := GenerateThumbnail(ctx, req.OutputPath)
	if err != nil {
		log.Log(req.JobID, "failed to generate thumbnail", "err", err)
		thumbPath = ""
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return nil, xerrors.IntegrityViolation("rendered output vanished", err)
	}

	elapsed := time.Since(start)
	log.Log(req.JobID, "render complete",
		"style", string(req.Style),
		"output", req.OutputPath,
		"size_bytes", info.Size(),
		"duration", fmt.Sprintf("%.2fs", probed.Duration),
		"took", elapsed.String(),
	)

	return &Result{
		OutputPath:    req.OutputPath,
		ThumbnailPath: thumbPath,
		SizeBytes:     info.Size(),
		DurationSecs:  probed.Duration,
		ProcessingMs:  elapsed.Milliseconds(),
	}, nil
}

// buildGraph selects the filter graph for the style, writing the sendcmd
// file when the plan drives a dynamic crop.
func (r *Renderer) buildGraph(req *Request) (string, error) {
	outW, outH := req.Aspect.Dims()

	var graph string
	switch {
	case req.Style == models.StyleSplitFast:
		graph = FastSplitFilter(req.SourceWidth, req.SourceHeight)

	case req.Style == models.StyleStreamer || req.Style == models.StyleStreamerSplit:
		graph = StreamerFilter(req.Countdown, req.DurationSecs)

	case req.Style.IsIntelligent():
		if req.Plan == nil || len(req.Plan.Primary) == 0 {
			return "", xerrors.InputValidation("intelligent style render requires a camera plan", nil)
		}
		cmdFile := req.OutputPath + ".cmds.txt"
		if req.Plan.HasSplit() && len(req.Plan.Secondary) > 0 {
			if err := WriteSendcmdFile(cmdFile, "top", req.Plan.Primary); err != nil {
				return "", fmt.Errorf("writing camera command file: %w", err)
			}
			if err := AppendSendcmdFile(cmdFile, "bottom", req.Plan.Secondary); err != nil {
				return "", fmt.Errorf("writing camera command file: %w", err)
			}
			graph = IntelligentSplitFilter(cmdFile, req.Plan.Primary[0], req.Plan.Secondary[0], outW, outH)
		} else {
			if err := WriteSendcmdFile(cmdFile, "cam", req.Plan.Primary); err != nil {
				return "", fmt.Errorf("writing camera command file: %w", err)
			}
			graph = IntelligentFilter(cmdFile, req.Plan.Primary[0], outW, outH)
		}

	default:
		static, ok := StaticFilter(req.Style)
		if !ok {
			return "", xerrors.InputValidation(fmt.Sprintf("no renderer for style %q", req.Style), nil)
		}
		graph = static
	}

	if req.Watermark {
		graph = WatermarkFilter(graph)
	}
	return graph, nil
}

func (r *Renderer) runEncode(ctx context.Context, req Request, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stderrTail := subprocess.CaptureStderr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open progress pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return xerrors.NotFound("failed to start media toolchain", err)
	}

	done := make(chan struct{})
	var lastSpeed float64
	go func() {
		defer close(done)
		ParseProgress(stdout, config.ProgressThrottle, func(p Progress) {
			lastSpeed = p.Speed
			if req.OnProgress != nil {
				req.OnProgress(p)
			}
		})
	}()

	err = cmd.Wait()
	<-done
	if ctx.Err() != nil {
		// Cancelled: the partial temp output is removed by the caller's
		// deferred cleanup.
		return xerrors.Timeout("render cancelled", ctx.Err())
	}
	if err != nil {
		return xerrors.IntegrityViolation(
			fmt.Sprintf("media toolchain failed [%s]", stderrTail.String()), err)
	}
	if lastSpeed > 0 {
		metrics.Metrics.RenderEncodeSpeed.WithLabelValues(string(req.Style)).Observe(lastSpeed)
	}
	return nil
}

// GenerateThumbnail extracts a single frame as the clip's sibling jpg.
func GenerateThumbnail(ctx context.Context, clipPath string) (string, error) {
	thumbPath := clipPath[:len(clipPath)-len(filepath.Ext(clipPath))] + ".jpg"
	err := subprocess.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", "0.5",
		"-i", clipPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", config.ThumbnailWidth),
		thumbPath,
	)
	if err != nil {
		return "", err
	}
	return thumbPath, nil
}
