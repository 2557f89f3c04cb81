package planner

import (
	"math"

	"github.com/vmatresu/vclip/models"
)

// TrajectoryConfig bounds the cinematic camera path.
type TrajectoryConfig struct {
	// MaxPanSpeed caps camera movement in source pixels per second.
	MaxPanSpeed float64
	// DeadZoneFraction of the frame's larger dimension inside which small
	// subject movement does not move the camera.
	DeadZoneFraction float64
	// ZoomPerExtraSubject widens the window per additional active subject.
	ZoomPerExtraSubject float64
	// RenderFramerate is the resampling rate of the final path.
	RenderFramerate float64
}

func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		MaxPanSpeed:         400,
		DeadZoneFraction:    0.04,
		ZoomPerExtraSubject: 0.15,
		RenderFramerate:     30,
	}
}

// CinematicTrajectory plans the premium camera path: within each shot a
// dead-zone hysteresis follower with bounded pan speed, anchored at the
// shot's smoothed segment representatives, with adaptive zoom by subject
// count; the result is resampled at the render framerate.
type CinematicTrajectory struct {
	cfg         TrajectoryConfig
	frameWidth  float64
	frameHeight float64
}

func NewCinematicTrajectory(cfg TrajectoryConfig, frameWidth, frameHeight float64) *CinematicTrajectory {
	return &CinematicTrajectory{cfg: cfg, frameWidth: frameWidth, frameHeight: frameHeight}
}

// Plan produces the dense, render-rate camera path for a full scene.
// Targets must already be consolidated (segment representatives); shots
// bound where the camera may cut instead of pan.
func (c *CinematicTrajectory) Plan(targets []models.CameraKeyframe, subjectCounts []int, shots []models.ShotBoundary) []models.CameraKeyframe {
	if len(targets) == 0 {
		return nil
	}
	if len(shots) == 0 {
		shots = []models.ShotBoundary{{Start: targets[0].Time, End: targets[len(targets)-1].Time}}
	}

	var out []models.CameraKeyframe
	for _, shot := range shots {
		shotTargets, shotCounts := sliceShot(targets, subjectCounts, shot)
		if len(shotTargets) == 0 {
			continue
		}
		out = append(out, c.planShot(shotTargets, shotCounts, shot)...)
	}
	return out
}

func sliceShot(targets []models.CameraKeyframe, counts []int, shot models.ShotBoundary) ([]models.CameraKeyframe, []int) {
	var kf []models.CameraKeyframe
	var ct []int
	for i, t := range targets {
		if t.Time >= shot.Start && t.Time < shot.End {
			kf = append(kf, t)
			if i < len(counts) {
				ct = append(ct, counts[i])
			} else {
				ct = append(ct, 1)
			}
		}
	}
	return kf, ct
}

// planShot follows the targets with a dead zone and a speed cap, then
// resamples to the render framerate. The curve endpoints anchor on the
// first and last targets so cuts between shots stay crisp.
func (c *CinematicTrajectory) planShot(targets []models.CameraKeyframe, counts []int, shot models.ShotBoundary) []models.CameraKeyframe {
	deadZone := c.cfg.DeadZoneFraction * math.Max(c.frameWidth, c.frameHeight)
	step := 1.0 / c.cfg.RenderFramerate

	cur := targets[0]
	var out []models.CameraKeyframe
	ti := 0
	for t := shot.Start; t < shot.End; t += step {
		// Advance to the latest target at or before t.
		for ti+1 < len(targets) && targets[ti+1].Time <= t {
			ti++
		}
		target := targets[ti]

		zoom := 1.0
		if ti < len(counts) && counts[ti] > 1 {
			zoom += c.cfg.ZoomPerExtraSubject * float64(counts[ti]-1)
		}

		cur = c.follow(cur, target, zoom, deadZone, step)
		out = append(out, models.NewCameraKeyframe(t, cur.CX, cur.CY, cur.Width, cur.Height))
	}

	// Anchor the endpoint to the final target.
	if len(out) > 0 {
		last := targets[len(targets)-1]
		final := &out[len(out)-1]
		final.CX, final.CY = last.CX, last.CY
	}
	return out
}

// follow moves the camera toward the target, ignoring movement inside the
// dead zone and capping speed.
func (c *CinematicTrajectory) follow(cur, target models.CameraKeyframe, zoom, deadZone, dt float64) models.CameraKeyframe {
	dx := target.CX - cur.CX
	dy := target.CY - cur.CY
	dist := math.Hypot(dx, dy)

	next := cur
	if dist > deadZone {
		// Move only the distance beyond the dead zone, capped by speed.
		maxStep := c.cfg.MaxPanSpeed * dt
		step := math.Min(dist-deadZone, maxStep)
		next.CX += dx / dist * step
		next.CY += dy / dist * step
	}

	// Zoom adapts smoothly toward the target size.
	targetW := math.Min(target.Width*zoom, c.frameWidth)
	targetH := math.Min(target.Height*zoom, c.frameHeight)
	const zoomAlpha = 0.12
	next.Width += (targetW - next.Width) * zoomAlpha
	next.Height += (targetH - next.Height) * zoomAlpha

	// Keep the window inside the frame.
	next.CX = math.Max(next.Width/2, math.Min(next.CX, c.frameWidth-next.Width/2))
	next.CY = math.Max(next.Height/2, math.Min(next.CY, c.frameHeight-next.Height/2))
	return next
}
