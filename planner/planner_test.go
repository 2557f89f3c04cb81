package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/models"
)

func TestPlanSceneSplitProducesBothPaths(t *testing.T) {
	p := New(DefaultPlannerConfig())

	timeline := twoSpeakerTimeline(80)
	plan, err := p.PlanScene(models.StyleIntelligentSplitActivity, timeline, 10.0, 1920, 1080, 0.125, models.AspectPortrait)
	require.NoError(t, err)

	require.True(t, plan.HasSplit())
	require.NotEmpty(t, plan.Primary)
	require.NotEmpty(t, plan.Secondary)

	// The primary (top) path tracks the left face, the secondary the right.
	require.Less(t, plan.Primary[0].CX, plan.Secondary[0].CX)
}

func TestPlanSceneNonSplitStyleForcesFullLayout(t *testing.T) {
	p := New(DefaultPlannerConfig())

	timeline := twoSpeakerTimeline(80)
	plan, err := p.PlanScene(models.StyleIntelligent, timeline, 10.0, 1920, 1080, 0.125, models.AspectPortrait)
	require.NoError(t, err)

	require.False(t, plan.HasSplit())
	require.Len(t, plan.Spans, 1)
	require.Empty(t, plan.Secondary)
}

func TestPlanSceneKeyframeTimesStrictlyIncrease(t *testing.T) {
	p := New(DefaultPlannerConfig())

	timeline := singleSpeakerTimeline(80)
	plan, err := p.PlanScene(models.StyleIntelligent, timeline, 10.0, 1920, 1080, 0.125, models.AspectPortrait)
	require.NoError(t, err)

	for i := 1; i < len(plan.Primary); i++ {
		require.Greater(t, plan.Primary[i].Time, plan.Primary[i-1].Time)
	}
}

func TestPlanSceneCropWindowsStayInFrame(t *testing.T) {
	p := New(DefaultPlannerConfig())

	timeline := singleSpeakerTimeline(40)
	plan, err := p.PlanScene(models.StyleIntelligent, timeline, 5.0, 1920, 1080, 0.125, models.AspectPortrait)
	require.NoError(t, err)

	for _, k := range plan.Primary {
		require.GreaterOrEqual(t, k.CX-k.Width/2, -0.5)
		require.LessOrEqual(t, k.CX+k.Width/2, 1920.5)
		require.GreaterOrEqual(t, k.CY-k.Height/2, -0.5)
		require.LessOrEqual(t, k.CY+k.Height/2, 1080.5)
	}
}

func TestPlanCinematicResamplesAtRenderRate(t *testing.T) {
	p := New(DefaultPlannerConfig())

	timeline := singleSpeakerTimeline(80)
	plan, err := p.PlanCinematic(timeline, makeHistograms(nil, 80), 10.0, 1920, 1080, 0.125, models.AspectPortrait)
	require.NoError(t, err)

	require.NotEmpty(t, plan.Shots)
	require.NotEmpty(t, plan.Primary)

	// 30fps over ~10s: dense output, far more than the 80 input samples.
	require.Greater(t, len(plan.Primary), 200)
	for i := 1; i < len(plan.Primary); i++ {
		require.Greater(t, plan.Primary[i].Time, plan.Primary[i-1].Time)
	}
}

func TestCinematicPanSpeedIsBounded(t *testing.T) {
	cfg := DefaultTrajectoryConfig()
	traj := NewCinematicTrajectory(cfg, 1920, 1080)

	// A target that teleports across the frame.
	targets := []models.CameraKeyframe{
		models.NewCameraKeyframe(0, 200, 540, 400, 700),
		models.NewCameraKeyframe(2, 1700, 540, 400, 700),
	}
	path := traj.Plan(targets, []int{1, 1}, []models.ShotBoundary{{Start: 0, End: 4}})
	require.NotEmpty(t, path)

	dt := 1.0 / cfg.RenderFramerate
	maxStep := cfg.MaxPanSpeed*dt + 0.001
	for i := 1; i < len(path)-1; i++ { // final frame anchors to the target
		dx := path[i].CX - path[i-1].CX
		require.LessOrEqual(t, dx, maxStep, "pan speed must stay bounded")
	}
}

func TestCinematicDeadZoneIgnoresSmallMoves(t *testing.T) {
	cfg := DefaultTrajectoryConfig()
	traj := NewCinematicTrajectory(cfg, 1920, 1080)

	// Jitter smaller than the dead zone.
	targets := []models.CameraKeyframe{
		models.NewCameraKeyframe(0, 960, 540, 400, 700),
		models.NewCameraKeyframe(1, 990, 540, 400, 700),
	}
	path := traj.Plan(targets, []int{1, 1}, []models.ShotBoundary{{Start: 0, End: 2}})
	require.NotEmpty(t, path)
	for _, k := range path[:len(path)-1] {
		require.InDelta(t, 960, k.CX, cfg.DeadZoneFraction*1920+1, "camera should not chase jitter")
	}
}
