package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleJob() Job {
	return Job{
		Kind:    JobKindProcessVideo,
		JobID:   "job-1",
		UserID:  "user-1",
		VideoID: "video-1",
		Targets: []SceneTarget{
			{SceneID: 2, Style: StyleSplit},
			{SceneID: 1, Style: StyleOriginal},
		},
		TargetAspect: AspectPortrait,
		CropMode:     CropModeCenter,
		Tier:         TierBasic,
		CreatedAt:    time.Now(),
	}
}

func TestIdempotencyKeyIsStableAcrossTargetOrder(t *testing.T) {
	a := sampleJob()
	b := sampleJob()
	b.Targets = []SceneTarget{b.Targets[1], b.Targets[0]}
	b.JobID = "job-2" // job id must not participate
	require.Equal(t, a.IdempotencyKey(), b.IdempotencyKey())
}

func TestIdempotencyKeyChangesWithParams(t *testing.T) {
	a := sampleJob()
	b := sampleJob()
	b.SilentRemoval = true
	require.NotEqual(t, a.IdempotencyKey(), b.IdempotencyKey())

	c := sampleJob()
	c.Targets = append(c.Targets, SceneTarget{SceneID: 3, Style: StyleCinematic})
	require.NotEqual(t, a.IdempotencyKey(), c.IdempotencyKey())
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleJob().Validate())

	j := sampleJob()
	j.Targets = nil
	require.Error(t, j.Validate())

	j = sampleJob()
	j.Kind = "mystery"
	require.Error(t, j.Validate())

	j = sampleJob()
	j.Kind = JobKindRenderSceneStyle
	require.Error(t, j.Validate(), "two targets on a single-render job")
	j.Targets = j.Targets[:1]
	require.NoError(t, j.Validate())
}

func TestScenesAreSortedAndDistinct(t *testing.T) {
	j := sampleJob()
	j.Targets = append(j.Targets, SceneTarget{SceneID: 2, Style: StyleLeftFocus})
	require.Equal(t, []uint32{1, 2}, j.Scenes())
	require.Len(t, j.TargetsForScene(2), 2)
}

func TestJobCost(t *testing.T) {
	j := sampleJob() // 2 targets, 2 scenes
	require.Equal(t, 20, JobCost(j))

	j.SilentRemoval = true
	require.Equal(t, 30, JobCost(j))

	j.Targets = append(j.Targets, SceneTarget{SceneID: 1, Style: StyleCinematic})
	// +10 base +5 cinematic surcharge
	require.Equal(t, 45, JobCost(j))
}
