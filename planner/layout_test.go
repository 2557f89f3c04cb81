package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/models"
)

// twoSpeakerTimeline repeats two confident faces at fixed positions, the
// left one at center-x 300 and the right at 1500.
func twoSpeakerTimeline(frames int) []models.TimelineFrame {
	var out []models.TimelineFrame
	for i := 0; i < frames; i++ {
		t := float64(i) * 0.125
		out = append(out, models.TimelineFrame{
			Time: t,
			Detections: []models.Detection{
				{Time: t, TrackID: 1, Score: 0.9, BBox: models.NewBoundingBox(200, 200, 200, 200)},
				{Time: t, TrackID: 2, Score: 0.9, BBox: models.NewBoundingBox(1400, 220, 200, 200)},
			},
			Activity: []models.ActivityScore{
				{TrackID: 1, Score: 0.5},
				{TrackID: 2, Score: 0.5},
			},
		})
	}
	return out
}

func singleSpeakerTimeline(frames int) []models.TimelineFrame {
	var out []models.TimelineFrame
	for i := 0; i < frames; i++ {
		t := float64(i) * 0.125
		out = append(out, models.TimelineFrame{
			Time: t,
			Detections: []models.Detection{
				{Time: t, TrackID: 1, Score: 0.9, BBox: models.NewBoundingBox(800, 400, 200, 200)},
			},
			Activity: []models.ActivityScore{{TrackID: 1, Score: 0.4}},
		})
	}
	return out
}

func TestTwoSpeakersProduceOneSplitSpan(t *testing.T) {
	p := LayoutPlanner{MinSegmentDuration: 1.0}

	// 10s scene with dual detections on every sampled frame.
	timeline := twoSpeakerTimeline(80)
	spans, err := p.Plan(timeline, 10.0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.True(t, spans[0].Layout.Split)
	require.Equal(t, 0.0, spans[0].Start)
	require.Equal(t, 10.0, spans[0].End)

	// Left-center track maps to the top panel.
	require.Equal(t, uint32(1), spans[0].Layout.Primary, "track at center-x 300 takes the top panel")
	require.Equal(t, uint32(2), spans[0].Layout.Secondary, "track at center-x 1500 takes the bottom panel")
}

func TestInsufficientDualActivityStaysFull(t *testing.T) {
	p := LayoutPlanner{MinSegmentDuration: 1.0}

	// Only two dual frames out of 80: below both gates.
	timeline := singleSpeakerTimeline(78)
	timeline = append(timeline, twoSpeakerTimeline(2)...)

	spans, err := p.Plan(timeline, 10.0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.False(t, spans[0].Layout.Split)
}

func TestSpansPartitionTimelineWithoutGaps(t *testing.T) {
	p := LayoutPlanner{MinSegmentDuration: 0.25}

	// Half dual, half single, enough of each to survive collapsing.
	timeline := append(twoSpeakerTimeline(40), shiftTimes(singleSpeakerTimeline(40), 5.0)...)
	spans, err := p.Plan(timeline, 10.0)
	require.NoError(t, err)
	require.NotEmpty(t, spans)

	require.Equal(t, 0.0, spans[0].Start)
	require.Equal(t, 10.0, spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		require.Equal(t, spans[i-1].End, spans[i].Start, "spans must not leave gaps")
	}
}

func shiftTimes(frames []models.TimelineFrame, offset float64) []models.TimelineFrame {
	for i := range frames {
		frames[i].Time += offset
	}
	return frames
}

func TestPlanRequiresTimeline(t *testing.T) {
	p := LayoutPlanner{MinSegmentDuration: 1.0}
	_, err := p.Plan(nil, 10.0)
	require.Error(t, err)
}
