// Package styles maps each render style to its detection tier, pipeline
// composition and complexity estimate.
package styles

import (
	"fmt"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/models"
)

// PipelineKind names which render path a style takes.
type PipelineKind string

const (
	// PipelineStatic is a constant filter graph, no detection.
	PipelineStatic PipelineKind = "static"
	// PipelineIntelligent runs detect -> track -> score -> plan -> sendcmd.
	PipelineIntelligent PipelineKind = "intelligent"
	// PipelineCinematic adds shot detection and the premium trajectory.
	PipelineCinematic PipelineKind = "cinematic"
	// PipelineStreamer is the landscape-in-portrait composition.
	PipelineStreamer PipelineKind = "streamer"
)

// Descriptor is everything the executor needs to know about a style.
type Descriptor struct {
	Style    models.Style
	Tier     models.DetectionTier
	Pipeline PipelineKind
	// ComplexityMsPerSec estimates processing milliseconds per second of
	// scene duration, used for capacity planning.
	ComplexityMsPerSec float64
}

var registry = map[models.Style]Descriptor{
	models.StyleOriginal:    {models.StyleOriginal, models.TierNone, PipelineStatic, 180},
	models.StyleLeftFocus:   {models.StyleLeftFocus, models.TierNone, PipelineStatic, 200},
	models.StyleRightFocus:  {models.StyleRightFocus, models.TierNone, PipelineStatic, 200},
	models.StyleCenterFocus: {models.StyleCenterFocus, models.TierNone, PipelineStatic, 200},
	models.StyleSplit:       {models.StyleSplit, models.TierNone, PipelineStatic, 260},
	models.StyleSplitFast:   {models.StyleSplitFast, models.TierNone, PipelineStatic, 240},

	models.StyleIntelligent:              {models.StyleIntelligent, models.TierBasic, PipelineIntelligent, 700},
	models.StyleIntelligentSpeaker:       {models.StyleIntelligentSpeaker, models.TierSpeakerAware, PipelineIntelligent, 900},
	models.StyleIntelligentSplit:         {models.StyleIntelligentSplit, models.TierBasic, PipelineIntelligent, 800},
	models.StyleIntelligentSplitActivity: {models.StyleIntelligentSplitActivity, models.TierSpeakerAware, PipelineIntelligent, 950},
	models.StyleIntelligentSplitMotion:   {models.StyleIntelligentSplitMotion, models.TierMotionAware, PipelineIntelligent, 500},

	models.StyleCinematic: {models.StyleCinematic, models.TierSpeakerAware, PipelineCinematic, 1200},

	models.StyleStreamer:      {models.StyleStreamer, models.TierNone, PipelineStreamer, 320},
	models.StyleStreamerSplit: {models.StyleStreamerSplit, models.TierNone, PipelineStreamer, 380},
}

// Lookup resolves a style's descriptor.
func Lookup(style models.Style) (Descriptor, error) {
	d, ok := registry[style]
	if !ok {
		return Descriptor{}, xerrors.InputValidation(fmt.Sprintf("no pipeline registered for style %q", style), nil)
	}
	return d, nil
}

// EstimateMs predicts processing time for a scene of the given duration.
func (d Descriptor) EstimateMs(sceneDurationSecs float64) int64 {
	return int64(d.ComplexityMsPerSec * sceneDurationSecs)
}

// RequiresDetection reports whether the style runs the detection pipeline.
func (d Descriptor) RequiresDetection() bool {
	return d.Pipeline == PipelineIntelligent || d.Pipeline == PipelineCinematic
}

// TierFor returns the detection tier a set of targets collectively needs:
// the most capable tier among them, so one detection run can serve every
// style of the scene.
func TierFor(targets []models.SceneTarget) (models.DetectionTier, error) {
	rank := map[models.DetectionTier]int{
		models.TierNone:         0,
		models.TierMotionAware:  1,
		models.TierBasic:        2,
		models.TierSpeakerAware: 3,
	}
	best := models.TierNone
	for _, t := range targets {
		d, err := Lookup(t.Style)
		if err != nil {
			return "", err
		}
		if rank[d.Tier] > rank[best] {
			best = d.Tier
		}
	}
	return best, nil
}
