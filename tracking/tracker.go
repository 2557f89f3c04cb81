// Package tracking maintains identity-stable tracks across sampled frames
// and scores per-track activity for the layout planner.
package tracking

import (
	"github.com/vmatresu/vclip/models"
)

type trackState struct {
	bbox models.BoundingBox
	age  uint32
}

// Tracker matches detections frame-to-frame by greedy IoU. Track records
// hold only the last bounding box and age, making an update
// O(detections x active_tracks).
type Tracker struct {
	iouThreshold float64
	maxGap       uint32
	tracks       map[uint32]*trackState
	nextTrackID  uint32
}

func NewTracker(iouThreshold float64, maxGap uint32) *Tracker {
	return &Tracker{
		iouThreshold: iouThreshold,
		maxGap:       maxGap,
		tracks:       map[uint32]*trackState{},
	}
}

// Update assigns track ids to the frame's detections. Unmatched detections
// open new tracks; unmatched tracks age and are deleted past maxGap.
func (t *Tracker) Update(detections []models.Detection) []models.Detection {
	if len(detections) == 0 {
		t.ageAll(nil)
		return nil
	}

	unmatchedTracks := map[uint32]bool{}
	for id := range t.tracks {
		unmatchedTracks[id] = true
	}

	out := make([]models.Detection, 0, len(detections))
	for _, det := range detections {
		bestIoU := t.iouThreshold
		var bestTrack uint32
		found := false
		for id := range unmatchedTracks {
			iou := det.BBox.IoU(t.tracks[id].bbox)
			if iou >= bestIoU {
				bestIoU = iou
				bestTrack = id
				found = true
			}
		}

		if found {
			delete(unmatchedTracks, bestTrack)
			t.tracks[bestTrack] = &trackState{bbox: det.BBox}
			det.TrackID = bestTrack
		} else {
			id := t.nextTrackID
			t.nextTrackID++
			t.tracks[id] = &trackState{bbox: det.BBox}
			det.TrackID = id
		}
		out = append(out, det)
	}

	t.ageAll(unmatchedTracks)
	return out
}

// ageAll ages the given tracks (or every track when nil) and deletes the
// ones past maxGap.
func (t *Tracker) ageAll(only map[uint32]bool) {
	for id, track := range t.tracks {
		if only != nil && !only[id] {
			continue
		}
		track.age++
		if track.age > t.maxGap {
			delete(t.tracks, id)
		}
	}
}

// Reset drops all state between scenes.
func (t *Tracker) Reset() {
	t.tracks = map[uint32]*trackState{}
	t.nextTrackID = 0
}

// ActiveTrackCount returns how many tracks currently exist.
func (t *Tracker) ActiveTrackCount() int {
	return len(t.tracks)
}
