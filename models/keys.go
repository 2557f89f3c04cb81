package models

import (
	"fmt"
	"path"
	"strings"
)

// Deterministic blob key schemes. Deterministic keys are what make clip
// uploads idempotent: a second render of the same (user, video, scene,
// style, params) lands on the same key.

// ClipKey is the blob path for a rendered clip.
func ClipKey(userID, videoID string, sceneID uint32, style Style, aspect AspectRatio) string {
	return path.Join(userID, videoID, "clips", ClipFilename(sceneID, style, aspect))
}

// ClipFilename builds the stable clip file name.
func ClipFilename(sceneID uint32, style Style, aspect AspectRatio) string {
	a := strings.ReplaceAll(string(aspect), ":", "x")
	return fmt.Sprintf("scene_%03d_%s_%s.mp4", sceneID, style, a)
}

// ThumbnailKey is the sibling jpg of a clip key.
func ThumbnailKey(clipKey string) string {
	return strings.TrimSuffix(clipKey, path.Ext(clipKey)) + ".jpg"
}

// NeuralCacheKey locates the per-scene analysis artifact.
func NeuralCacheKey(userID, videoID string, sceneID uint32) string {
	return path.Join(userID, videoID, "neural", fmt.Sprintf("%d.json.gz", sceneID))
}

// SourceKey locates the uploaded source video.
func SourceKey(userID, videoID string) string {
	return path.Join("sources", userID, videoID, "source.mp4")
}

// RawSegmentKey locates an extracted raw scene segment.
func RawSegmentKey(userID, videoID string, sceneID uint32) string {
	return path.Join("clips", userID, videoID, "raw", fmt.Sprintf("scene_%03d.mp4", sceneID))
}

// SanitizeTitle makes a highlight title safe for use inside filenames.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
