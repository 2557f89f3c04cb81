// Package analysis persists per-scene detection artifacts so reprocessing
// runs can skip the expensive neural work.
package analysis

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vmatresu/vclip/clients"
	"github.com/vmatresu/vclip/detection"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/models"
)

// SchemaVersion invalidates older artifacts when the structure changes.
const SchemaVersion = 3

// Fingerprint identifies the inputs an artifact was computed from. A cache
// hit requires an exact match; mismatches are treated as misses with no
// migration attempt.
type Fingerprint struct {
	VideoFingerprint string               `json:"video_fingerprint"`
	SceneStart       float64              `json:"scene_start"`
	SceneEnd         float64              `json:"scene_end"`
	Tier             models.DetectionTier `json:"tier"`
}

// NewVideoFingerprint hashes the stable identity of a source video.
func NewVideoFingerprint(videoID string, sizeBytes int64, durationSecs float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%.3f", videoID, sizeBytes, durationSecs)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Artifact is the versioned, compressed per-scene detection payload.
type Artifact struct {
	Version       int                        `json:"version"`
	Fingerprint   Fingerprint                `json:"fingerprint"`
	Frames        []models.FrameResult       `json:"frames"`
	Histograms    []detection.ColorHistogram `json:"histograms,omitempty"`
	Shots         []models.ShotBoundary      `json:"shots,omitempty"`
	FusionWeights map[string]float64         `json:"fusion_weights,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// Encode gzips the JSON form.
func (a Artifact) Encode() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(a); err != nil {
		return nil, fmt.Errorf("error encoding analysis artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("error compressing analysis artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArtifact parses a gzip-compressed artifact.
func DecodeArtifact(payload []byte) (Artifact, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return Artifact{}, xerrors.IntegrityViolation("corrupt analysis artifact", err)
	}
	defer gz.Close()

	var a Artifact
	if err := json.NewDecoder(gz).Decode(&a); err != nil {
		return Artifact{}, xerrors.IntegrityViolation("corrupt analysis artifact", err)
	}
	return a, nil
}

// Cache stores artifacts in the blob store at deterministic keys. Missing
// artifacts only cost recomputation; concurrent writers for the same scene
// are fingerprint-equivalent so last-writer-wins is acceptable.
type Cache struct {
	blob *clients.BlobStore
}

func NewCache(blob *clients.BlobStore) *Cache {
	return &Cache{blob: blob}
}

// Load fetches and validates the artifact. Any mismatch — absent object,
// wrong version, wrong fingerprint, corrupt payload — returns a miss.
func (c *Cache) Load(ctx context.Context, jobID, userID, videoID string, sceneID uint32, want Fingerprint) (*Artifact, bool) {
	rc, err := c.blob.Open(ctx, jobID, models.NeuralCacheKey(userID, videoID, sceneID))
	if err != nil {
		if !xerrors.IsNotFound(err) {
			log.Log(jobID, "analysis cache read failed, treating as miss", "scene_id", sceneID, "err", err)
		}
		return nil, false
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		log.Log(jobID, "analysis cache read failed, treating as miss", "scene_id", sceneID, "err", err)
		return nil, false
	}

	artifact, err := DecodeArtifact(payload)
	if err != nil {
		log.Log(jobID, "analysis cache corrupt, treating as miss", "scene_id", sceneID, "err", err)
		return nil, false
	}
	if !artifact.Valid(want) {
		log.Log(jobID, "analysis cache fingerprint mismatch, treating as miss",
			"scene_id", sceneID, "version", artifact.Version)
		return nil, false
	}
	return &artifact, true
}

// Store uploads the artifact, best effort: a failed write only costs a
// future recomputation.
func (c *Cache) Store(ctx context.Context, jobID, userID, videoID string, sceneID uint32, artifact Artifact) error {
	artifact.Version = SchemaVersion
	payload, err := artifact.Encode()
	if err != nil {
		return err
	}

	key := models.NeuralCacheKey(userID, videoID, sceneID)
	return c.blob.Put(ctx, jobID, key, bytes.NewReader(payload), time.Minute)
}

// Valid checks version and fingerprint equality.
func (a Artifact) Valid(want Fingerprint) bool {
	return a.Version == SchemaVersion && a.Fingerprint == want
}
