package detection

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/models"
)

// The ONNX runtime environment is process-wide; initialize it once.
var ortInitOnce sync.Once
var ortInitErr error

func initORT() error {
	ortInitOnce.Do(func() {
		if !ort.IsInitialized() {
			ortInitErr = ort.InitializeEnvironment()
		}
	})
	return ortInitErr
}

// inferenceGate caps concurrent inference across every detector instance in
// the process. Built lazily so flag overrides of the cap are respected.
var inferenceGate chan struct{}
var inferenceGateOnce sync.Once

func acquireInference() {
	inferenceGateOnce.Do(func() {
		n := config.MaxConcurrentInference
		if n < 1 {
			n = 1
		}
		inferenceGate = make(chan struct{}, n)
	})
	inferenceGate <- struct{}{}
}

func releaseInference() {
	<-inferenceGate
}

// FaceDetector runs the neural face model on letterboxed frames and maps
// detections back to source pixel coordinates.
type FaceDetector struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	confidence float64
	infWidth   int
	infHeight  int
}

// NewFaceDetector loads the face model. A missing or unloadable model is a
// strict failure: the caller decides whether to fall back.
func NewFaceDetector(modelPath string, confidence float64) (*FaceDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, xerrors.NotFound(fmt.Sprintf("face model not found at %s", modelPath), err)
	}
	if err := initORT(); err != nil {
		return nil, xerrors.NotFound("failed to initialize onnx runtime", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(2); err != nil {
		return nil, fmt.Errorf("set intra_op_threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"detections"}, opts)
	if err != nil {
		return nil, xerrors.NotFound("failed to load face model", err)
	}

	return &FaceDetector{
		session:    session,
		confidence: confidence,
		infWidth:   config.InferenceWidth,
		infHeight:  config.InferenceHeight,
	}, nil
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		_ = d.session.Destroy()
	}
}

// DetectFaces letterboxes the frame, runs inference and returns detections
// in source pixel space, filtered by confidence. Track ids are unassigned.
func (d *FaceDetector) DetectFaces(frame *Frame, time float64) ([]models.Detection, error) {
	meta := NewMappingMeta(frame.Width, frame.Height, d.infWidth, d.infHeight)
	input := Letterbox(frame, meta)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(d.infHeight), int64(d.infWidth)), input)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	acquireInference()
	d.mu.Lock()
	err = d.session.Run([]ort.Value{inputTensor}, outputs)
	d.mu.Unlock()
	releaseInference()
	if err != nil {
		return nil, fmt.Errorf("face inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected face model output type")
	}

	metrics.Metrics.DetectionFrames.WithLabelValues("face").Inc()
	return d.decode(outTensor, meta, time), nil
}

// decode parses the model's [N x 15] output rows: box x/y/w/h in inference
// pixels, five landmark pairs, then the confidence score.
func (d *FaceDetector) decode(t *ort.Tensor[float32], meta MappingMeta, time float64) []models.Detection {
	const rowLen = 15
	data := t.GetData()

	var out []models.Detection
	for i := 0; i+rowLen <= len(data); i += rowLen {
		score := float64(data[i+14])
		if score < d.confidence {
			continue
		}
		sx, sy, sw, sh := meta.ToSource(
			float64(data[i]), float64(data[i+1]),
			float64(data[i+2]), float64(data[i+3]))

		bbox := models.NewBoundingBox(sx, sy, sw, sh).
			Clamp(float64(meta.SourceWidth), float64(meta.SourceHeight))
		if bbox.Width < 2 || bbox.Height < 2 {
			continue
		}
		out = append(out, models.Detection{
			Time:  time,
			BBox:  bbox,
			Score: score,
		})
	}
	return out
}
