package wakeword

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ModelLoadError is returned when an inference-stage asset is missing or
// fails to load. It is fatal: detection cannot run without all three stages.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("wakeword: load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

var ortOnce sync.Once

// initRuntime initializes the shared onnxruntime environment once per process.
// Call ort.SetSharedLibraryPath before constructing a detector if the
// runtime library is not on the default path.
func initRuntime() error {
	var err error
	ortOnce.Do(func() {
		err = ort.InitializeEnvironment()
	})
	return err
}

func statModel(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &ModelLoadError{Path: path, Err: err}
	}
	return nil
}

// melStage converts one 1280-sample frame into 5 mel frames of 32 bins.
type melStage interface {
	compute(samples []float32) ([][]float32, error)
	destroy() error
}

// embedStage converts a full 76x32 mel window into a 96-float embedding.
type embedStage interface {
	compute(window [][]float32) ([]float32, error)
	destroy() error
}

// scoreStage converts a full 16x96 embedding window into a confidence score.
type scoreStage interface {
	compute(window [][]float32) (float32, error)
	destroy() error
}

// onnxMel wraps the melspectrogram model. Input (1, 1280), output
// (1, 1, 5, 32). Tensors are pre-allocated; no allocation per frame beyond
// the returned mel frames.
type onnxMel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newOnnxMel(modelPath string) (*onnxMel, error) {
	if err := statModel(modelPath); err != nil {
		return nil, err
	}
	inputTensor, err := ort.NewTensor(ort.NewShape(1, FrameSamples), make([]float32, FrameSamples))
	if err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, melFramesPerChunk, melBins))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	return &onnxMel{session: sess, input: inputTensor, output: outputTensor}, nil
}

func (m *onnxMel) compute(samples []float32) ([][]float32, error) {
	if len(samples) != FrameSamples {
		return nil, fmt.Errorf("wakeword: frame must be %d samples, got %d", FrameSamples, len(samples))
	}
	copy(m.input.GetData(), samples)
	if err := m.session.Run(); err != nil {
		return nil, err
	}
	raw := m.output.GetData()
	frames := make([][]float32, melFramesPerChunk)
	for i := range frames {
		row := make([]float32, melBins)
		for j := range row {
			// Stabilizing transform expected by the embedding model.
			row[j] = raw[i*melBins+j]/10 + 2
		}
		frames[i] = row
	}
	return frames, nil
}

func (m *onnxMel) destroy() error { return m.session.Destroy() }

// onnxEmbed wraps the embedding model. Input (1, 76, 32, 1), output
// (1, 1, 1, 96).
type onnxEmbed struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newOnnxEmbed(modelPath string) (*onnxEmbed, error) {
	if err := statModel(modelPath); err != nil {
		return nil, err
	}
	inputTensor, err := ort.NewTensor(ort.NewShape(1, featureDepth, melBins, 1), make([]float32, featureDepth*melBins))
	if err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, embeddingDim))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input_1"},
		[]string{"conv2d_19"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	return &onnxEmbed{session: sess, input: inputTensor, output: outputTensor}, nil
}

func (e *onnxEmbed) compute(window [][]float32) ([]float32, error) {
	if len(window) != featureDepth {
		return nil, fmt.Errorf("wakeword: embedding window must be %d mel frames, got %d", featureDepth, len(window))
	}
	data := e.input.GetData()
	for i, row := range window {
		copy(data[i*melBins:(i+1)*melBins], row)
	}
	if err := e.session.Run(); err != nil {
		return nil, err
	}
	out := make([]float32, embeddingDim)
	copy(out, e.output.GetData())
	return out, nil
}

func (e *onnxEmbed) destroy() error { return e.session.Destroy() }

// onnxScore wraps the wake classifier. Input (1, 16, 96), output (1, 1).
type onnxScore struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newOnnxScore(modelPath string) (*onnxScore, error) {
	if err := statModel(modelPath); err != nil {
		return nil, err
	}
	inputTensor, err := ort.NewTensor(ort.NewShape(1, embeddingDepth, embeddingDim), make([]float32, embeddingDepth*embeddingDim))
	if err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	return &onnxScore{session: sess, input: inputTensor, output: outputTensor}, nil
}

func (s *onnxScore) compute(window [][]float32) (float32, error) {
	if len(window) != embeddingDepth {
		return 0, fmt.Errorf("wakeword: score window must be %d embeddings, got %d", embeddingDepth, len(window))
	}
	data := s.input.GetData()
	for i, row := range window {
		copy(data[i*embeddingDim:(i+1)*embeddingDim], row)
	}
	if err := s.session.Run(); err != nil {
		return 0, err
	}
	return s.output.GetData()[0], nil
}

func (s *onnxScore) destroy() error { return s.session.Destroy() }
