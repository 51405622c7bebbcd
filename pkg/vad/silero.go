package vad

import (
	"errors"
	"fmt"
	"os"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sileroChunkSamples   = 512
	sileroContextSamples = 64
	sileroInputSamples   = sileroContextSamples + sileroChunkSamples // 576
	sileroStateSize      = 2 * 1 * 128
	sileroSampleRate     = 16000

	// Silero's recurrent state drifts on very long streams; clearing it
	// periodically keeps probabilities calibrated.
	sileroResetInterval = 5 * time.Second
)

// ErrModelMissing is returned when the Silero model file does not exist.
var ErrModelMissing = errors.New("vad: silero model file not found")

// Silero is a stateful wrapper for the Silero VAD ONNX model. Not safe for
// concurrent use; hearth calls it from the single frame loop.
//
// The model consumes 512-sample chunks. An 80ms frame (1280 samples) is fed
// through in chunks with a carry buffer across frames; the frame is speech
// if any chunk's probability reaches the threshold.
type Silero struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, 576)
	state    *ort.Tensor[float32] // (2, 1, 128)
	sr       *ort.Tensor[int64]   // (1,) = 16000
	output   *ort.Tensor[float32] // (1, 1) speech prob
	stateOut *ort.Tensor[float32] // (2, 1, 128) next state

	threshold float32
	context   [sileroContextSamples]float32
	carry     []float32
	lastReset time.Time
}

// NewSilero loads the Silero VAD model and creates an inference session.
// The onnxruntime environment must already be initialized.
func NewSilero(modelPath string, threshold float32) (*Silero, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelMissing, modelPath)
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.New("vad: threshold must be in [0, 1]")
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, sileroInputSamples), make([]float32, sileroInputSamples))
	if err != nil {
		return nil, err
	}
	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroStateSize))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, err
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{sileroSampleRate})
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		return nil, err
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		return nil, err
	}
	stateOutTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, err
	}

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateOutTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		_ = outputTensor.Destroy()
		_ = stateOutTensor.Destroy()
		return nil, err
	}

	return &Silero{
		session:   sess,
		input:     inputTensor,
		state:     stateTensor,
		sr:        srTensor,
		output:    outputTensor,
		stateOut:  stateOutTensor,
		threshold: threshold,
		carry:     make([]float32, 0, sileroChunkSamples),
		lastReset: time.Now(),
	}, nil
}

// IsSpeech classifies one frame. The maximum chunk probability within the
// frame decides speech vs silence.
func (v *Silero) IsSpeech(samples []float32) (bool, error) {
	if time.Since(v.lastReset) >= sileroResetInterval {
		v.resetState()
	}

	v.carry = append(v.carry, samples...)

	var maxProb float32
	for len(v.carry) >= sileroChunkSamples {
		prob, err := v.chunkProb(v.carry[:sileroChunkSamples])
		if err != nil {
			return false, err
		}
		if prob > maxProb {
			maxProb = prob
		}
		v.carry = v.carry[:copy(v.carry, v.carry[sileroChunkSamples:])]
	}
	return maxProb >= v.threshold, nil
}

// chunkProb runs one 512-sample chunk through the model. No allocations in
// the hot path; session tensors are reused.
func (v *Silero) chunkProb(chunk []float32) (float32, error) {
	inputData := v.input.GetData()
	copy(inputData[:sileroContextSamples], v.context[:])
	copy(inputData[sileroContextSamples:], chunk)

	// Carry the last 64 samples as context for the next chunk.
	copy(v.context[:], inputData[sileroInputSamples-sileroContextSamples:])

	if err := v.session.Run(); err != nil {
		return 0, err
	}

	copy(v.state.GetData(), v.stateOut.GetData())
	return v.output.GetData()[0], nil
}

// Reset clears model state, context and the carry buffer.
func (v *Silero) Reset() {
	v.resetState()
	v.carry = v.carry[:0]
}

func (v *Silero) resetState() {
	for i := range v.context {
		v.context[i] = 0
	}
	v.state.ZeroContents()
	v.lastReset = time.Now()
}

// Close releases the inference session.
func (v *Silero) Close() error {
	return v.session.Destroy()
}

var _ Detector = (*Silero)(nil)
