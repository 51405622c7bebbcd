// Package vad classifies audio frames as speech or silence.
//
// The production detector wraps the Silero VAD ONNX model; an RMS energy
// detector is available as a model-free fallback and for deterministic
// tests. Both consume the same 80ms frames the rest of the pipeline uses.
package vad

import (
	"math"
)

// Detector classifies one frame of normalized float32 samples.
type Detector interface {
	// IsSpeech reports whether the frame contains speech.
	IsSpeech(samples []float32) (bool, error)

	// Reset clears internal state between utterances.
	Reset()
}

// Energy is a threshold detector on normalized RMS energy. It carries no
// model state; Reset is a no-op.
type Energy struct {
	// Threshold is the RMS level above which a frame counts as speech.
	// Typical speech at arm's length sits well above 0.01.
	Threshold float64
}

// NewEnergy creates an energy detector with the given RMS threshold.
func NewEnergy(threshold float64) *Energy {
	return &Energy{Threshold: threshold}
}

// IsSpeech reports whether the frame's RMS exceeds the threshold.
func (e *Energy) IsSpeech(samples []float32) (bool, error) {
	if len(samples) == 0 {
		return false, nil
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return rms >= e.Threshold, nil
}

// Reset is a no-op for the energy detector.
func (e *Energy) Reset() {}

var _ Detector = (*Energy)(nil)
