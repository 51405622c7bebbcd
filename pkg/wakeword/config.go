package wakeword

import (
	"errors"
	"path/filepath"
	"time"
)

// Model geometry. The detection chain is melspectrogram -> embedding ->
// wake classifier over sliding windows of 80ms frames.
const (
	// FrameSamples is the required input frame size (80ms at 16kHz).
	FrameSamples = 1280

	melFramesPerChunk = 5  // mel frames produced per input frame
	melBins           = 32 // mel bins per mel frame
	featureDepth      = 76 // mel frames needed for one embedding
	embeddingDim      = 96 // embedding vector size
	embeddingDepth    = 16 // embeddings needed for one score
)

// Config holds wake-word detector configuration.
type Config struct {
	// ModelDir contains melspectrogram.onnx, embedding_model.onnx and the
	// wake model named by WakeModel.
	ModelDir string

	// WakeModel is the wake classifier file name (e.g. "hey_hearth.onnx").
	WakeModel string

	// Threshold is the detection confidence threshold in [0, 1].
	// Lower values are more sensitive and produce more false positives.
	Threshold float32

	// WarmUp is the settle period after the embedding buffer first fills.
	// Scores are not trusted (or produced) before it elapses.
	WarmUp time.Duration
}

// DefaultConfig returns a Config with hearth's defaults.
func DefaultConfig() Config {
	return Config{
		ModelDir:  "models",
		WakeModel: "hey_hearth.onnx",
		Threshold: 0.5,
		WarmUp:    2500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ModelDir == "" {
		return errors.New("wakeword: ModelDir is required")
	}
	if c.WakeModel == "" {
		return errors.New("wakeword: WakeModel is required")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.New("wakeword: Threshold must be in [0, 1]")
	}
	if c.WarmUp <= 0 {
		return errors.New("wakeword: WarmUp must be > 0")
	}
	return nil
}

// MelModelPath returns the melspectrogram model path.
func (c *Config) MelModelPath() string {
	return filepath.Join(c.ModelDir, "melspectrogram.onnx")
}

// EmbeddingModelPath returns the embedding model path.
func (c *Config) EmbeddingModelPath() string {
	return filepath.Join(c.ModelDir, "embedding_model.onnx")
}

// WakeModelPath returns the wake classifier model path.
func (c *Config) WakeModelPath() string {
	return filepath.Join(c.ModelDir, c.WakeModel)
}
