// Package audioio provides audio capture and playback for hearth.
//
// Capture delivers fixed-size PCM16 frames in strict arrival order; playback
// accepts PCM16 buffers and reports completion. Two backends are available:
//   - malgo (miniaudio) - production capture/playback on real hardware
//   - mock - deterministic synthetic audio for CI and tests
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best available backend (malgo).
	BackendAuto Backend = "auto"
	// BackendMalgo uses miniaudio via gen2brain/malgo.
	BackendMalgo Backend = "malgo"
	// BackendMock uses a synthetic implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration. The wake-word and VAD models require
// 16kHz mono PCM16; other rates are rejected at validation time.
type Config struct {
	// Backend specifies which audio backend to use. Default: "auto".
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz. Default: 16000.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int `json:"channels"`

	// FrameDuration is the duration of one capture frame.
	// Default: 80ms (1280 samples at 16kHz).
	FrameDuration time.Duration `json:"frame_duration"`

	// Device is the platform-specific device identifier, empty for default.
	Device string `json:"device"`

	// QueueDepth is the capacity of the frame channel between the capture
	// callback and the consumer. When full, frames are dropped and counted.
	// Default: 32.
	QueueDepth int `json:"queue_depth"`
}

// DefaultConfig returns a Config with hearth's defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: 80 * time.Millisecond,
		QueueDepth:    32,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	return nil
}

// FrameSize returns the number of samples per frame.
func (c Config) FrameSize() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// FrameBytes returns the size of a frame in bytes (int16 samples).
func (c Config) FrameBytes() int {
	return c.FrameSize() * c.Channels * 2
}
