package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start begins audio playback.
	Start(ctx context.Context) error

	// Stop halts audio playback.
	// It is safe to call Stop multiple times.
	Stop() error

	// Write queues PCM16 samples at the sink's sample rate for playback.
	// It may block if the output buffer is full.
	Write(ctx context.Context, samples []int16) error

	// Flush blocks until all buffered audio has been played.
	// This is the playback-complete signal.
	Flush(ctx context.Context) error

	// Clear discards all buffered audio immediately.
	// Used to interrupt playback on barge-in.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "malgo", "mock").
	Name() string

	// Close releases all resources.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// SamplesWritten is the total number of samples queued.
	SamplesWritten int64 `json:"samples_written"`

	// BufferedSamples is the number of samples currently buffered.
	BufferedSamples int64 `json:"buffered_samples"`

	// Cleared is the number of Clear calls (playback interruptions).
	Cleared int64 `json:"cleared"`

	// Running indicates if the sink is currently playing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
