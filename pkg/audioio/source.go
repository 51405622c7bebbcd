package audioio

import (
	"context"
	"io"
)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, frames are delivered on Frames in arrival order.
	Start(ctx context.Context) error

	// Stop halts audio capture and closes the frame channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Frames returns the channel that receives capture frames.
	// The channel is closed when the source is stopped.
	Frames() <-chan Frame

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "malgo", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// FramesRead is the total number of frames delivered.
	FramesRead int64 `json:"frames_read"`

	// Dropped is the number of frames dropped because the consumer
	// fell behind the capture rate.
	Dropped int64 `json:"dropped"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
