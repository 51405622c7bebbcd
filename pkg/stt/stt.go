// Package stt is the transcription boundary: one utterance of PCM in, one
// transcript out.
package stt

import (
	"context"
	"fmt"
)

// Transcriber converts a recorded utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// APIError is a non-2xx response from the transcription service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the error is transient.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
