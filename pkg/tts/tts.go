// Package tts is the speech-synthesis boundary: text in, PCM out.
package tts

import (
	"context"
	"fmt"
)

// Synthesizer converts reply text to PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (pcm []int16, sampleRate int, err error)
}

// APIError is a non-2xx response from the synthesis service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the error is transient.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
