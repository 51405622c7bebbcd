package tts

import (
	"context"
	"sync"
)

// Mock is a Synthesizer for tests: it returns a silent buffer whose length
// is proportional to the text length (1000 samples per character at
// 16kHz).
type Mock struct {
	mu    sync.Mutex
	err   error
	calls []string
}

// NewMock creates a mock synthesizer.
func NewMock() *Mock { return &Mock{} }

// SetError makes every subsequent call fail.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Synthesize returns a deterministic buffer.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.err != nil {
		return nil, 0, m.err
	}
	return make([]int16, len(text)*1000), 16000, nil
}

// Calls returns the synthesized texts in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
