package stt

import (
	"context"
	"sync"
)

// Mock is a scripted Transcriber for tests.
type Mock struct {
	mu      sync.Mutex
	results []string
	err     error
	calls   int
	lastPCM []int16
}

// NewMock creates a mock returning the given transcripts in order; the
// last one repeats.
func NewMock(results ...string) *Mock {
	return &Mock{results: results}
}

// SetError makes every subsequent call fail.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Transcribe returns the next scripted transcript.
func (m *Mock) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPCM = pcm
	if m.err != nil {
		return "", m.err
	}
	if len(m.results) == 0 {
		return "", nil
	}
	idx := m.calls - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	return m.results[idx], nil
}

// Calls returns how many times Transcribe ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPCM returns the most recent audio buffer.
func (m *Mock) LastPCM() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPCM
}
