package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or a sine wave) on a ticker, and
// also accepts frames pushed directly for deterministic tests.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	frameCh chan Frame
	stopCh  chan struct{}
	seq     uint64

	framesRead atomic.Int64
	dropped    atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	realtime  bool
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithRealtime makes the mock generate frames on a real-time ticker.
// Without it the source is push-only, which is what most tests want.
func WithRealtime() MockSourceOption {
	return func(m *MockSource) {
		m.realtime = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frameCh:   make(chan Frame, cfg.QueueDepth),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio (realtime mode) or arms the source for Push.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})

	if m.realtime {
		go m.generateLoop(ctx)
	}
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = m.Stop()
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Push(m.generateSamples())
		}
	}
}

func (m *MockSource) generateSamples() []int16 {
	frameSize := m.cfg.FrameSize()
	samples := make([]int16, frameSize)
	if m.frequency > 0 {
		for i := 0; i < frameSize; i++ {
			v := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			samples[i] = int16(v * 32767)
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	return samples
}

// Push delivers one frame of samples to the consumer.
// Returns false if the frame was dropped (queue full or source stopped).
func (m *MockSource) Push(samples []int16) bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	frame := Frame{
		Seq:        m.seq,
		Samples:    samples,
		Time:       time.Now(),
		SampleRate: m.cfg.SampleRate,
	}
	ch := m.frameCh
	m.mu.Unlock()

	select {
	case ch <- frame:
		m.mu.Lock()
		m.seq++
		m.mu.Unlock()
		m.framesRead.Add(1)
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// PushSilence pushes n frames of silence.
func (m *MockSource) PushSilence(n int) {
	for i := 0; i < n; i++ {
		m.Push(make([]int16, m.cfg.FrameSize()))
	}
}

// Stop halts audio generation and closes the frame channel.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	close(m.frameCh)
	return nil
}

// Frames returns the frame channel.
func (m *MockSource) Frames() <-chan Frame {
	return m.frameCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		FramesRead: m.framesRead.Load(),
		Dropped:    m.dropped.Load(),
		Running:    running,
		Backend:    "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing. It records every write and
// counts Clear calls so tests can assert on cue playback and barge-in.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	writes  [][]int16
	buffer  int64

	samplesWritten atomic.Int64
	cleared        atomic.Int64
	flushes        atomic.Int64
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records the samples.
func (m *MockSink) Write(ctx context.Context, samples []int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.writes = append(m.writes, append([]int16(nil), samples...))
	m.buffer += int64(len(samples))
	m.samplesWritten.Add(int64(len(samples)))
	return nil
}

// Flush completes immediately in mock mode.
func (m *MockSink) Flush(ctx context.Context) error {
	m.flushes.Add(1)
	m.mu.Lock()
	m.buffer = 0
	m.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Clear discards buffered audio and counts the interruption.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	m.buffer = 0
	m.mu.Unlock()
	m.cleared.Add(1)
	return nil
}

// Writes returns a copy of all recorded writes.
func (m *MockSink) Writes() [][]int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]int16, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount returns the number of Write calls.
func (m *MockSink) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// ClearCount returns the number of Clear calls.
func (m *MockSink) ClearCount() int64 {
	return m.cleared.Load()
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	buffered := m.buffer
	running := m.running
	m.mu.Unlock()
	return SinkStats{
		SamplesWritten:  m.samplesWritten.Load(),
		BufferedSamples: buffered,
		Cleared:         m.cleared.Load(),
		Running:         running,
		Backend:         "mock",
	}
}

var _ SinkWithStats = (*MockSink)(nil)
