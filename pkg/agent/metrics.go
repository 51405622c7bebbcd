package agent

import (
	"sync"
	"time"
)

// Metrics tracks latency at each stage of one conversation turn.
// All durations are measured from the moment speech ends.
type Metrics struct {
	// Timestamps for key events
	SpeechEndTime  time.Time // Recording session completed
	TranscriptTime time.Time // Transcription completed
	ReplyTime      time.Time // Final reply text available
	SpeakTime      time.Time // Reply playback started

	// Computed latencies (from speech end)
	ASRLatency   time.Duration // Time to complete transcription
	ReplyLatency time.Duration // Time to final reply text (chat + tools)
	TotalLatency time.Duration // Time to playback start

	// Counts for this conversation turn
	ToolCalls int
	Failed    bool
}

// Counters are process-lifetime totals.
type Counters struct {
	Detections  int
	Turns       int
	BargeIns    int
	FailedTurns int
	EmptyTurns  int // sessions discarded for containing no speech
}

// MetricsCollector collects per-turn latency metrics and lifetime
// counters. Safe for concurrent use.
type MetricsCollector struct {
	mu       sync.Mutex
	current  Metrics
	recent   []Metrics
	counters Counters
}

const metricsHistory = 32

// NewMetricsCollector creates a collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{recent: make([]Metrics, 0, metricsHistory)}
}

// MarkSpeechEnd starts a new turn. This is the reference point for all
// latency measurements.
func (m *MetricsCollector) MarkSpeechEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{SpeechEndTime: time.Now()}
	m.counters.Turns++
}

// MarkTranscript records transcription completion.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.ASRLatency = m.current.TranscriptTime.Sub(m.current.SpeechEndTime)
	}
}

// MarkReply records the final reply text being available.
func (m *MetricsCollector) MarkReply() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ReplyTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.ReplyLatency = m.current.ReplyTime.Sub(m.current.SpeechEndTime)
	}
}

// MarkSpeakStart records playback starting and finalizes the turn.
func (m *MetricsCollector) MarkSpeakStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.SpeakTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TotalLatency = m.current.SpeakTime.Sub(m.current.SpeechEndTime)
	}
	m.finishLocked()
}

// MarkToolCall counts one tool execution in the current turn.
func (m *MetricsCollector) MarkToolCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ToolCalls++
}

// MarkFailed finalizes the turn as failed.
func (m *MetricsCollector) MarkFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Failed = true
	m.counters.FailedTurns++
	m.finishLocked()
}

// CountDetection counts one wake-word detection.
func (m *MetricsCollector) CountDetection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Detections++
}

// CountBargeIn counts one barge-in.
func (m *MetricsCollector) CountBargeIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.BargeIns++
}

// CountEmptySession counts a discarded no-speech session.
func (m *MetricsCollector) CountEmptySession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.EmptyTurns++
}

func (m *MetricsCollector) finishLocked() {
	if m.current.SpeechEndTime.IsZero() {
		return
	}
	if len(m.recent) == metricsHistory {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:metricsHistory-1]
	}
	m.recent = append(m.recent, m.current)
	m.current = Metrics{}
}

// LastTurn returns the most recent completed turn.
func (m *MetricsCollector) LastTurn() (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recent) == 0 {
		return Metrics{}, false
	}
	return m.recent[len(m.recent)-1], true
}

// Recent returns the retained turns, oldest first.
func (m *MetricsCollector) Recent() []Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Metrics(nil), m.recent...)
}

// Totals returns the lifetime counters.
func (m *MetricsCollector) Totals() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}
