// Package recording accumulates one utterance of microphone audio after a
// wake-word trigger, gated by voice-activity detection.
//
// A session stops on the first of: trailing silence after speech, a
// no-speech timeout when nothing was ever said, or a hard duration ceiling.
// Sessions that never contained speech must be discarded by the caller
// without invoking transcription — false triggers (including the system's
// own acknowledgement tone bleeding into the mic) would otherwise produce
// nonsense turns.
package recording

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hearthlabs/hearth/pkg/audioio"
	"github.com/hearthlabs/hearth/pkg/vad"
)

// StopReason says why a session ended.
type StopReason string

const (
	// StopSilence: trailing silence after speech reached the threshold.
	StopSilence StopReason = "silence"
	// StopNoSpeech: the no-speech timeout elapsed before any speech frame.
	StopNoSpeech StopReason = "no_speech"
	// StopMaxDuration: the hard utterance ceiling was hit.
	StopMaxDuration StopReason = "max_duration"
)

// Config holds recording session parameters.
type Config struct {
	// SilenceTimeout is the trailing-silence duration that ends a session
	// once speech has occurred. Default: 1500ms.
	SilenceTimeout time.Duration

	// NoSpeechTimeout ends a session that never contained speech.
	// Default: 4000ms.
	NoSpeechTimeout time.Duration

	// MaxDuration is the hard per-utterance ceiling. Default: 10s.
	MaxDuration time.Duration
}

// DefaultConfig returns a Config with hearth's defaults.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout:  1500 * time.Millisecond,
		NoSpeechTimeout: 4000 * time.Millisecond,
		MaxDuration:     10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SilenceTimeout <= 0 {
		return errors.New("recording: SilenceTimeout must be > 0")
	}
	if c.NoSpeechTimeout <= 0 {
		return errors.New("recording: NoSpeechTimeout must be > 0")
	}
	if c.MaxDuration <= 0 {
		return errors.New("recording: MaxDuration must be > 0")
	}
	if c.MaxDuration < c.SilenceTimeout {
		return errors.New("recording: MaxDuration must be >= SilenceTimeout")
	}
	return nil
}

// Result is a finalized recording.
type Result struct {
	// PCM is the accumulated utterance audio.
	PCM []int16

	// SampleRate of the PCM buffer.
	SampleRate int

	// HasSpoken is true if at least one frame was classified as speech.
	// When false the caller must skip transcription entirely.
	HasSpoken bool

	// Duration is the total recorded duration.
	Duration time.Duration

	// StoppedBy says which condition ended the session.
	StoppedBy StopReason
}

// Session accumulates one utterance. It is created at the detection instant
// and owns its buffer exclusively until Feed reports completion; it must
// not be reused afterwards.
type Session struct {
	cfg    Config
	vad    vad.Detector
	logger *slog.Logger

	pcm        []int16
	sampleRate int
	elapsed    time.Duration
	trailing   time.Duration
	hasSpoken  bool
	done       bool
}

// New creates a session. The VAD detector is shared with the caller but
// only used from the frame loop.
func New(cfg Config, detector vad.Detector, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if detector == nil {
		return nil, errors.New("recording: vad detector is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	detector.Reset()
	return &Session{
		cfg:    cfg,
		vad:    detector,
		logger: logger,
	}, nil
}

// HasSpoken reports whether any frame so far was classified as speech.
func (s *Session) HasSpoken() bool { return s.hasSpoken }

// Elapsed returns the accumulated duration so far.
func (s *Session) Elapsed() time.Duration { return s.elapsed }

// Feed appends one frame and evaluates the stop conditions. It returns the
// finalized Result and true when the session has ended; the session must
// not be fed afterwards. A VAD error is logged and the frame counted as
// silence — the duration ceilings still bound the session either way.
func (s *Session) Feed(frame audioio.Frame) (Result, bool) {
	if s.done {
		return Result{}, false
	}

	s.pcm = append(s.pcm, frame.Samples...)
	s.sampleRate = frame.SampleRate
	s.elapsed += frame.Duration()

	speech, err := s.vad.IsSpeech(frame.Float32())
	if err != nil {
		s.logger.Warn("vad error, counting frame as silence", "err", err)
		speech = false
	}

	if speech {
		if !s.hasSpoken {
			s.hasSpoken = true
			s.logger.Debug("speech started", "at", s.elapsed)
		}
		s.trailing = 0
	} else {
		s.trailing += frame.Duration()
	}

	switch {
	case s.hasSpoken && s.trailing >= s.cfg.SilenceTimeout:
		return s.finish(StopSilence), true
	case !s.hasSpoken && s.elapsed >= s.cfg.NoSpeechTimeout:
		return s.finish(StopNoSpeech), true
	case s.elapsed >= s.cfg.MaxDuration:
		return s.finish(StopMaxDuration), true
	}
	return Result{}, false
}

func (s *Session) finish(reason StopReason) Result {
	s.done = true
	res := Result{
		PCM:        s.pcm,
		SampleRate: s.sampleRate,
		HasSpoken:  s.hasSpoken,
		Duration:   s.elapsed,
		StoppedBy:  reason,
	}
	s.pcm = nil
	s.logger.Debug("recording finished",
		"reason", reason,
		"duration", res.Duration,
		"has_spoken", res.HasSpoken,
	)
	return res
}
