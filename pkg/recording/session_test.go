package recording

import (
	"testing"
	"time"

	"github.com/hearthlabs/hearth/pkg/audioio"
)

// scriptedVAD replays a fixed speech/silence sequence, then silence.
type scriptedVAD struct {
	script []bool
	idx    int
	resets int
}

func (v *scriptedVAD) IsSpeech(samples []float32) (bool, error) {
	if v.idx < len(v.script) {
		s := v.script[v.idx]
		v.idx++
		return s, nil
	}
	return false, nil
}

func (v *scriptedVAD) Reset() { v.resets++ }

func frame(seq uint64) audioio.Frame {
	return audioio.Frame{
		Seq:        seq,
		Samples:    make([]int16, 1280),
		Time:       time.Now(),
		SampleRate: 16000,
	}
}

// feed pushes frames until the session completes or limit frames were fed.
func feed(t *testing.T, s *Session, limit int) (Result, int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if res, done := s.Feed(frame(uint64(i))); done {
			return res, i + 1
		}
	}
	t.Fatalf("session did not stop within %d frames", limit)
	return Result{}, 0
}

func testCfg() Config {
	return Config{
		SilenceTimeout:  400 * time.Millisecond, // 5 frames at 80ms
		NoSpeechTimeout: 800 * time.Millisecond, // 10 frames
		MaxDuration:     2 * time.Second,        // 25 frames
	}
}

func TestSession_StopsOnTrailingSilence(t *testing.T) {
	// 3 speech frames then silence: stop at last speech + SilenceTimeout,
	// within one frame interval.
	v := &scriptedVAD{script: []bool{true, true, true}}
	s, err := New(testCfg(), v, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, n := feed(t, s, 100)

	if res.StoppedBy != StopSilence {
		t.Errorf("StoppedBy = %s, want %s", res.StoppedBy, StopSilence)
	}
	if !res.HasSpoken {
		t.Error("HasSpoken = false, want true")
	}
	// 3 speech frames + 5 silence frames = 8 frames (640ms).
	if n != 8 {
		t.Errorf("stopped after %d frames, want 8", n)
	}
	if res.Duration != 640*time.Millisecond {
		t.Errorf("Duration = %v, want 640ms", res.Duration)
	}
	if len(res.PCM) != 8*1280 {
		t.Errorf("PCM length = %d, want %d", len(res.PCM), 8*1280)
	}
}

func TestSession_NoSpeechDiscard(t *testing.T) {
	v := &scriptedVAD{} // all silence
	s, err := New(testCfg(), v, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, n := feed(t, s, 100)

	if res.StoppedBy != StopNoSpeech {
		t.Errorf("StoppedBy = %s, want %s", res.StoppedBy, StopNoSpeech)
	}
	if res.HasSpoken {
		t.Error("HasSpoken = true for silence-only session")
	}
	if n != 10 {
		t.Errorf("stopped after %d frames, want 10 (NoSpeechTimeout)", n)
	}
}

func TestSession_MaxDurationCeiling(t *testing.T) {
	// Continuous speech never accumulates trailing silence; only the hard
	// ceiling can end the session.
	script := make([]bool, 1000)
	for i := range script {
		script[i] = true
	}
	s, err := New(testCfg(), &scriptedVAD{script: script}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, n := feed(t, s, 1000)

	if res.StoppedBy != StopMaxDuration {
		t.Errorf("StoppedBy = %s, want %s", res.StoppedBy, StopMaxDuration)
	}
	if n != 25 {
		t.Errorf("stopped after %d frames, want 25 (MaxDuration)", n)
	}
	if !res.HasSpoken {
		t.Error("HasSpoken = false, want true")
	}
}

func TestSession_SpeechResetsTrailingSilence(t *testing.T) {
	// speech, 4 silence (just under the 5-frame threshold), speech again,
	// then silence: the pause must not end the session early.
	script := []bool{true, false, false, false, false, true}
	s, err := New(testCfg(), &scriptedVAD{script: script}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, n := feed(t, s, 100)

	if res.StoppedBy != StopSilence {
		t.Errorf("StoppedBy = %s, want %s", res.StoppedBy, StopSilence)
	}
	// 6 scripted frames + 5 trailing silence frames.
	if n != 11 {
		t.Errorf("stopped after %d frames, want 11", n)
	}
}

func TestSession_ResetsVADOnCreation(t *testing.T) {
	v := &scriptedVAD{}
	if _, err := New(testCfg(), v, nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.resets != 1 {
		t.Errorf("vad resets = %d, want 1", v.resets)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"zero silence timeout", func(c *Config) { c.SilenceTimeout = 0 }, true},
		{"zero no-speech timeout", func(c *Config) { c.NoSpeechTimeout = 0 }, true},
		{"zero max duration", func(c *Config) { c.MaxDuration = 0 }, true},
		{"ceiling below silence timeout", func(c *Config) {
			c.MaxDuration = 100 * time.Millisecond
			c.SilenceTimeout = time.Second
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
