package wakeword

import (
	"errors"
	"testing"
	"time"
)

// fakeMel expands every frame into 5 constant mel frames.
type fakeMel struct {
	err error
}

func (f *fakeMel) compute(samples []float32) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	frames := make([][]float32, melFramesPerChunk)
	for i := range frames {
		frames[i] = make([]float32, melBins)
	}
	return frames, nil
}

func (f *fakeMel) destroy() error { return nil }

type fakeEmbed struct {
	calls int
	err   error
}

func (f *fakeEmbed) compute(window [][]float32) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, embeddingDim), nil
}

func (f *fakeEmbed) destroy() error { return nil }

// fakeScore replays a scripted score sequence, then returns rest.
type fakeScore struct {
	scores []float32
	rest   float32
	calls  int
	err    error
}

func (f *fakeScore) compute(window [][]float32) (float32, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.scores) > 0 {
		s := f.scores[0]
		f.scores = f.scores[1:]
		return s, nil
	}
	return f.rest, nil
}

func (f *fakeScore) destroy() error { return nil }

func newTestDetector(t *testing.T, score *fakeScore, warmup time.Duration) (*Detector, *fakeEmbed) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WarmUp = warmup
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	embed := &fakeEmbed{}
	d.mel = &fakeMel{}
	d.embed = embed
	d.score = score
	return d, embed
}

func silentFrame() []float32 {
	return make([]float32, FrameSamples)
}

// framesUntilScoring is how many frames it takes to fill both ring buffers:
// 16 frames fill the feature ring (76 mel frames at 5 per frame), then 15
// more fill the embedding ring.
const framesUntilScoring = 31

func TestDetector_NoScoreBeforeBuffersFull(t *testing.T) {
	score := &fakeScore{rest: 0.99}
	d, _ := newTestDetector(t, score, time.Millisecond)

	for i := 0; i < framesUntilScoring-1; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			t.Fatalf("detection before buffers full at frame %d", i)
		}
	}
	if score.calls != 0 {
		t.Errorf("classifier called %d times before buffers full, want 0", score.calls)
	}
}

func TestDetector_NoScoreBeforeWarmUpElapsed(t *testing.T) {
	score := &fakeScore{rest: 0.99}
	d, _ := newTestDetector(t, score, time.Hour)

	for i := 0; i < framesUntilScoring+20; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			t.Fatalf("detection during warm-up at frame %d", i)
		}
	}
	if score.calls != 0 {
		t.Errorf("classifier called %d times during warm-up, want 0", score.calls)
	}
}

func waitWarm(t *testing.T, d *Detector) {
	t.Helper()
	select {
	case <-d.WarmUp():
	case <-time.After(time.Second):
		t.Fatal("warm-up did not complete")
	}
}

func TestDetector_FiresOncePerUtterance(t *testing.T) {
	// Score crosses the threshold at the first post-warm-up window and
	// stays above it: exactly one detection must fire.
	score := &fakeScore{rest: 0.9}
	d, _ := newTestDetector(t, score, time.Millisecond)

	for i := 0; i < framesUntilScoring; i++ {
		d.Ingest(silentFrame())
	}
	waitWarm(t, d)

	detections := 0
	for i := 0; i < 10; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			detections++
		}
	}
	if detections != 1 {
		t.Errorf("detections = %d, want 1 (no re-fire while above threshold)", detections)
	}
}

func TestDetector_RearmsAfterScoreDrops(t *testing.T) {
	score := &fakeScore{scores: []float32{0.9, 0.9, 0.1, 0.8}, rest: 0.1}
	d, _ := newTestDetector(t, score, time.Millisecond)

	for i := 0; i < framesUntilScoring; i++ {
		d.Ingest(silentFrame())
	}
	waitWarm(t, d)

	var got []bool
	for i := 0; i < 4; i++ {
		_, ok := d.Ingest(silentFrame())
		got = append(got, ok)
	}
	want := []bool{true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: detected = %v, want %v (sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestDetector_SilenceProducesNoDetections(t *testing.T) {
	score := &fakeScore{rest: 0.01}
	d, _ := newTestDetector(t, score, time.Millisecond)

	// ~3 seconds of silence-only frames at 80ms each.
	for i := 0; i < 38; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			t.Fatalf("unexpected detection at silent frame %d", i)
		}
	}
}

func TestDetector_InferenceErrorFailsOpen(t *testing.T) {
	score := &fakeScore{err: errors.New("session crashed")}
	d, _ := newTestDetector(t, score, time.Millisecond)

	for i := 0; i < framesUntilScoring; i++ {
		d.Ingest(silentFrame())
	}
	waitWarm(t, d)

	for i := 0; i < 5; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			t.Fatal("detection fired despite classifier errors")
		}
	}
	if d.FrameErrors() == 0 {
		t.Error("FrameErrors not counted")
	}
}

func TestDetector_ResetKeepsWarmFlag(t *testing.T) {
	score := &fakeScore{rest: 0.9}
	d, embed := newTestDetector(t, score, time.Millisecond)

	for i := 0; i < framesUntilScoring; i++ {
		d.Ingest(silentFrame())
	}
	waitWarm(t, d)

	d.Reset()
	if !d.Warmed() {
		t.Fatal("Reset cleared the warm-up flag")
	}

	// Buffers must refill before scoring resumes, but no second warm-up wait.
	before := embed.calls
	scoredAt := -1
	for i := 0; i < framesUntilScoring+1; i++ {
		if _, ok := d.Ingest(silentFrame()); ok {
			scoredAt = i
			break
		}
	}
	if scoredAt != framesUntilScoring-1 {
		t.Errorf("first detection after Reset at frame %d, want %d", scoredAt, framesUntilScoring-1)
	}
	if embed.calls <= before {
		t.Error("embedding stage not re-run after Reset")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"missing model dir", func(c *Config) { c.ModelDir = "" }, true},
		{"missing wake model", func(c *Config) { c.WakeModel = "" }, true},
		{"threshold above 1", func(c *Config) { c.Threshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }, true},
		{"zero warmup", func(c *Config) { c.WarmUp = 0 }, true},
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
