// Package wakeword detects a wake phrase in a continuous 16kHz mono stream.
//
// Detection runs three chained inference stages over sliding windows: a
// melspectrogram front-end, a speech embedding model, and a per-phrase wake
// classifier. Scores are only produced once both ring buffers have filled
// and a one-shot warm-up interval has elapsed; until then the models are
// still settling on real audio and their output is noise.
package wakeword

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Detection is a wake-word trigger event.
type Detection struct {
	// Score is the classifier confidence in [0, 1].
	Score float32

	// Time is when the triggering frame was scored.
	Time time.Time
}

// Detector runs the wake-word inference chain. It is single-threaded with
// respect to Ingest/Reset; the caller must serialize them (hearth feeds it
// from one frame loop). WarmUp may be read from any goroutine.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	mel   melStage
	embed embedStage
	score scoreStage

	features   *ring[[]float32]
	embeddings *ring[[]float32]

	// armed gates re-triggering: once a detection fires, the trigger
	// re-arms only after the score falls back below the threshold.
	armed bool

	warmTimerOnce sync.Once
	warmCh        chan struct{}
	warmed        atomic.Bool

	frameErrs atomic.Int64
}

// New creates an uninitialized detector. Call Initialize before Ingest.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:        cfg,
		logger:     logger,
		features:   newRing[[]float32](featureDepth),
		embeddings: newRing[[]float32](embeddingDepth),
		armed:      true,
		warmCh:     make(chan struct{}),
	}, nil
}

// Initialize loads the three inference stages. A missing asset returns a
// ModelLoadError; this is fatal and not recoverable at runtime.
func (d *Detector) Initialize() error {
	if err := initRuntime(); err != nil {
		return &ModelLoadError{Path: "onnxruntime", Err: err}
	}

	mel, err := newOnnxMel(d.cfg.MelModelPath())
	if err != nil {
		return err
	}
	embed, err := newOnnxEmbed(d.cfg.EmbeddingModelPath())
	if err != nil {
		_ = mel.destroy()
		return err
	}
	score, err := newOnnxScore(d.cfg.WakeModelPath())
	if err != nil {
		_ = mel.destroy()
		_ = embed.destroy()
		return err
	}

	d.mel = mel
	d.embed = embed
	d.score = score

	d.logger.Info("wake-word detector initialized",
		"model", d.cfg.WakeModel,
		"threshold", d.cfg.Threshold,
		"warmup", d.cfg.WarmUp,
	)
	return nil
}

// Ingest processes one 1280-sample frame (normalized float32) and reports a
// detection when the classifier crosses the threshold. A single frame's
// inference failure is logged and treated as score 0; it never stops the
// stream.
func (d *Detector) Ingest(samples []float32) (Detection, bool) {
	melFrames, err := d.mel.compute(samples)
	if err != nil {
		d.failOpen("mel", err)
		return Detection{}, false
	}
	for _, f := range melFrames {
		d.features.Push(f)
	}
	if !d.features.Full() {
		return Detection{}, false
	}

	embedding, err := d.embed.compute(d.features.Window())
	if err != nil {
		d.failOpen("embedding", err)
		return Detection{}, false
	}
	d.embeddings.Push(embedding)
	if !d.embeddings.Full() {
		return Detection{}, false
	}

	// The embedding buffer filling for the first time starts the one-shot
	// warm-up timer. The warm flag is never cleared afterwards.
	d.warmTimerOnce.Do(func() {
		d.logger.Debug("wake-word buffers full, warm-up started", "duration", d.cfg.WarmUp)
		time.AfterFunc(d.cfg.WarmUp, func() {
			d.warmed.Store(true)
			close(d.warmCh)
			d.logger.Info("wake-word warm-up complete")
		})
	})
	if !d.warmed.Load() {
		return Detection{}, false
	}

	score, err := d.score.compute(d.embeddings.Window())
	if err != nil {
		d.failOpen("classifier", err)
		score = 0
	}

	if score >= d.cfg.Threshold {
		if d.armed {
			d.armed = false
			return Detection{Score: score, Time: time.Now()}, true
		}
		return Detection{}, false
	}
	d.armed = true
	return Detection{}, false
}

func (d *Detector) failOpen(stage string, err error) {
	d.frameErrs.Add(1)
	d.logger.Warn("wake-word inference error, treating frame as score 0",
		"stage", stage, "err", err)
}

// WarmUp returns a channel closed when the warm-up interval has elapsed.
// Already closed if warm-up is done. Callers must apply their own timeout
// and proceed with a warning on expiry rather than block indefinitely.
func (d *Detector) WarmUp() <-chan struct{} {
	return d.warmCh
}

// Warmed reports whether the warm-up interval has elapsed.
func (d *Detector) Warmed() bool {
	return d.warmed.Load()
}

// Threshold returns the configured detection threshold.
func (d *Detector) Threshold() float32 {
	return d.cfg.Threshold
}

// FrameErrors returns the count of per-frame inference failures.
func (d *Detector) FrameErrors() int64 {
	return d.frameErrs.Load()
}

// Reset clears both ring buffers and per-utterance trigger state.
// The warm-up-complete flag is never cleared; warm-up happens at most once
// per process.
func (d *Detector) Reset() {
	d.features.Reset()
	d.embeddings.Reset()
	d.armed = true
}

// Close releases the inference sessions.
func (d *Detector) Close() error {
	var first error
	if d.mel != nil {
		if err := d.mel.destroy(); err != nil {
			first = err
		}
	}
	if d.embed != nil {
		if err := d.embed.destroy(); err != nil && first == nil {
			first = err
		}
	}
	if d.score != nil {
		if err := d.score.destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
