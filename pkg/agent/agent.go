// Package agent wires the audio pipeline, wake-word detector, recording
// session and conversation services into the interaction loop.
//
// One goroutine consumes microphone frames in strict arrival order;
// detector ingest and session feeding run inline on it. Everything slow
// (transcription, chat, tools, synthesis, playback) runs on a separate
// per-turn goroutine so frame ingestion is never blocked. A turn has no
// mid-flight cancellation: it runs to completion or its timeout.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlabs/hearth/pkg/audioio"
	"github.com/hearthlabs/hearth/pkg/llm"
	"github.com/hearthlabs/hearth/pkg/recording"
	"github.com/hearthlabs/hearth/pkg/stt"
	"github.com/hearthlabs/hearth/pkg/tools"
	"github.com/hearthlabs/hearth/pkg/tts"
	"github.com/hearthlabs/hearth/pkg/vad"
	"github.com/hearthlabs/hearth/pkg/wakeword"
)

// WakeDetector is the slice of the wakeword detector the agent uses.
type WakeDetector interface {
	Ingest(samples []float32) (wakeword.Detection, bool)
	Reset()
	WarmUp() <-chan struct{}
	Warmed() bool
}

// Deps are the agent's collaborators, constructed by the caller.
type Deps struct {
	Source     audioio.Source
	Sink       audioio.Sink
	Detector   WakeDetector
	VAD        vad.Detector
	Transcribe stt.Transcriber
	Chat       llm.Provider
	Synth      tts.Synthesizer
	Executor   *tools.Executor
	Registry   *tools.Registry

	// ConnectTransport runs the device-subsystem connect attempt
	// (including remote tool registration). The transport's own bounded
	// retry means this always concludes; nil skips the wait.
	ConnectTransport func(ctx context.Context) error

	Logger *slog.Logger
}

// Agent is the interaction state machine.
type Agent struct {
	cfg  Config
	deps Deps

	logger  *slog.Logger
	hub     *Hub
	metrics *MetricsCollector
	history *history

	mu    sync.RWMutex
	state State

	// playGen invalidates a pending reply write when a barge-in clears
	// the sink before the stale turn goroutine reaches Sink.Write.
	playGen uint64

	// session is only touched from the frame loop.
	session *recording.Session

	// runCtx outlives individual frames; turn goroutines derive from it.
	runCtx context.Context

	sinkRate int
	started  time.Time

	lastMu         sync.Mutex
	lastTranscript string
	lastReply      string
}

// New creates an agent. All Deps except ConnectTransport are required.
func New(cfg Config, deps Deps) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Source == nil:
		return nil, errors.New("agent: Source is required")
	case deps.Sink == nil:
		return nil, errors.New("agent: Sink is required")
	case deps.Detector == nil:
		return nil, errors.New("agent: Detector is required")
	case deps.VAD == nil:
		return nil, errors.New("agent: VAD is required")
	case deps.Transcribe == nil:
		return nil, errors.New("agent: Transcribe is required")
	case deps.Chat == nil:
		return nil, errors.New("agent: Chat is required")
	case deps.Synth == nil:
		return nil, errors.New("agent: Synth is required")
	case deps.Executor == nil:
		return nil, errors.New("agent: Executor is required")
	case deps.Registry == nil:
		return nil, errors.New("agent: Registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Agent{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With("component", "agent"),
		hub:      NewHub(),
		metrics:  NewMetricsCollector(),
		history:  newHistory(cfg.SystemPrompt, cfg.HistoryLimit),
		state:    StateStartup,
		sinkRate: deps.Sink.Config().SampleRate,
	}, nil
}

// State returns the live interaction state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Hub returns the event broadcast hub.
func (a *Agent) Hub() *Hub { return a.hub }

// Metrics returns the latency collector.
func (a *Agent) Metrics() *MetricsCollector { return a.metrics }

// Uptime returns time since Run started.
func (a *Agent) Uptime() time.Duration {
	if a.started.IsZero() {
		return 0
	}
	return time.Since(a.started)
}

// LastExchange returns the most recent transcript and reply.
func (a *Agent) LastExchange() (transcript, reply string) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	return a.lastTranscript, a.lastReply
}

// Run starts audio and the frame loop, passes the startup gate, and
// blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.runCtx = ctx
	a.started = time.Now()

	if err := a.deps.Source.Start(ctx); err != nil {
		return fmt.Errorf("agent: start source: %w", err)
	}
	if err := a.deps.Sink.Start(ctx); err != nil {
		_ = a.deps.Source.Stop()
		return fmt.Errorf("agent: start sink: %w", err)
	}

	go a.startupGate(ctx)
	a.frameLoop(ctx)

	_ = a.deps.Source.Stop()
	_ = a.deps.Sink.Stop()
	return ctx.Err()
}

// startupGate waits for detector warm-up (bounded) and for the transport
// connect attempt to conclude, then opens the listening state.
func (a *Agent) startupGate(ctx context.Context) {
	select {
	case <-a.deps.Detector.WarmUp():
		a.logger.Info("wake-word detector warmed up")
	case <-time.After(a.cfg.WarmUpTimeout):
		a.logger.Warn("proceeding before detector warm-up", "timeout", a.cfg.WarmUpTimeout)
	case <-ctx.Done():
		return
	}

	if a.deps.ConnectTransport != nil {
		if err := a.deps.ConnectTransport(ctx); err != nil {
			a.logger.Warn("device transport unavailable, local tools only", "err", err)
		}
	}
	if ctx.Err() != nil {
		return
	}

	a.transition(StateListening)
	a.playCue(CueReady)
	a.logger.Info("listening for wake word", "tools", a.deps.Registry.Len())
}

func (a *Agent) frameLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-a.deps.Source.Frames():
			if !ok {
				return
			}
			a.handleFrame(frame)
		}
	}
}

// handleFrame dispatches one frame by the live state. Runs on the frame
// loop goroutine only.
func (a *Agent) handleFrame(frame audioio.Frame) {
	switch a.State() {
	case StateListening:
		if det, ok := a.deps.Detector.Ingest(frame.Float32()); ok {
			a.metrics.CountDetection()
			a.hub.Publish(EventDetection, map[string]any{"score": det.Score})
			a.logger.Info("wake word detected", "score", det.Score)
			a.beginRecording()
		}
	case StateCooldown:
		if det, ok := a.deps.Detector.Ingest(frame.Float32()); ok {
			a.metrics.CountDetection()
			a.metrics.CountBargeIn()
			a.hub.Publish(EventDetection, map[string]any{"score": det.Score, "barge_in": true})
			a.logger.Info("barge-in, interrupting playback", "score", det.Score)
			a.interruptPlayback()
			a.beginRecording()
		}
	case StateRecording:
		if res, done := a.session.Feed(frame); done {
			a.finishRecording(res)
		}
	default:
		// Startup and Processing keep the detector fed so its buffers and
		// warm-up track real audio; triggers here are ignored.
		a.deps.Detector.Ingest(frame.Float32())
	}
}

func (a *Agent) beginRecording() {
	// Cue first: playback checks the live state, and the acknowledgement
	// is only permitted before Recording begins.
	a.playCue(CueAcknowledge)

	sess, err := recording.New(a.cfg.Recording, a.deps.VAD, a.logger)
	if err != nil {
		a.logger.Error("starting recording session failed", "err", err)
		return
	}
	a.session = sess
	a.deps.Detector.Reset()
	a.transition(StateRecording)
}

func (a *Agent) finishRecording(res recording.Result) {
	a.session = nil

	if !res.HasSpoken {
		a.metrics.CountEmptySession()
		a.logger.Info("discarding session without speech",
			"reason", res.StoppedBy,
			"duration", res.Duration,
		)
		a.transition(StateListening)
		return
	}

	a.metrics.MarkSpeechEnd()
	a.transition(StateProcessing)
	a.playCue(CueProcessing)
	go a.runTurn(uuid.NewString(), res)
}

// runTurn executes one conversation turn on its own goroutine. The turn
// id correlates logs and events across the pipeline stages.
func (a *Agent) runTurn(turnID string, res recording.Result) {
	ctx, cancel := context.WithTimeout(a.runCtx, a.cfg.TurnTimeout)
	defer cancel()

	reply, ok := a.converse(ctx, turnID, res)
	if !ok {
		a.metrics.MarkFailed()
		a.playCue(CueError)
		reply = fallbackReply
	} else {
		a.metrics.MarkReply()
	}

	a.lastMu.Lock()
	a.lastReply = reply
	a.lastMu.Unlock()
	a.hub.Publish(EventReply, map[string]any{"turn": turnID, "text": reply, "failed": !ok})

	pcm, rate, err := a.deps.Synth.Synthesize(ctx, reply)
	if err != nil {
		a.logger.Error("synthesis failed", "err", err)
		a.playCue(CueError)
		a.transition(StateCooldown)
		a.transitionIf(StateCooldown, StateListening)
		return
	}
	if rate != a.sinkRate {
		pcm = audioio.Resample(pcm, rate, a.sinkRate)
	}

	gen := a.playbackGen()
	a.transition(StateCooldown)
	a.metrics.MarkSpeakStart()
	if !a.playReply(ctx, pcm, gen) {
		return
	}

	// A barge-in may have already moved us to Recording.
	a.transitionIf(StateCooldown, StateListening)
}

// playReply writes and flushes the reply audio. It reports false when a
// barge-in invalidated the playback between synthesis and the write.
func (a *Agent) playReply(ctx context.Context, pcm []int16, gen uint64) bool {
	if a.playbackGen() != gen {
		a.logger.Info("discarding reply superseded by barge-in")
		return false
	}
	if err := a.deps.Sink.Write(ctx, pcm); err != nil {
		a.logger.Error("playback write failed", "err", err)
	} else if err := a.deps.Sink.Flush(ctx); err != nil {
		a.logger.Warn("playback flush interrupted", "err", err)
	}
	return true
}

// interruptPlayback discards buffered audio and invalidates any reply
// write still pending from the interrupted turn.
func (a *Agent) interruptPlayback() {
	if err := a.deps.Sink.Clear(); err != nil {
		a.logger.Warn("clearing playback failed", "err", err)
	}
	a.mu.Lock()
	a.playGen++
	a.mu.Unlock()
}

func (a *Agent) playbackGen() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.playGen
}

// converse runs transcription, chat and tool rounds, returning the reply
// text. ok is false on any failure, including an empty transcript.
func (a *Agent) converse(ctx context.Context, turnID string, res recording.Result) (string, bool) {
	logger := a.logger.With("turn", turnID)

	transcript, err := a.deps.Transcribe.Transcribe(ctx, res.PCM, res.SampleRate)
	if err != nil {
		logger.Error("transcription failed", "err", err)
		a.hub.Publish(EventError, map[string]any{"turn": turnID, "stage": "transcribe", "err": err.Error()})
		return "", false
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Info("empty transcript, dropping turn")
		return "", false
	}

	a.metrics.MarkTranscript()
	a.lastMu.Lock()
	a.lastTranscript = transcript
	a.lastMu.Unlock()
	a.hub.Publish(EventTranscript, map[string]any{"turn": turnID, "text": transcript})
	logger.Info("transcript", "text", transcript)

	a.history.Append(llm.NewUserMessage(transcript))

	for round := 0; ; round++ {
		resp, err := a.deps.Chat.Chat(ctx, &llm.ChatRequest{
			Messages: a.history.Messages(),
			Tools:    a.toolDefs(),
		})
		if err != nil {
			logger.Error("chat failed", "round", round, "err", err)
			a.hub.Publish(EventError, map[string]any{"turn": turnID, "stage": "chat", "err": err.Error()})
			return "", false
		}

		if len(resp.Message.ToolCalls) == 0 || round >= a.cfg.MaxToolRounds {
			reply := strings.TrimSpace(resp.Message.Content)
			if reply == "" {
				logger.Warn("chat returned no reply text", "round", round)
				return "", false
			}
			a.history.Append(resp.Message)
			return reply, true
		}

		a.history.Append(resp.Message)
		for _, call := range resp.Message.ToolCalls {
			exec := a.executeCall(ctx, turnID, call)
			a.history.Append(llm.NewToolMessage(call.ID, exec.Result))
		}
	}
}

func (a *Agent) executeCall(ctx context.Context, turnID string, call llm.ToolCall) tools.Execution {
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			a.logger.Warn("unparseable tool arguments", "tool", call.Name, "err", err)
		}
	}
	exec := a.deps.Executor.Execute(ctx, call.Name, args)
	a.metrics.MarkToolCall()
	a.hub.Publish(EventToolCall, map[string]any{
		"turn":   turnID,
		"tool":   call.Name,
		"error":  exec.IsError,
		"result": exec.Result,
	})
	return exec
}

func (a *Agent) toolDefs() []llm.Tool {
	schemas := a.deps.Registry.Schemas()
	defs := make([]llm.Tool, len(schemas))
	for i, s := range schemas {
		defs[i] = llm.NewTool(s.Name, s.Description, s.Parameters)
	}
	return defs
}

// playCue plays the tone unless cues are globally suppressed or the live
// state is Recording (the tone would bleed into the utterance). The write
// is synchronous so the state check still holds when the samples are
// queued; sinks enqueue without waiting for playback.
func (a *Agent) playCue(c Cue) {
	if a.cfg.SuppressCues {
		return
	}
	if a.State() == StateRecording {
		a.logger.Debug("cue suppressed while recording", "cue", c)
		return
	}
	if err := a.deps.Sink.Write(a.runCtx, c.tone(a.sinkRate)); err != nil {
		a.logger.Debug("cue playback failed", "cue", c, "err", err)
	}
}

// transition moves to a new state, refusing pairs outside the table.
func (a *Agent) transition(to State) {
	a.mu.Lock()
	from := a.state
	if from == to {
		a.mu.Unlock()
		return
	}
	if !validTransition(from, to) {
		a.mu.Unlock()
		a.logger.Error("refusing invalid state transition", "from", from, "to", to)
		return
	}
	a.state = to
	a.mu.Unlock()

	a.logger.Debug("state", "from", from, "to", to)
	a.hub.Publish(EventStateChange, map[string]any{"from": from.String(), "to": to.String()})
}

// transitionIf moves from → to only if the state is still from.
func (a *Agent) transitionIf(from, to State) bool {
	a.mu.Lock()
	if a.state != from || !validTransition(from, to) {
		a.mu.Unlock()
		return false
	}
	a.state = to
	a.mu.Unlock()

	a.logger.Debug("state", "from", from, "to", to)
	a.hub.Publish(EventStateChange, map[string]any{"from": from.String(), "to": to.String()})
	return true
}
