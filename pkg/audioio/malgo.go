package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures microphone audio via miniaudio.
// The capture callback slices device buffers into exact frame-size frames;
// a partial tail is carried into the next callback.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	frameCh chan Frame
	carry   []int16
	seq     uint64

	framesRead atomic.Int64
	dropped    atomic.Int64
}

// NewMalgoSource creates a miniaudio-backed capture source.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo context: %w", err)
	}

	return &MalgoSource{
		cfg:    cfg,
		logger: logger,
		mctx:   mctx,
		carry:  make([]int16, 0, cfg.FrameSize()),
	}, nil
}

// Start opens the capture device and begins delivering frames.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.frameCh = make(chan Frame, s.cfg.QueueDepth)
	s.carry = s.carry[:0]

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			s.onCapture(input)
		},
	}

	device, err := malgo.InitDevice(s.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("audioio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start capture device: %w", err)
	}

	s.device = device
	s.running = true

	s.logger.Info("audio capture started",
		"backend", "malgo",
		"sample_rate", s.cfg.SampleRate,
		"frame_size", s.cfg.FrameSize(),
	)
	return nil
}

// onCapture runs on the miniaudio thread. It must never block: full frames
// that don't fit the channel are dropped and counted.
func (s *MalgoSource) onCapture(input []byte) {
	samples := BytesToSamples(input)
	s.carry = append(s.carry, samples...)

	frameSize := s.cfg.FrameSize()
	for len(s.carry) >= frameSize {
		frame := Frame{
			Seq:        s.seq,
			Samples:    append([]int16(nil), s.carry[:frameSize]...),
			Time:       time.Now(),
			SampleRate: s.cfg.SampleRate,
		}
		s.carry = s.carry[:copy(s.carry, s.carry[frameSize:])]

		select {
		case s.frameCh <- frame:
			s.seq++
			s.framesRead.Add(1)
		default:
			s.dropped.Add(1)
			if s.dropped.Load()%100 == 1 {
				s.logger.Warn("audio consumer behind, dropping frames", "dropped", s.dropped.Load())
			}
		}
	}
}

// Stop halts capture and closes the frame channel.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	close(s.frameCh)

	s.logger.Info("audio capture stopped", "frames", s.framesRead.Load(), "dropped", s.dropped.Load())
	return nil
}

// Frames returns the capture frame channel.
func (s *MalgoSource) Frames() <-chan Frame {
	return s.frameCh
}

// Config returns the audio configuration.
func (s *MalgoSource) Config() Config { return s.cfg }

// Name returns "malgo".
func (s *MalgoSource) Name() string { return "malgo" }

// Close releases the device and context.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.Stop()
	_ = s.mctx.Uninit()
	s.mctx.Free()
	return nil
}

// Stats returns source statistics.
func (s *MalgoSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		FramesRead: s.framesRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    "malgo",
	}
}

var _ SourceWithStats = (*MalgoSource)(nil)

// MalgoSink plays audio via miniaudio. Written samples accumulate in an
// internal buffer drained by the playback callback; Flush waits for drain.
type MalgoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	drained *sync.Cond
	running bool
	closed  bool

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	buffer []int16

	samplesWritten atomic.Int64
	cleared        atomic.Int64
}

// NewMalgoSink creates a miniaudio-backed playback sink.
func NewMalgoSink(cfg Config, logger *slog.Logger) (*MalgoSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo context: %w", err)
	}

	s := &MalgoSink{
		cfg:    cfg,
		logger: logger,
		mctx:   mctx,
	}
	s.drained = sync.NewCond(&s.mu)
	return s, nil
}

// Start opens the playback device.
func (s *MalgoSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			s.onPlayback(output)
		},
	}

	device, err := malgo.InitDevice(s.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("audioio: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start playback device: %w", err)
	}

	s.device = device
	s.running = true

	s.logger.Info("audio playback started", "backend", "malgo", "sample_rate", s.cfg.SampleRate)
	return nil
}

// onPlayback runs on the miniaudio thread, filling the device buffer from
// the queued samples and zero-padding on underrun.
func (s *MalgoSink) onPlayback(output []byte) {
	want := len(output) / 2

	s.mu.Lock()
	n := want
	if n > len(s.buffer) {
		n = len(s.buffer)
	}
	chunk := s.buffer[:n]
	for i, sample := range chunk {
		output[i*2] = byte(sample)
		output[i*2+1] = byte(sample >> 8)
	}
	s.buffer = s.buffer[:copy(s.buffer, s.buffer[n:])]
	if len(s.buffer) == 0 {
		s.drained.Broadcast()
	}
	s.mu.Unlock()

	for i := n * 2; i < len(output); i++ {
		output[i] = 0
	}
}

// Write queues samples for playback.
func (s *MalgoSink) Write(ctx context.Context, samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}
	s.buffer = append(s.buffer, samples...)
	s.samplesWritten.Add(int64(len(samples)))
	return nil
}

// Flush blocks until the playback buffer has drained or ctx is done.
func (s *MalgoSink) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for len(s.buffer) > 0 && s.running {
			s.drained.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// Unblock the waiter; buffered audio keeps playing.
		s.Clear()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Clear discards all buffered audio immediately.
func (s *MalgoSink) Clear() error {
	s.mu.Lock()
	s.buffer = s.buffer[:0]
	s.cleared.Add(1)
	s.drained.Broadcast()
	s.mu.Unlock()
	return nil
}

// Stop halts playback.
func (s *MalgoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.buffer = nil
	s.drained.Broadcast()

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}

	s.logger.Info("audio playback stopped")
	return nil
}

// Config returns the audio configuration.
func (s *MalgoSink) Config() Config { return s.cfg }

// Name returns "malgo".
func (s *MalgoSink) Name() string { return "malgo" }

// Close releases the device and context.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.Stop()
	_ = s.mctx.Uninit()
	s.mctx.Free()
	return nil
}

// Stats returns sink statistics.
func (s *MalgoSink) Stats() SinkStats {
	s.mu.Lock()
	buffered := int64(len(s.buffer))
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		SamplesWritten:  s.samplesWritten.Load(),
		BufferedSamples: buffered,
		Cleared:         s.cleared.Load(),
		Running:         running,
		Backend:         "malgo",
	}
}

var _ SinkWithStats = (*MalgoSink)(nil)
