// hearthd is the Hearth voice daemon: wake word → record → transcribe →
// chat+tools → speak, with a status server on the side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hearthlabs/hearth/internal/log"
	"github.com/hearthlabs/hearth/pkg/agent"
	"github.com/hearthlabs/hearth/pkg/audioio"
	"github.com/hearthlabs/hearth/pkg/llm"
	"github.com/hearthlabs/hearth/pkg/mcp"
	"github.com/hearthlabs/hearth/pkg/recording"
	"github.com/hearthlabs/hearth/pkg/stt"
	"github.com/hearthlabs/hearth/pkg/tools"
	"github.com/hearthlabs/hearth/pkg/tts"
	"github.com/hearthlabs/hearth/pkg/vad"
	"github.com/hearthlabs/hearth/pkg/wakeword"
	"github.com/hearthlabs/hearth/pkg/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hearthd:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		logLevel  = flag.String("log-level", envOr("HEARTH_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
		modelDir  = flag.String("models", envOr("HEARTH_MODEL_DIR", "models"), "directory with ONNX models")
		wakeModel = flag.String("wake-model", envOr("HEARTH_WAKE_MODEL", "hey_hearth.onnx"), "wake classifier file name")
		threshold = flag.Float64("threshold", 0.5, "wake detection threshold")

		audioBackend = flag.String("audio", envOr("HEARTH_AUDIO", "auto"), "audio backend (auto, malgo, mock)")

		vadModel     = flag.String("vad-model", envOr("HEARTH_VAD_MODEL", ""), "silero VAD model path (empty = energy VAD)")
		silenceMs    = flag.Int("silence-ms", 1500, "trailing silence that ends an utterance")
		noSpeechMs   = flag.Int("no-speech-ms", 4000, "give-up window when nothing is said")
		maxUtterance = flag.Duration("max-utterance", 10*time.Second, "hard utterance ceiling")

		mcpCommand = flag.String("mcp-command", envOr("HEARTH_MCP_COMMAND", ""), "device subsystem command (empty disables)")
		mcpArgs    = flag.String("mcp-args", envOr("HEARTH_MCP_ARGS", ""), "device subsystem arguments, space separated")
		attempts   = flag.Int("mcp-attempts", 3, "device subsystem connect attempts")
		baseDelay  = flag.Duration("mcp-base-delay", 2*time.Second, "device subsystem backoff base delay")

		chatModel = flag.String("chat-model", envOr("HEARTH_CHAT_MODEL", "gpt-4o-mini"), "chat model")
		chatURL   = flag.String("chat-url", envOr("HEARTH_CHAT_URL", "https://api.openai.com/v1"), "chat completions base URL")
		voice     = flag.String("voice", envOr("HEARTH_VOICE", "nova"), "synthesis voice")

		noCues  = flag.Bool("no-cues", false, "disable acknowledgement tones")
		webAddr = flag.String("web", envOr("HEARTH_WEB_ADDR", ":8090"), "status server address (empty disables)")
	)
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	// Audio.
	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = audioio.Backend(*audioBackend)
	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	defer source.Close()
	sink, err := audioio.NewSink(audioCfg, logger)
	if err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}
	defer sink.Close()

	// Wake word. A missing or unloadable model is fatal: without
	// detection the daemon can do nothing.
	wakeCfg := wakeword.DefaultConfig()
	wakeCfg.ModelDir = *modelDir
	wakeCfg.WakeModel = *wakeModel
	wakeCfg.Threshold = float32(*threshold)
	detector, err := wakeword.New(wakeCfg, logger)
	if err != nil {
		return fmt.Errorf("wake detector: %w", err)
	}
	if err := detector.Initialize(); err != nil {
		return fmt.Errorf("wake detector: %w", err)
	}
	defer detector.Close()

	// VAD: silero when a model is given, RMS energy otherwise.
	var speech vad.Detector
	if *vadModel != "" {
		silero, err := vad.NewSilero(*vadModel, 0.5)
		if err != nil {
			return fmt.Errorf("silero vad: %w", err)
		}
		defer silero.Close()
		speech = silero
	} else {
		if _, err := os.Stat(filepath.Join(*modelDir, "silero_vad.onnx")); err == nil {
			logger.Info("silero model found in model dir, using it")
			silero, err := vad.NewSilero(filepath.Join(*modelDir, "silero_vad.onnx"), 0.5)
			if err != nil {
				return fmt.Errorf("silero vad: %w", err)
			}
			defer silero.Close()
			speech = silero
		} else {
			logger.Warn("no silero model configured, falling back to energy VAD")
			speech = vad.NewEnergy(0.015)
		}
	}

	// Conversation services.
	transcriber, err := stt.NewWhisper(apiKey, stt.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	chat, err := llm.NewClient(
		llm.WithAPIKey(apiKey),
		llm.WithBaseURL(*chatURL),
		llm.WithModel(*chatModel),
		llm.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	defer chat.Close()
	synth, err := tts.NewOpenAI(apiKey, tts.WithVoice(*voice), tts.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}

	// Tools.
	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewGetTime())
	executor := tools.NewExecutor(registry, logger)

	// Device subsystem over stdio JSON-RPC, optional.
	var transport *mcp.Client
	var connectTransport func(ctx context.Context) error
	if *mcpCommand != "" {
		mcpCfg := mcp.DefaultConfig()
		mcpCfg.Command = *mcpCommand
		mcpCfg.Args = strings.Fields(*mcpArgs)
		mcpCfg.Attempts = *attempts
		mcpCfg.BaseDelay = *baseDelay
		transport, err = mcp.NewClient(mcpCfg, nil, logger)
		if err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer transport.Close()

		connectTransport = func(ctx context.Context) error {
			if err := transport.Connect(ctx); err != nil {
				return err
			}
			infos, err := transport.ListTools(ctx)
			if err != nil {
				return fmt.Errorf("list remote tools: %w", err)
			}
			n := tools.RegisterRemote(registry, transport, infos, logger)
			logger.Info("registered remote tools", "count", n)
			return nil
		}
	}

	// Agent.
	agentCfg := agent.DefaultConfig()
	agentCfg.SuppressCues = *noCues
	agentCfg.Recording = recording.Config{
		SilenceTimeout:  time.Duration(*silenceMs) * time.Millisecond,
		NoSpeechTimeout: time.Duration(*noSpeechMs) * time.Millisecond,
		MaxDuration:     *maxUtterance,
	}
	a, err := agent.New(agentCfg, agent.Deps{
		Source:           source,
		Sink:             sink,
		Detector:         detector,
		VAD:              speech,
		Transcribe:       transcriber,
		Chat:             chat,
		Synth:            synth,
		Executor:         executor,
		Registry:         registry,
		ConnectTransport: connectTransport,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	// The timer tool speaks through the same sink as replies.
	registry.Register(tools.NewSetTimer(func(text string) {
		pcm, rate, err := synth.Synthesize(context.Background(), text)
		if err != nil {
			logger.Warn("timer announcement failed", "err", err)
			return
		}
		if rate != audioCfg.SampleRate {
			pcm = audioio.Resample(pcm, rate, audioCfg.SampleRate)
		}
		_ = sink.Write(context.Background(), pcm)
	}))

	// Status server.
	if *webAddr != "" {
		var tr web.Transport
		if transport != nil {
			tr = transport
		}
		server := web.NewServer(a, registry, executor, tr, logger)
		go func() {
			if err := server.Start(*webAddr); err != nil {
				logger.Error("status server failed", "err", err)
			}
		}()
		defer func() { _ = server.Shutdown() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("hearthd starting",
		"audio", source.Name(),
		"models", *modelDir,
		"wake_model", *wakeModel,
		"mcp", *mcpCommand != "",
	)
	if err := a.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("hearthd stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
