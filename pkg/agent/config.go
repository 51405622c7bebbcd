package agent

import (
	"errors"
	"time"

	"github.com/hearthlabs/hearth/pkg/recording"
)

const defaultSystemPrompt = `You are Hearth, a hands-free voice assistant for the home.
Your replies are spoken aloud, so keep them short and conversational: one or
two sentences, no lists, no markdown. Use the available tools to control
devices and answer questions about the home. If a tool fails, say so plainly
and suggest what the user can try instead.`

// fallbackReply is spoken whenever a turn fails for any reason.
const fallbackReply = "I couldn't do that right now."

// Config holds agent configuration.
type Config struct {
	// WarmUpTimeout bounds the wait for detector warm-up at startup; on
	// expiry the agent proceeds with a warning. Default: 5s.
	WarmUpTimeout time.Duration

	// TurnTimeout bounds one full conversation turn (transcription, chat,
	// tools, synthesis). Default: 60s.
	TurnTimeout time.Duration

	// MaxToolRounds caps chat↔tool iterations per turn. Default: 4.
	MaxToolRounds int

	// HistoryLimit is the retained message count, excluding the system
	// prompt. Default: 16.
	HistoryLimit int

	// SystemPrompt seeds the conversation.
	SystemPrompt string

	// SuppressCues disables all acknowledgement tones.
	SuppressCues bool

	// Recording configures utterance capture.
	Recording recording.Config
}

// DefaultConfig returns a Config with hearth's defaults.
func DefaultConfig() Config {
	return Config{
		WarmUpTimeout: 5 * time.Second,
		TurnTimeout:   60 * time.Second,
		MaxToolRounds: 4,
		HistoryLimit:  16,
		SystemPrompt:  defaultSystemPrompt,
		Recording:     recording.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.WarmUpTimeout <= 0 {
		return errors.New("agent: WarmUpTimeout must be > 0")
	}
	if c.TurnTimeout <= 0 {
		return errors.New("agent: TurnTimeout must be > 0")
	}
	if c.MaxToolRounds < 1 {
		return errors.New("agent: MaxToolRounds must be >= 1")
	}
	if c.HistoryLimit < 2 {
		return errors.New("agent: HistoryLimit must be >= 2")
	}
	if c.SystemPrompt == "" {
		return errors.New("agent: SystemPrompt is required")
	}
	return c.Recording.Validate()
}
