package agent

import "fmt"

// State is the interaction state. Exactly one live value exists, owned by
// the Agent; read it with Agent.State, never cache it.
type State int

const (
	// StateStartup: waiting for detector warm-up and the transport's
	// initial connect attempt to conclude.
	StateStartup State = iota

	// StateListening: ingesting frames, waiting for the wake word.
	StateListening

	// StateRecording: accumulating one utterance.
	StateRecording

	// StateProcessing: transcription, chat, tools, synthesis in flight.
	StateProcessing

	// StateCooldown: reply playback draining; a wake word here barges in.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateCooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransition encodes the transition table. All other pairs are bugs.
func validTransition(from, to State) bool {
	switch from {
	case StateStartup:
		return to == StateListening
	case StateListening:
		return to == StateRecording
	case StateRecording:
		// Listening when the session never contained speech.
		return to == StateProcessing || to == StateListening
	case StateProcessing:
		return to == StateCooldown
	case StateCooldown:
		// Recording on barge-in.
		return to == StateListening || to == StateRecording
	}
	return false
}
