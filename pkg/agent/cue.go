package agent

import (
	"time"

	"github.com/hearthlabs/hearth/pkg/audioio"
)

// Cue is a short audible acknowledgement tone.
type Cue int

const (
	// CueAcknowledge: wake word detected, recording begins.
	CueAcknowledge Cue = iota

	// CueProcessing: utterance captured, thinking.
	CueProcessing

	// CueReady: startup complete or reply about to play.
	CueReady

	// CueError: the turn failed.
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueAcknowledge:
		return "acknowledge"
	case CueProcessing:
		return "processing"
	case CueReady:
		return "ready"
	case CueError:
		return "error"
	default:
		return "unknown"
	}
}

// tone returns the cue's generated audio at the given sample rate. Each
// cue has a distinct frequency and duration so they are tellable apart
// without looking at a screen.
func (c Cue) tone(sampleRate int) []int16 {
	var freq float64
	var d time.Duration
	switch c {
	case CueAcknowledge:
		freq, d = 880, 120*time.Millisecond
	case CueProcessing:
		freq, d = 660, 150*time.Millisecond
	case CueReady:
		freq, d = 1040, 200*time.Millisecond
	case CueError:
		freq, d = 330, 250*time.Millisecond
	default:
		return nil
	}
	return audioio.SineTone(freq, 0.25, d, sampleRate)
}
