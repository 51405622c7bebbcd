package audioio

import (
	"math"
	"time"
)

// Frame is one fixed-size chunk of captured audio. Frames are immutable once
// produced; Seq increases by one per frame with no gaps except where the
// source reports drops.
type Frame struct {
	// Seq is the frame sequence number, monotonically increasing per source.
	Seq uint64

	// Samples contains PCM16 mono samples (little-endian on the wire).
	Samples []int16

	// Time is the capture timestamp.
	Time time.Time

	// SampleRate is the sample rate of this frame.
	SampleRate int
}

// Duration returns the duration of this frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// Bytes returns the raw little-endian bytes of the frame.
func (f *Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

// Float32 returns the samples normalized to [-1, 1], as the inference
// models expect.
func (f *Frame) Float32() []float32 {
	out := make([]float32, len(f.Samples))
	for i, s := range f.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// RMS returns the normalized root mean square of the frame in [0, 1].
func (f *Frame) RMS() float64 {
	return RMS(f.Samples)
}

// RMS returns the normalized root mean square of samples in [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768.0
}

// SineTone generates a PCM16 sine tone, used for audio cues.
func SineTone(freq float64, amplitude float64, d time.Duration, sampleRate int) []int16 {
	n := int(float64(sampleRate) * d.Seconds())
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		// Short linear fade at both ends to avoid clicks.
		fade := float64(1)
		const edge = 160 // 10ms at 16kHz
		if i < edge {
			fade = float64(i) / edge
		} else if n-i < edge {
			fade = float64(n-i) / edge
		}
		out[i] = int16(v * fade * 32767)
	}
	return out
}
