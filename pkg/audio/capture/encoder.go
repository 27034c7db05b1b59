// Package capture turns the continuous microphone sample stream into
// discrete fixed-size outbound frames.
//
// The pure accumulation logic lives in [Encoder]; [Pump] wraps it in a
// goroutine bound to a [device.Source] so the capture path runs isolated
// from the rest of the pipeline, communicating only over channels.
package capture

import (
	"github.com/voxwire/voxwire/pkg/audio"
)

// DefaultFrameSize is the number of samples per outbound frame, fixed
// regardless of sample rate.
const DefaultFrameSize = 2048

// Encoder accumulates incoming float samples into fixed-size PCM16 frames.
// Partial buffers are never emitted — there is no flush-on-idle, and silence
// is never synthesized on the capture side.
//
// Not safe for concurrent use; each capture stream owns one Encoder.
type Encoder struct {
	sampleRate int
	buf        []int16
	cursor     int
}

// NewEncoder creates an Encoder emitting frames of frameSize samples.
// A frameSize <= 0 falls back to [DefaultFrameSize].
func NewEncoder(sampleRate, frameSize int) *Encoder {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Encoder{
		sampleRate: sampleRate,
		buf:        make([]int16, frameSize),
	}
}

// Write converts a batch of raw float samples to PCM16 and appends them to
// the internal buffer, returning one full frame per frameSize samples
// crossed. Each returned frame owns its backing array; the encoder
// allocates a fresh buffer after every emission.
func (e *Encoder) Write(samples []float32) []audio.Frame {
	var frames []audio.Frame
	pcm := audio.FloatToPCM16(samples)

	for len(pcm) > 0 {
		n := copy(e.buf[e.cursor:], pcm)
		e.cursor += n
		pcm = pcm[n:]

		if e.cursor == len(e.buf) {
			frames = append(frames, audio.Frame{Data: e.buf, SampleRate: e.sampleRate})
			e.buf = make([]int16, len(e.buf))
			e.cursor = 0
		}
	}
	return frames
}

// Buffered returns the number of samples accumulated toward the next frame.
func (e *Encoder) Buffered() int { return e.cursor }

// FrameSize returns the configured samples-per-frame.
func (e *Encoder) FrameSize() int { return len(e.buf) }
