// Package transport defines the session transport abstraction between the
// client and the agent platform.
//
// Two implementations exist: a WebSocket transport exchanging JSON
// envelopes (package socket) and a WebRTC transport carrying audio on a
// media track with control events on a data channel (package peer). The
// lifecycle talks to either through the [Transport] interface and the
// [Event] stream; it never inspects wire formats.
package transport

import (
	"context"

	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/types"
)

// Transport is an established session with the platform. All Send methods
// are safe for concurrent use. After Close, sends return an error wrapping
// [ErrClosed].
type Transport interface {
	// SendStart announces the session's audio format before the first
	// media frame.
	SendStart(ctx context.Context, sampleRate int) error

	// SendFrame delivers one outbound audio frame.
	SendFrame(ctx context.Context, frame audio.Frame) error

	// SendMark reports that one inbound chunk finished playing. The
	// platform uses mark cadence to track how much audio the client has
	// actually rendered.
	SendMark(ctx context.Context) error

	// SendHangup requests session termination from the client side.
	SendHangup(ctx context.Context) error

	// PendingMarks reports how many inbound chunks have been delivered but
	// not yet acknowledged with a mark. Zero means all received audio has
	// been played out.
	PendingMarks() int

	// Events returns the inbound event stream. The channel closes when
	// the session ends, whether locally or remotely.
	Events() <-chan Event

	// Close tears the session down. Idempotent.
	Close() error
}

// Event is an inbound session event. Exactly one of the concrete types
// below.
type Event interface{ isEvent() }

// MediaEvent carries one chunk of decoded agent audio.
type MediaEvent struct {
	// PCM is little-endian PCM16 at the session's inbound sample rate.
	PCM []byte
}

// ClearEvent orders the client to discard all buffered agent audio. Sent
// on barge-in, when the user starts speaking over the agent.
type ClearEvent struct{}

// SegmentsEvent replaces the client's view of who spoke when.
type SegmentsEvent struct {
	Segments []types.SpeakerSegment
}

// HangupEvent signals that the remote side ended the call.
type HangupEvent struct{}

// ClosedEvent is the final event before the stream closes. Err is nil on
// orderly shutdown.
type ClosedEvent struct {
	Err error
}

func (MediaEvent) isEvent()    {}
func (ClearEvent) isEvent()    {}
func (SegmentsEvent) isEvent() {}
func (HangupEvent) isEvent()   {}
func (ClosedEvent) isEvent()   {}
