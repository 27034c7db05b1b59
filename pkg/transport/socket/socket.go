// Package socket implements the WebSocket session transport.
//
// It connects to the platform's call-stream endpoint and exchanges JSON
// envelopes of the form {"event": ..., "payload": ...}. Outbound audio is
// transmitted as base64-encoded PCM16 in media envelopes; inbound media,
// clear and speaker_segments envelopes are decoded and surfaced on the
// event stream.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/transport"
	"github.com/voxwire/voxwire/pkg/types"
)

// Compile-time assertion that Transport satisfies the transport interface.
var _ transport.Transport = (*Transport)(nil)

const eventChannelBuffer = 64

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring the transport.
type Option func(*Transport)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithAuthToken attaches a bearer token to the dial request.
func WithAuthToken(token string) Option {
	return func(t *Transport) { t.authToken = token }
}

// ── Envelope types ─────────────────────────────────────────────────────────────

// envelope is the wire frame in both directions. Payload's shape depends
// on the event: a base64 string for media, a segment array for
// speaker_segments, absent otherwise.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	SampleRate int `json:"sample_rate"`
}

// ── Transport ──────────────────────────────────────────────────────────────────

// Transport is a live WebSocket session. Create one with [Dial].
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	authToken string

	events       chan transport.Event
	pendingMarks atomic.Int64

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the call-stream endpoint at wsURL and starts the
// receive loop. Failures are classified as negotiation errors.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Transport, error) {
	t := &Transport{
		logger: slog.Default(),
		events: make(chan transport.Event, eventChannelBuffer),
	}
	for _, o := range opts {
		o(t)
	}

	dialOpts := &websocket.DialOptions{}
	if t.authToken != "" {
		dialOpts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + t.authToken},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, dialOpts)
	if err != nil {
		return nil, &transport.Error{
			Cause: transport.CauseNegotiationFailed,
			Err:   fmt.Errorf("socket: dial: %w", err),
		}
	}
	// Media envelopes at 24 kHz outgrow the default 32 KiB read limit.
	conn.SetReadLimit(1 << 20)

	t.conn = conn
	t.ctx, t.cancel = context.WithCancel(context.Background())

	go t.receiveLoop()

	return t, nil
}

// writeEnvelope marshals env and writes it as a text message. Serialized:
// the capture pump, the playback mark path and the lifecycle all send
// concurrently.
func (t *Transport) writeEnvelope(ctx context.Context, env envelope) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("socket: send %q: %w", env.Event, transport.ErrClosed)
	}
	t.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("socket: marshal %q: %w", env.Event, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &transport.Error{
			Cause: transport.CauseNetworkError,
			Err:   fmt.Errorf("socket: send %q: %w", env.Event, err),
		}
	}
	return nil
}

// SendStart announces the session's audio format.
func (t *Transport) SendStart(ctx context.Context, sampleRate int) error {
	payload, err := json.Marshal(startPayload{SampleRate: sampleRate})
	if err != nil {
		return fmt.Errorf("socket: marshal start: %w", err)
	}
	return t.writeEnvelope(ctx, envelope{Event: "start", Payload: payload})
}

// SendFrame base64-encodes the frame's PCM16 bytes into a media envelope.
func (t *Transport) SendFrame(ctx context.Context, frame audio.Frame) error {
	payload, err := json.Marshal(audio.EncodePayload(frame.Bytes()))
	if err != nil {
		return fmt.Errorf("socket: marshal media: %w", err)
	}
	return t.writeEnvelope(ctx, envelope{Event: "media", Payload: payload})
}

// SendMark acknowledges one fully played inbound chunk.
func (t *Transport) SendMark(ctx context.Context) error {
	if err := t.writeEnvelope(ctx, envelope{Event: "mark"}); err != nil {
		return err
	}
	t.pendingMarks.Add(-1)
	return nil
}

// SendHangup requests session termination.
func (t *Transport) SendHangup(ctx context.Context) error {
	return t.writeEnvelope(ctx, envelope{Event: "hangup"})
}

// PendingMarks reports delivered-but-unacknowledged inbound chunks.
func (t *Transport) PendingMarks() int {
	n := t.pendingMarks.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Events returns the inbound event stream.
func (t *Transport) Events() <-chan transport.Event { return t.events }

// receiveLoop reads envelopes until the connection drops or the transport
// is closed. It owns t.events and closes it on exit, emitting a final
// ClosedEvent first.
func (t *Transport) receiveLoop() {
	defer close(t.events)

	for {
		_, data, err := t.conn.Read(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				t.deliver(transport.ClosedEvent{})
				return
			}
			t.deliver(transport.ClosedEvent{Err: &transport.Error{
				Cause: transport.CauseNetworkError,
				Err:   fmt.Errorf("socket: read: %w", err),
			}})
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}

		t.handleEnvelope(&env)
	}
}

// handleEnvelope dispatches one inbound envelope. Malformed payloads drop
// the single envelope with a warning; the session keeps running.
func (t *Transport) handleEnvelope(env *envelope) {
	switch env.Event {
	case "media":
		var encoded string
		if err := json.Unmarshal(env.Payload, &encoded); err != nil {
			t.logger.Warn("dropping media envelope with non-string payload", "error", err)
			return
		}
		pcm, err := audio.DecodePayload(encoded)
		if err != nil {
			t.logger.Warn("dropping media envelope with undecodable payload", "error", err)
			return
		}
		t.pendingMarks.Add(1)
		t.deliver(transport.MediaEvent{PCM: pcm})

	case "clear":
		// The chunks being discarded will never play out, so the marks they
		// owe are forgiven along with them.
		t.pendingMarks.Store(0)
		t.deliver(transport.ClearEvent{})

	case "speaker_segments":
		var segments []types.SpeakerSegment
		if err := json.Unmarshal(env.Payload, &segments); err != nil {
			t.logger.Warn("dropping malformed speaker_segments payload", "error", err)
			return
		}
		t.deliver(transport.SegmentsEvent{Segments: segments})

	case "hangup":
		t.deliver(transport.HangupEvent{})

	default:
		t.logger.Debug("ignoring unknown event", "event", env.Event)
	}
}

func (t *Transport) deliver(evt transport.Event) {
	select {
	case t.events <- evt:
	case <-t.ctx.Done():
	}
}

// Close tears the session down. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
