// Package peer implements the WebRTC session transport.
//
// Audio travels on a negotiated Opus media track in both directions;
// control events (start, mark, hangup, clear, speaker_segments) travel as
// JSON envelopes on a data channel. Signaling is a single HTTP offer/answer
// exchange with the platform.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/transport"
	"github.com/voxwire/voxwire/pkg/types"
)

// Compile-time assertion that Transport satisfies the transport interface.
var _ transport.Transport = (*Transport)(nil)

const (
	eventChannelBuffer = 64
	defaultSTUNServer  = "stun:stun.l.google.com:19302"
	controlChannelName = "events"
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring the transport.
type Option func(*Transport)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithAuthToken attaches a bearer token to the signaling request.
func WithAuthToken(token string) Option {
	return func(t *Transport) { t.authToken = token }
}

// WithSTUNServers overrides the ICE server list.
func WithSTUNServers(urls ...string) Option {
	return func(t *Transport) { t.stunServers = urls }
}

// WithHTTPClient overrides the client used for signaling. Primarily used
// in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) { t.httpClient = client }
}

// ── Envelope types ─────────────────────────────────────────────────────────────

// envelope is the control frame exchanged on the data channel. Media never
// travels here; it has its own track.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	SampleRate int `json:"sample_rate"`
}

// ── Transport ──────────────────────────────────────────────────────────────────

// Transport is a live WebRTC session. Create one with [Dial].
type Transport struct {
	logger      *slog.Logger
	authToken   string
	stunServers []string
	httpClient  *http.Client

	pc      *webrtc.PeerConnection
	track   *webrtc.TrackLocalStaticSample
	control *webrtc.DataChannel

	sampleRate int
	encMu      sync.Mutex
	enc        *trackEncoder

	events       chan transport.Event
	evMu         sync.Mutex
	evClosed     bool
	pendingMarks atomic.Int64

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Dial negotiates a peer session via the signaling endpoint at signalURL.
// sampleRate is the session's PCM rate on both the capture and playback
// side; the Opus track rate is internal to the transport. Dial returns
// once the data channel is open.
func Dial(ctx context.Context, signalURL string, sampleRate int, opts ...Option) (*Transport, error) {
	t := &Transport{
		logger:      slog.Default(),
		stunServers: []string{defaultSTUNServer},
		httpClient:  http.DefaultClient,
		sampleRate:  sampleRate,
		events:      make(chan transport.Event, eventChannelBuffer),
	}
	for _, o := range opts {
		o(t)
	}

	enc, err := newTrackEncoder(sampleRate)
	if err != nil {
		return nil, negotiationErr(err)
	}
	t.enc = enc

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: t.stunServers}},
	})
	if err != nil {
		return nil, negotiationErr(fmt.Errorf("peer: create peer connection: %w", err))
	}
	t.pc = pc
	t.ctx, t.cancel = context.WithCancel(context.Background())

	if err := t.negotiate(ctx, signalURL); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) negotiate(ctx context.Context, signalURL string) error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: opusSampleRate,
			Channels:  opusChannels,
		},
		"audio-"+uuid.NewString(),
		"voxwire",
	)
	if err != nil {
		return negotiationErr(fmt.Errorf("peer: create track: %w", err))
	}
	t.track = track

	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return negotiationErr(fmt.Errorf("peer: add track: %w", err))
	}
	go t.drainRTCP(sender)

	control, err := t.pc.CreateDataChannel(controlChannelName, nil)
	if err != nil {
		return negotiationErr(fmt.Errorf("peer: create data channel: %w", err))
	}
	t.control = control

	controlOpen := make(chan struct{})
	control.OnOpen(func() { close(controlOpen) })
	control.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.handleControl(msg.Data)
	})

	t.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go t.readTrack(remote)
	})

	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			t.logger.Warn("peer connection lost", "state", state.String())
			t.deliver(transport.ClosedEvent{Err: &transport.Error{
				Cause: transport.CauseNetworkError,
				Err:   fmt.Errorf("peer: connection %s", state),
			}})
			t.closeEvents()
		case webrtc.PeerConnectionStateClosed:
			t.deliver(transport.ClosedEvent{})
			t.closeEvents()
		}
	})

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return negotiationErr(fmt.Errorf("peer: create offer: %w", err))
	}
	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return negotiationErr(fmt.Errorf("peer: set local description: %w", err))
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return negotiationErr(fmt.Errorf("peer: ice gathering: %w", ctx.Err()))
	}

	signal := &signalClient{url: signalURL, authToken: t.authToken, client: t.httpClient}
	answer, err := signal.exchange(ctx, *t.pc.LocalDescription())
	if err != nil {
		return negotiationErr(err)
	}
	if err := t.pc.SetRemoteDescription(answer); err != nil {
		return negotiationErr(fmt.Errorf("peer: set remote description: %w", err))
	}

	select {
	case <-controlOpen:
		return nil
	case <-ctx.Done():
		return negotiationErr(fmt.Errorf("peer: waiting for data channel: %w", ctx.Err()))
	}
}

func negotiationErr(err error) error {
	return &transport.Error{Cause: transport.CauseNegotiationFailed, Err: err}
}

// drainRTCP keeps the sender's report stream flowing so interceptors run.
func (t *Transport) drainRTCP(sender *webrtc.RTPSender) {
	for {
		if _, _, err := sender.ReadRTCP(); err != nil {
			return
		}
	}
}

// readTrack decodes inbound Opus packets and emits media events. One
// goroutine per remote track, each with its own decoder.
func (t *Transport) readTrack(remote *webrtc.TrackRemote) {
	dec, err := newTrackDecoder(t.sampleRate)
	if err != nil {
		t.logger.Error("cannot decode remote track", "error", err)
		return
	}
	for {
		packet, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}
		pcm, err := dec.decode(packet.Payload)
		if err != nil {
			t.logger.Warn("dropping undecodable media packet", "error", err)
			continue
		}
		t.pendingMarks.Add(1)
		t.deliver(transport.MediaEvent{PCM: pcm})
	}
}

// handleControl dispatches one data-channel envelope. Malformed payloads
// drop the single envelope with a warning.
func (t *Transport) handleControl(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.logger.Warn("dropping malformed control envelope", "error", err)
		return
	}

	switch env.Event {
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
		t.logger.Debug("ignoring unknown control event", "event", env.Event)
	}
}

func (t *Transport) deliver(evt transport.Event) {
	t.evMu.Lock()
	defer t.evMu.Unlock()
	if t.evClosed {
		return
	}
	select {
	case t.events <- evt:
	case <-t.ctx.Done():
	}
}

func (t *Transport) closeEvents() {
	t.evMu.Lock()
	defer t.evMu.Unlock()
	if !t.evClosed {
		t.evClosed = true
		close(t.events)
	}
}

func (t *Transport) sendControl(env envelope) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("peer: send %q: %w", env.Event, transport.ErrClosed)
	}
	t.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("peer: marshal %q: %w", env.Event, err)
	}
	if err := t.control.SendText(string(data)); err != nil {
		return &transport.Error{
			Cause: transport.CauseNetworkError,
			Err:   fmt.Errorf("peer: send %q: %w", env.Event, err),
		}
	}
	return nil
}

// SendStart announces the session's audio format on the control channel.
func (t *Transport) SendStart(_ context.Context, sampleRate int) error {
	payload, err := json.Marshal(startPayload{SampleRate: sampleRate})
	if err != nil {
		return fmt.Errorf("peer: marshal start: %w", err)
	}
	return t.sendControl(envelope{Event: "start", Payload: payload})
}

// SendFrame encodes the frame into Opus packets and writes them to the
// media track. Frames shorter than an Opus frame accumulate; nothing is
// lost across calls.
func (t *Transport) SendFrame(_ context.Context, frame audio.Frame) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("peer: send media: %w", transport.ErrClosed)
	}
	t.mu.Unlock()

	t.encMu.Lock()
	defer t.encMu.Unlock()
	packets, err := t.enc.push(frame)
	if err != nil {
		return err
	}
	for _, packet := range packets {
		sample := media.Sample{Data: packet, Duration: opusFrameSizeMs * time.Millisecond}
		if err := t.track.WriteSample(sample); err != nil {
			return &transport.Error{
				Cause: transport.CauseNetworkError,
				Err:   fmt.Errorf("peer: write sample: %w", err),
			}
		}
	}
	return nil
}

// SendMark acknowledges one fully played inbound chunk.
func (t *Transport) SendMark(_ context.Context) error {
	if err := t.sendControl(envelope{Event: "mark"}); err != nil {
		return err
	}
	t.pendingMarks.Add(-1)
	return nil
}

// SendHangup requests session termination.
func (t *Transport) SendHangup(_ context.Context) error {
	return t.sendControl(envelope{Event: "hangup"})
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
	err := t.pc.Close()
	t.closeEvents()
	if err != nil {
		return fmt.Errorf("peer: close: %w", err)
	}
	return nil
}
