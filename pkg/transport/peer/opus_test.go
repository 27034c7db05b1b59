package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/transport"
)

func TestTrackEncoder_PacketsPerFrame(t *testing.T) {
	t.Parallel()

	enc, err := newTrackEncoder(24000)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	// 2048 samples at 24 kHz resample to 4096 at 48 kHz, duplicated to 8192
	// interleaved stereo samples: four full 1920-sample Opus frames, 512
	// samples held back.
	packets, err := enc.push(audio.Frame{Data: make([]int16, 2048), SampleRate: 24000})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(packets) != 4 {
		t.Errorf("packets = %d; want 4", len(packets))
	}
	if got := len(enc.pending); got != 512 {
		t.Errorf("pending samples = %d; want 512", got)
	}
}

func TestTrackEncoder_AccumulatesShortFrames(t *testing.T) {
	t.Parallel()

	enc, err := newTrackEncoder(24000)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	// 240 samples at 24 kHz become 960 stereo samples at 48 kHz — half an
	// Opus frame. Two pushes cross the threshold.
	first, err := enc.push(audio.Frame{Data: make([]int16, 240), SampleRate: 24000})
	if err != nil {
		t.Fatalf("first push: %v", err)
	}
	if len(first) != 0 {
		t.Errorf("first push emitted %d packets; want 0", len(first))
	}

	second, err := enc.push(audio.Frame{Data: make([]int16, 240), SampleRate: 24000})
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("second push emitted %d packets; want 1", len(second))
	}
}

func TestTrackCodec_RoundTripLength(t *testing.T) {
	t.Parallel()

	enc, err := newTrackEncoder(24000)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	dec, err := newTrackDecoder(24000)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	packets, err := enc.push(audio.Frame{Data: make([]int16, 2048), SampleRate: 24000})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(packets) == 0 {
		t.Fatal("no packets to decode")
	}

	pcm, err := dec.decode(packets[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// One 20 ms Opus frame downmixed to mono at 24 kHz: 480 samples.
	if got := len(pcm) / 2; got != 480 {
		t.Errorf("decoded samples = %d; want 480", got)
	}
}

func TestHandleControl_ClearResetsPendingMarks(t *testing.T) {
	t.Parallel()

	tr := &Transport{events: make(chan transport.Event, 4), logger: slog.Default()}
	tr.ctx, tr.cancel = context.WithCancel(context.Background())
	t.Cleanup(tr.cancel)
	tr.pendingMarks.Store(3)

	tr.handleControl([]byte(`{"event":"clear"}`))

	if got := tr.PendingMarks(); got != 0 {
		t.Errorf("PendingMarks = %d after clear; want 0", got)
	}
	select {
	case evt := <-tr.events:
		if _, ok := evt.(transport.ClearEvent); !ok {
			t.Errorf("event = %T; want ClearEvent", evt)
		}
	default:
		t.Error("no ClearEvent delivered")
	}
}

func TestSignalClient_ExchangesOfferForAnswer(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotOffer webrtc.SessionDescription
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotOffer); err != nil {
			t.Errorf("decode offer: %v", err)
		}
		json.NewEncoder(w).Encode(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  "v=0\r\n",
		})
	}))
	t.Cleanup(srv.Close)

	sc := &signalClient{url: srv.URL, authToken: "tok", client: srv.Client()}
	answer, err := sc.exchange(t.Context(), webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "v=0\r\n",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if answer.Type != webrtc.SDPTypeAnswer {
		t.Errorf("answer type = %s; want answer", answer.Type)
	}
	if gotOffer.Type != webrtc.SDPTypeOffer {
		t.Errorf("server saw offer type = %s; want offer", gotOffer.Type)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q; want \"Bearer tok\"", gotAuth)
	}
}

func TestSignalClient_Non200_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such call", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	sc := &signalClient{url: srv.URL, client: srv.Client()}
	if _, err := sc.exchange(t.Context(), webrtc.SessionDescription{}); err == nil {
		t.Fatal("exchange against a 404 should fail")
	}
}
