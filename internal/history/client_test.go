package history_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxwire/voxwire/internal/history"
	"github.com/voxwire/voxwire/pkg/types"
)

func TestCreateCall_RequestAndResponse(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"phone_call_id": "call-123"})
	}))
	t.Cleanup(srv.Close)

	client := history.NewClient(srv.URL, history.WithAuthToken("tok"))
	id, err := client.CreateCall(t.Context(), "agent-1", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("CreateCall: %v", err)
	}

	if id != "call-123" {
		t.Errorf("call ID = %q; want \"call-123\"", id)
	}
	if gotPath != "/browser/call" {
		t.Errorf("path = %q; want \"/browser/call\"", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q; want \"Bearer tok\"", gotAuth)
	}
	if gotBody["agent_id"] != "agent-1" {
		t.Errorf("agent_id = %v; want \"agent-1\"", gotBody["agent_id"])
	}
	userInfo, ok := gotBody["user_info"].(map[string]any)
	if !ok || userInfo["name"] != "Ada" {
		t.Errorf("user_info = %v; want name Ada", gotBody["user_info"])
	}
}

func TestCreateCall_EmptyCallID_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"phone_call_id": ""})
	}))
	t.Cleanup(srv.Close)

	_, err := history.NewClient(srv.URL).CreateCall(t.Context(), "agent-1", nil)
	if err == nil {
		t.Fatal("CreateCall with empty phone_call_id should fail")
	}
}

func TestCreateCall_Non2xx_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := history.NewClient(srv.URL).CreateCall(t.Context(), "missing", nil)
	if err == nil {
		t.Fatal("CreateCall against a 404 should fail")
	}
}

func TestCompleteCall_Payload(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody struct {
		Reason     string                 `json:"reason"`
		DurationMs int64                  `json:"duration_ms"`
		Segments   []types.SpeakerSegment `json:"segments"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	segs := []types.SpeakerSegment{{Timestamp: 1.0, Speaker: types.SpeakerUser, Transcript: "hi", ItemID: "i1"}}
	err := history.NewClient(srv.URL).CompleteCall(t.Context(), "call-9", types.EndReasonUserHangup, 90*time.Second, segs)
	if err != nil {
		t.Fatalf("CompleteCall: %v", err)
	}

	if gotPath != "/browser/call/call-9/complete" {
		t.Errorf("path = %q; want \"/browser/call/call-9/complete\"", gotPath)
	}
	if gotBody.Reason != string(types.EndReasonUserHangup) {
		t.Errorf("reason = %q; want %q", gotBody.Reason, types.EndReasonUserHangup)
	}
	if gotBody.DurationMs != 90000 {
		t.Errorf("duration_ms = %d; want 90000", gotBody.DurationMs)
	}
	if len(gotBody.Segments) != 1 || gotBody.Segments[0] != segs[0] {
		t.Errorf("segments = %+v; want %+v", gotBody.Segments, segs)
	}
}

func TestStreamURL_SchemeConversion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base string
		want string
	}{
		{"https://api.example.com", "wss://api.example.com/browser/call-stream/c1"},
		{"http://localhost:8080", "ws://localhost:8080/browser/call-stream/c1"},
		{"https://api.example.com/", "wss://api.example.com/browser/call-stream/c1"},
	}
	for _, c := range cases {
		if got := history.NewClient(c.base).StreamURL("c1"); got != c.want {
			t.Errorf("StreamURL(%q) = %q; want %q", c.base, got, c.want)
		}
	}
}

func TestSignalURL(t *testing.T) {
	t.Parallel()

	got := history.NewClient("https://api.example.com").SignalURL("c2")
	want := "https://api.example.com/browser/call-signal/c2"
	if got != want {
		t.Errorf("SignalURL = %q; want %q", got, want)
	}
}
