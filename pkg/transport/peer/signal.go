package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pion/webrtc/v4"
)

// signalClient exchanges the SDP offer for an answer over a single HTTP
// round trip. The platform's signaling endpoint accepts a JSON
// SessionDescription and responds with its own once ICE gathering is
// complete.
type signalClient struct {
	url       string
	authToken string
	client    *http.Client
}

func (s *signalClient) exchange(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	var answer webrtc.SessionDescription

	body, err := json.Marshal(offer)
	if err != nil {
		return answer, fmt.Errorf("peer: marshal offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return answer, fmt.Errorf("peer: build signal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return answer, fmt.Errorf("peer: signal exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return answer, fmt.Errorf("peer: signal exchange: status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return answer, fmt.Errorf("peer: decode answer: %w", err)
	}
	return answer, nil
}
