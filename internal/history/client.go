// Package history talks to the platform's call REST API: creating the
// call record before streaming starts and flushing the outcome once the
// call ends.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxwire/voxwire/pkg/types"
)

// Client is a thin wrapper over the /browser call endpoints.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Primarily used in
// tests to point at a local server.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithAuthToken attaches a bearer token to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// NewClient creates a Client for the API at baseURL (scheme and host,
// e.g. "https://api.example.com").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type callRequest struct {
	UserInfo map[string]any `json:"user_info"`
	AgentID  string         `json:"agent_id"`
}

type callResponse struct {
	PhoneCallID string `json:"phone_call_id"`
}

type completeRequest struct {
	Reason     types.EndReason        `json:"reason"`
	DurationMs int64                  `json:"duration_ms"`
	Segments   []types.SpeakerSegment `json:"segments"`
}

// CreateCall registers a new browser call for the given agent and returns
// the call ID used for the stream endpoints.
func (c *Client) CreateCall(ctx context.Context, agentID string, userInfo map[string]any) (string, error) {
	if userInfo == nil {
		userInfo = map[string]any{}
	}
	var resp callResponse
	err := c.post(ctx, "/browser/call", callRequest{UserInfo: userInfo, AgentID: agentID}, &resp)
	if err != nil {
		return "", err
	}
	if resp.PhoneCallID == "" {
		return "", fmt.Errorf("history: create call: empty phone_call_id")
	}
	return resp.PhoneCallID, nil
}

// CompleteCall flushes the call outcome: end reason, duration and the
// final speaker timeline.
func (c *Client) CompleteCall(ctx context.Context, callID string, reason types.EndReason, duration time.Duration, segments []types.SpeakerSegment) error {
	req := completeRequest{
		Reason:     reason,
		DurationMs: duration.Milliseconds(),
		Segments:   segments,
	}
	return c.post(ctx, "/browser/call/"+url.PathEscape(callID)+"/complete", req, nil)
}

// StreamURL returns the WebSocket endpoint for the call's media stream,
// derived from the API base URL.
func (c *Client) StreamURL(callID string) string {
	wsBase := c.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return wsBase + "/browser/call-stream/" + url.PathEscape(callID)
}

// SignalURL returns the HTTP endpoint for WebRTC offer/answer signaling.
func (c *Client) SignalURL(callID string) string {
	return c.baseURL + "/browser/call-signal/" + url.PathEscape(callID)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("history: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("history: build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("history: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("history: %s: status %d: %s", path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("history: decode %s response: %w", path, err)
	}
	return nil
}
