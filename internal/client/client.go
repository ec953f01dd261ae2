// Package client talks to a running habitcity server. The CLI uses it for
// commands that need the server's in-memory safety history.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lazypower/habitcity/internal/engine"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 10 * time.Second
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the habitcity server.
type Client struct {
	http      *http.Client
	serverURL string
	token     string
}

// New creates a client for serverURL. token, when set, is sent as a
// bearer token.
func New(serverURL, token string) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
	}
}

// NewFromEnv respects HABITCITY_URL and HABITCITY_TOKEN, falling back to
// http://127.0.0.1:37778 without a token.
func NewFromEnv() *Client {
	url := os.Getenv("HABITCITY_URL")
	if url == "" {
		url = defaultServerURL
	}
	return New(url, os.Getenv("HABITCITY_TOKEN"))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

// Decide asks the server for the next action for userID.
func (c *Client) Decide(ctx context.Context, userID string, state engine.UserState) (engine.Decision, error) {
	var d engine.Decision
	err := c.do(ctx, http.MethodPost, "/api/decide-action", map[string]any{
		"user_id": userID,
		"state":   state,
	}, &d)
	return d, err
}

// Completion is the server's reply to a habit completion.
type Completion struct {
	engine.Decision
	BuildingUpdate engine.ProgressionUpdate `json:"building_update"`
}

// Complete records a completion of habit. A nil state lets the server use
// its default.
func (c *Client) Complete(ctx context.Context, userID, habit string, state *engine.UserState) (Completion, error) {
	req := map[string]any{
		"user_id":    userID,
		"habit_type": habit,
	}
	if state != nil {
		req["state"] = state
	}
	var out Completion
	err := c.do(ctx, http.MethodPost, "/api/complete-habit", req, &out)
	return out, err
}

// ClearHistory drops the server's safety history for userID.
func (c *Client) ClearHistory(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+userID, nil, nil)
}
