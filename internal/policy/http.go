package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTP calls a model server over JSON/HTTP.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates a new HTTP predictor. timeout bounds each request; zero
// uses 10s.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Predict posts the observation to the model server's predict endpoint.
func (h *HTTP) Predict(ctx context.Context, obs Observation, deterministic bool) (Prediction, error) {
	reqBody := map[string]any{
		"observation":   obs[:],
		"deterministic": deterministic,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("policy api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("policy api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Action     *float64 `json:"action"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if result.Action == nil || result.Confidence == nil {
		return Prediction{}, fmt.Errorf("decode response: missing action or confidence")
	}

	return decodePrediction(*result.Action, *result.Confidence)
}

// Ready checks the model server's health endpoint.
func (h *HTTP) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", h.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("policy health: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("policy health status %d", resp.StatusCode)
	}
	return nil
}
