package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"steamwash-cloud/internal/audit"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
)

// Client talks to the steamwash HTTP API.
type Client struct {
	baseURL    string
	operator   string
	httpClient *http.Client
}

// NewClient constructs a client for baseURL. operator is sent with commands.
func NewClient(baseURL, operator string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("dashboard: empty api url")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, operator: operator, httpClient: httpClient}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Status fetches the current snapshot.
func (c *Client) Status(ctx context.Context) (telemetryapp.Snapshot, error) {
	var snapshot telemetryapp.Snapshot
	env, err := c.do(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return snapshot, err
	}
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("dashboard: decode status: %w", err)
	}
	return snapshot, nil
}

// Command posts an operator command such as "start" or "emergency-stop".
func (c *Client) Command(ctx context.Context, name string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/commands/"+name, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Reset clears accumulated usage and alerts.
func (c *Client) Reset(ctx context.Context) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/reset", nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return envelope{}, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.operator != "" {
		req.Header.Set(audit.OperatorHeader, c.operator)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("dashboard: %s %s: status %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return env, fmt.Errorf("dashboard: %s %s: %d %s", method, path, resp.StatusCode, env.Message)
	}
	return env, nil
}
