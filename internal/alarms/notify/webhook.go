package notify

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

	alarms "steamwash-cloud/internal/alarms/domain"
)

// Message is one rendered alert ready for delivery.
type Message struct {
	Site  string
	Alert alarms.Alert
	Text  string
}

// Channel delivers alert messages. Name labels delivery metrics.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// webhookPayload carries the rendered text under "text", which chat webhooks
// display as is, next to the structured alert for machine consumers.
type webhookPayload struct {
	Text  string       `json:"text"`
	Site  string       `json:"site"`
	Alert webhookAlert `json:"alert"`
}

type webhookAlert struct {
	ID       int64     `json:"id"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

const maxErrorBody = 256

// WebhookChannel posts alerts as JSON to an HTTP endpoint.
type WebhookChannel struct {
	url     string
	client  *http.Client
	headers http.Header
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) WebhookOption {
	return func(ch *WebhookChannel) {
		if key != "" {
			ch.headers.Set(key, value)
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	ch := &WebhookChannel{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		headers: http.Header{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ch)
		}
	}
	return ch, nil
}

// Name implements Channel.
func (w *WebhookChannel) Name() string { return "webhook" }

// Send posts msg. Any non-2xx status is an error carrying the start of the body.
func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		Text: msg.Text,
		Site: msg.Site,
		Alert: webhookAlert{
			ID:       msg.Alert.ID,
			Type:     string(msg.Alert.Kind),
			Message:  msg.Alert.Message,
			RaisedAt: msg.Alert.CreatedAt.UTC(),
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range w.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "steamwash-notifier")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook channel: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
