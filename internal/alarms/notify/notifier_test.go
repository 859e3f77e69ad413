package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
)

var raisedAt = time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)

func dangerEvent(id int64) alarmapp.AlertEvent {
	return alarmapp.AlertEvent{
		Type: alarmapp.EventRaised,
		Alert: alarms.Alert{
			ID:        id,
			Kind:      alarms.KindDanger,
			Message:   "steam pressure too high",
			CreatedAt: raisedAt,
		},
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	type received struct {
		payload webhookPayload
		apiKey  string
	}
	gotCh := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotCh <- received{payload: payload, apiKey: r.Header.Get("X-Api-Key")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL, WithHeader("X-Api-Key", "secret"))
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	notifier, err := NewNotifier(channel, nil, WithSite("Bay 2"))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), dangerEvent(42))

	select {
	case got := <-gotCh:
		if got.apiKey != "secret" {
			t.Fatalf("expected api key header, got %q", got.apiKey)
		}
		alert := got.payload.Alert
		if got.payload.Site != "Bay 2" || alert.ID != 42 || alert.Type != "danger" || !alert.RaisedAt.Equal(raisedAt) {
			t.Fatalf("unexpected payload: %+v", got.payload)
		}
		checks := []string{
			"DANGER | Bay 2",
			"steam pressure too high",
			"alert #42 at 2026-01-26T08:00:00Z",
			"-> Stop the wash line",
		}
		for _, expected := range checks {
			if !strings.Contains(got.payload.Text, expected) {
				t.Fatalf("expected text to include %q, got %s", expected, got.payload.Text)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	err = channel.Send(context.Background(), Message{Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected error with status and body, got %v", err)
	}
	if _, err := NewWebhookChannel("  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestTemplateCustomAndInvalid(t *testing.T) {
	tpl, err := NewTemplate("{{lower .KindLabel}}: {{.Message}}")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	out, err := tpl.Render(buildTemplateData("site", alarms.Alert{Kind: alarms.KindWarning, Message: "water low"}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "warning: water low" {
		t.Fatalf("unexpected render %q", out)
	}
	if _, err := NewTemplate("{{.Missing"); err == nil {
		t.Fatalf("expected parse error")
	}
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestNotifier(t *testing.T, channel Channel, opts ...Option) *Notifier {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	notifier, err := NewNotifier(channel, nil, opts...)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	t.Cleanup(func() { _ = notifier.Close() })
	return notifier
}

func TestNotifierCooldown(t *testing.T) {
	clock := &fakeClock{now: raisedAt}
	channel := &recordingChannel{}
	notifier := newTestNotifier(t, channel, WithClock(clock), WithCooldown(10*time.Minute))

	notifier.Notify(context.Background(), dangerEvent(1))
	notifier.Notify(context.Background(), dangerEvent(2))
	notifier.wait()
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during cooldown, got %d", got)
	}

	clock.Add(11 * time.Minute)
	notifier.Notify(context.Background(), dangerEvent(3))
	notifier.wait()
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after cooldown, got %d", got)
	}
}

func TestNotifierClearedResetsCooldown(t *testing.T) {
	clock := &fakeClock{now: raisedAt}
	channel := &recordingChannel{}
	notifier := newTestNotifier(t, channel, WithClock(clock), WithCooldown(time.Hour))

	notifier.Notify(context.Background(), dangerEvent(1))
	notifier.Notify(context.Background(), alarmapp.AlertEvent{Type: alarmapp.EventCleared})
	notifier.Notify(context.Background(), dangerEvent(2))
	notifier.wait()
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after clear, got %d", got)
	}
}

func TestNotifierKindFilter(t *testing.T) {
	channel := &recordingChannel{}
	notifier := newTestNotifier(t, channel)
	warning := alarmapp.AlertEvent{Type: alarmapp.EventRaised, Alert: alarms.Alert{ID: 1, Kind: alarms.KindWarning, Message: "temperature approaching maximum"}}
	notifier.Notify(context.Background(), warning)
	notifier.wait()
	if got := channel.Count(); got != 0 {
		t.Fatalf("expected warnings to be filtered, got %d", got)
	}

	all := newTestNotifier(t, channel, WithKinds(alarms.KindDanger, alarms.KindWarning))
	all.Notify(context.Background(), warning)
	all.wait()
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected warning to be sent, got %d", got)
	}
}

func TestNotifierFailedSendStartsCooldown(t *testing.T) {
	clock := &fakeClock{now: raisedAt}
	channel := &recordingChannel{err: errors.New("down")}
	attempts := 0
	counting := &countingChannel{Channel: channel, attempts: &attempts}
	notifier := newTestNotifier(t, counting, WithClock(clock), WithCooldown(time.Hour))

	notifier.Notify(context.Background(), dangerEvent(1))
	notifier.Notify(context.Background(), dangerEvent(2))
	notifier.wait()
	if attempts != 1 {
		t.Fatalf("expected one attempt while failing within cooldown, got %d", attempts)
	}

	channel.mu.Lock()
	channel.err = nil
	channel.mu.Unlock()
	clock.Add(time.Hour)
	notifier.Notify(context.Background(), dangerEvent(3))
	notifier.wait()
	if attempts != 2 || channel.Count() != 1 {
		t.Fatalf("expected retry after cooldown, got attempts=%d sent=%d", attempts, channel.Count())
	}
}

// countingChannel counts attempts. Only the worker goroutine writes attempts
// and tests read it after wait.
type countingChannel struct {
	Channel
	attempts *int
}

func (c *countingChannel) Send(ctx context.Context, msg Message) error {
	*c.attempts++
	return c.Channel.Send(ctx, msg)
}

// hangingChannel blocks every send until its context is cancelled.
type hangingChannel struct {
	started chan struct{}
	once    sync.Once
}

func (h *hangingChannel) Name() string { return "hanging" }

func (h *hangingChannel) Send(ctx context.Context, _ Message) error {
	h.once.Do(func() { close(h.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestNotifyDoesNotWaitForSlowChannel(t *testing.T) {
	channel := &hangingChannel{started: make(chan struct{})}
	notifier := newTestNotifier(t, channel, WithQueueSize(2), WithRequestTimeout(time.Minute), WithKinds(alarms.KindDanger))

	notifier.Notify(context.Background(), dangerEvent(1))
	select {
	case <-channel.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first event")
	}

	start := time.Now()
	for i := 0; i < 100; i++ {
		ev := dangerEvent(int64(i + 2))
		ev.Alert.Message = fmt.Sprintf("steam pressure too high #%d", i)
		notifier.Notify(context.Background(), ev)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("notify blocked on a hanging channel for %s", elapsed)
	}

	closed := make(chan struct{})
	go func() {
		_ = notifier.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the send in flight")
	}
}

type countingNotifier struct {
	count int
}

func (c *countingNotifier) Notify(context.Context, alarmapp.AlertEvent) {
	c.count++
}

func TestMultiNotifierFansOut(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	multi := NewMultiNotifier(a, nil, b)
	multi.Notify(context.Background(), dangerEvent(1))
	if a.count != 1 || b.count != 1 {
		t.Fatalf("expected both notifiers called, got %d and %d", a.count, b.count)
	}
}
