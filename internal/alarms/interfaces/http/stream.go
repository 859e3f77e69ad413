package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	alarmapp "steamwash-cloud/internal/alarms/application"
)

const (
	keepAliveInterval = 15 * time.Second
	clientBuffer      = 16
	// retryMillis tells EventSource clients how long to wait before reconnecting.
	retryMillis = 3000
)

type event struct {
	id      uint64
	name    string
	payload []byte
}

// Broker fans alert events out to connected stream clients. A client whose
// buffer is full misses the event instead of blocking the sender.
type Broker struct {
	mu      sync.Mutex
	clients map[chan event]struct{}
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewBroker constructs a Broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[chan event]struct{})}
}

// Notify implements alarmapp.AlertNotifier.
func (b *Broker) Notify(_ context.Context, ev alarmapp.AlertEvent) {
	if b == nil {
		return
	}
	name, payload := "cleared", []byte("{}")
	if ev.Type != alarmapp.EventCleared {
		encoded, err := json.Marshal(ev.Alert)
		if err != nil {
			return
		}
		name, payload = "alert", encoded
	}
	b.publish(event{id: b.seq.Add(1), name: name, payload: payload})
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped returns how many deliveries were skipped for slow clients.
func (b *Broker) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

func (b *Broker) subscribe() (<-chan event, func()) {
	ch := make(chan event, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
	}
}

func (b *Broker) publish(ev event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func writeEvent(w io.Writer, ev event) error {
	if ev.id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.id); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.payload)
	return err
}

// StreamHandler serves GET /api/alerts/stream as server-sent events.
type StreamHandler struct {
	broker *Broker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *Broker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	events, unsubscribe := h.broker.subscribe()
	defer unsubscribe()

	if _, err := fmt.Fprintf(w, "retry: %d\n", retryMillis); err != nil {
		return
	}
	if err := writeEvent(w, event{name: "ready", payload: []byte("{}")}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
