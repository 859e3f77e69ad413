package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/observability/metrics"
)

// Clock provides time for cooldown tracking.
type Clock interface {
	Now() time.Time
}

// DefaultQueueSize bounds the events waiting for delivery.
const DefaultQueueSize = 64

type job struct {
	alert   alarms.Alert
	cleared bool
	// done is closed once every earlier job has been handled.
	done chan struct{}
}

// Notifier sends raised alerts through a channel from its own goroutine.
// Notify never waits on the channel: when the queue is full the event is
// dropped. The cooldown throttles notifications only; every alert is still
// in the log.
type Notifier struct {
	channel        Channel
	template       *Template
	site           string
	kinds          map[alarms.Kind]bool
	clock          Clock
	cooldown       time.Duration
	requestTimeout time.Duration
	queueSize      int
	logger         *log.Logger

	mu   sync.Mutex
	sent map[string]time.Time

	queue     chan job
	stop      chan struct{}
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout bounds each channel send.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alert message.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithKinds selects which alert kinds are sent. Default is danger only.
func WithKinds(kinds ...alarms.Kind) Option {
	return func(n *Notifier) {
		selected := make(map[alarms.Kind]bool)
		for _, kind := range kinds {
			if kind.Valid() {
				selected[kind] = true
			}
		}
		if len(selected) > 0 {
			n.kinds = selected
		}
	}
}

// WithQueueSize bounds how many events may wait for delivery.
func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queueSize = size
		}
	}
}

// WithSite names the installation in rendered messages.
func WithSite(site string) Option {
	return func(n *Notifier) {
		if site != "" {
			n.site = site
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		site:           "steam wash",
		kinds:          map[alarms.Kind]bool{alarms.KindDanger: true},
		clock:          systemClock{},
		requestTimeout: 5 * time.Second,
		queueSize:      DefaultQueueSize,
		logger:         log.Default(),
		sent:           make(map[string]time.Time),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.queue = make(chan job, n.queueSize)
	n.baseCtx, n.cancel = context.WithCancel(context.Background())
	n.wg.Add(1)
	go n.run()
	return n, nil
}

// Close stops the delivery goroutine and abandons queued events. A send in
// flight is cancelled.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.closeOnce.Do(func() {
		close(n.stop)
		n.cancel()
	})
	n.wg.Wait()
	return nil
}

// Notify implements AlertNotifier. It only enqueues.
func (n *Notifier) Notify(_ context.Context, event alarmapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	var j job
	switch event.Type {
	case alarmapp.EventRaised:
		if !n.kinds[event.Alert.Kind] {
			return
		}
		j = job{alert: event.Alert}
	case alarmapp.EventCleared:
		j = job{cleared: true}
	default:
		return
	}
	select {
	case <-n.stop:
	case n.queue <- j:
	default:
		if j.cleared {
			n.clearCooldowns()
			return
		}
		metrics.IncNotification(n.channel.Name(), metrics.ResultDropped)
		n.logger.Printf("alert notify queue full: dropped id=%d", event.Alert.ID)
	}
}

// wait blocks until every event queued before the call has been handled.
func (n *Notifier) wait() {
	done := make(chan struct{})
	select {
	case n.queue <- job{done: done}:
	case <-n.stop:
		return
	}
	select {
	case <-done:
	case <-n.stop:
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stop:
			return
		default:
		}
		select {
		case <-n.stop:
			return
		case j := <-n.queue:
			switch {
			case j.done != nil:
				close(j.done)
			case j.cleared:
				n.clearCooldowns()
			default:
				n.dispatch(n.baseCtx, j.alert)
			}
		}
	}
}

func (n *Notifier) clearCooldowns() {
	n.mu.Lock()
	n.sent = make(map[string]time.Time)
	n.mu.Unlock()
}

// dispatch sends one alert. Failed attempts also start the cooldown so a
// broken endpoint is not retried on every tick.
func (n *Notifier) dispatch(ctx context.Context, alert alarms.Alert) {
	key := notificationKey(alert)
	if !n.shouldSend(key) {
		return
	}
	text, err := n.template.Render(buildTemplateData(n.site, alert))
	if err != nil {
		n.logger.Printf("alert notify render error: %v", err)
		return
	}
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	name := n.channel.Name()
	n.markSent(key)
	if err := n.channel.Send(ctx, Message{Site: n.site, Alert: alert, Text: text}); err != nil {
		metrics.IncNotification(name, metrics.ResultError)
		n.logger.Printf("alert notify send error: channel=%s id=%d err=%v", name, alert.ID, err)
		return
	}
	metrics.IncNotification(name, metrics.ResultSuccess)
}

func buildTemplateData(site string, alert alarms.Alert) TemplateData {
	raisedAt := alert.CreatedAt
	if raisedAt.IsZero() {
		raisedAt = time.Now()
	}
	return TemplateData{
		Site:       site,
		AlertID:    alert.ID,
		Kind:       string(alert.Kind),
		KindLabel:  kindLabel(alert.Kind),
		Message:    alert.Message,
		RaisedAt:   raisedAt.UTC().Format(time.RFC3339),
		Suggestion: suggestionFor(alert.Kind),
	}
}

func kindLabel(kind alarms.Kind) string {
	switch kind {
	case alarms.KindDanger:
		return "Danger"
	case alarms.KindWarning:
		return "Warning"
	default:
		return string(kind)
	}
}

func suggestionFor(kind alarms.Kind) string {
	if kind == alarms.KindDanger {
		return "Stop the wash line and vent the boiler before inspection."
	}
	return "Watch the trend and reduce load if it keeps rising."
}

func (n *Notifier) shouldSend(key string) bool {
	if n.cooldown <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	n.mu.Lock()
	last, ok := n.sent[key]
	n.mu.Unlock()
	return !ok || now.Sub(last) >= n.cooldown
}

func (n *Notifier) markSent(key string) {
	n.mu.Lock()
	n.sent[key] = n.clock.Now().UTC()
	n.mu.Unlock()
}

func notificationKey(alert alarms.Alert) string {
	return string(alert.Kind) + "|" + alert.Message
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
