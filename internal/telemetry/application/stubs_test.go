package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/telemetry/application/events"
	telemetry "steamwash-cloud/internal/telemetry/domain"
	"steamwash-cloud/internal/telemetry/infrastructure/memory"
)

type constRandom float64

func (c constRandom) Float64() float64 { return float64(c) }

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var errDown = fmt.Errorf("%w: connection refused", telemetry.ErrStorageUnavailable)

// failingStore wraps a memory store and fails selected operations.
type failingStore struct {
	*memory.Store
	failRead  atomic.Bool
	failTick  bool
	failWrite bool
}

func (f *failingStore) SystemState(ctx context.Context) (telemetry.SystemState, error) {
	if f.failRead.Load() {
		return telemetry.SystemState{}, errDown
	}
	return f.Store.SystemState(ctx)
}

func (f *failingStore) ApplyTick(ctx context.Context, tick telemetry.Tick, raised []alarms.Alert) ([]alarms.Alert, error) {
	if f.failTick {
		return nil, errDown
	}
	return f.Store.ApplyTick(ctx, tick, raised)
}

func (f *failingStore) UpdateResources(ctx context.Context, patch telemetry.ResourceUsagePatch, at time.Time) error {
	if f.failWrite {
		return errDown
	}
	return f.Store.UpdateResources(ctx, patch, at)
}

func (f *failingStore) AppendAlert(ctx context.Context, alert alarms.Alert) (alarms.Alert, error) {
	if f.failWrite {
		return alarms.Alert{}, errDown
	}
	return f.Store.AppendAlert(ctx, alert)
}

func (f *failingStore) Reset(ctx context.Context, at time.Time) error {
	if f.failWrite {
		return errDown
	}
	return f.Store.Reset(ctx, at)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []alarmapp.AlertEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event alarmapp.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) snapshot() []alarmapp.AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alarmapp.AlertEvent, len(r.events))
	copy(out, r.events)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TickCompleted
	err    error
}

func (r *recordingPublisher) PublishTick(_ context.Context, event events.TickCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

var errBroker = errors.New("broker unavailable")
