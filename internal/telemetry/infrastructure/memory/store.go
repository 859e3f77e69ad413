package memory

import (
	"context"
	"sync"
	"time"

	alarms "steamwash-cloud/internal/alarms/domain"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// Store keeps the singleton rows and alert log in memory.
type Store struct {
	mu      sync.RWMutex
	state   telemetry.SystemState
	usage   telemetry.ResourceUsage
	tariffs telemetry.Tariffs
	debits  telemetry.RealtimeDebits
	alerts  []alarms.Alert
	nextID  int64
}

// NewStore constructs a store seeded with reference defaults.
func NewStore() *Store {
	return &Store{
		state:   telemetry.DefaultSystemState(),
		tariffs: telemetry.DefaultTariffs(),
		nextID:  1,
	}
}

// SystemState returns the singleton state.
func (s *Store) SystemState(ctx context.Context) (telemetry.SystemState, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// ResourceUsage returns accumulated usage.
func (s *Store) ResourceUsage(ctx context.Context) (telemetry.ResourceUsage, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage, nil
}

// Tariffs returns the tariff row.
func (s *Store) Tariffs(ctx context.Context) (telemetry.Tariffs, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tariffs, nil
}

// RealtimeDebits returns the last sampled debits.
func (s *Store) RealtimeDebits(ctx context.Context) (telemetry.RealtimeDebits, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debits, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]alarms.Alert, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]alarms.Alert, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

// ApplyTick writes a tick result.
func (s *Store) ApplyTick(ctx context.Context, tick telemetry.Tick, raised []alarms.Alert) ([]alarms.Alert, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.WithPhysics(tick.Physics)
	s.state.UpdatedAt = tick.At
	s.debits = tick.Debits
	s.usage = s.usage.Add(tick.Increment)
	s.usage.UpdatedAt = tick.At

	stored := make([]alarms.Alert, 0, len(raised))
	for _, alert := range raised {
		stored = append(stored, s.appendLocked(alert))
	}
	return stored, nil
}

// UpdateSystemState merges patch into the state.
func (s *Store) UpdateSystemState(ctx context.Context, patch telemetry.SystemStatePatch, at time.Time) (telemetry.SystemState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = patch.Apply(s.state)
	s.state.UpdatedAt = at
	return s.state, nil
}

// UpdateResources merges usage and tariff fields.
func (s *Store) UpdateResources(ctx context.Context, patch telemetry.ResourceUsagePatch, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !patch.UsageEmpty() {
		s.usage = patch.Apply(s.usage)
		s.usage.UpdatedAt = at
	}
	s.tariffs = patch.TariffsPatch.Apply(s.tariffs)
	return nil
}

// AppendAlert stores an alert with the next id.
func (s *Store) AppendAlert(ctx context.Context, alert alarms.Alert) (alarms.Alert, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(alert), nil
}

// Reset zeroes usage and drops all alerts.
func (s *Store) Reset(ctx context.Context, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = telemetry.ResourceUsage{UpdatedAt: at}
	s.alerts = nil
	return nil
}

func (s *Store) appendLocked(alert alarms.Alert) alarms.Alert {
	alert.ID = s.nextID
	s.nextID++
	s.alerts = append(s.alerts, alert)
	return alert
}
