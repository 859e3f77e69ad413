package application

import (
	"context"
	"sync"
	"time"

	alarms "steamwash-cloud/internal/alarms/domain"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// Store owns the singleton telemetry rows and the alert log.
// Implementations wrap driver failures in telemetry.ErrStorageUnavailable
// and report missing singleton rows as telemetry.ErrNotFound.
type Store interface {
	SystemState(ctx context.Context) (telemetry.SystemState, error)
	ResourceUsage(ctx context.Context) (telemetry.ResourceUsage, error)
	Tariffs(ctx context.Context) (telemetry.Tariffs, error)
	RealtimeDebits(ctx context.Context) (telemetry.RealtimeDebits, error)
	RecentAlerts(ctx context.Context, limit int) ([]alarms.Alert, error)

	// ApplyTick writes physics, debits, the usage increment and alerts as one
	// unit and returns the stored alerts. Setpoints and IsRunning are untouched.
	ApplyTick(ctx context.Context, tick telemetry.Tick, raised []alarms.Alert) ([]alarms.Alert, error)
	UpdateSystemState(ctx context.Context, patch telemetry.SystemStatePatch, at time.Time) (telemetry.SystemState, error)
	// UpdateResources applies usage and tariff fields of patch as one unit.
	UpdateResources(ctx context.Context, patch telemetry.ResourceUsagePatch, at time.Time) error
	AppendAlert(ctx context.Context, alert alarms.Alert) (alarms.Alert, error)
	// Reset zeroes every usage counter and deletes all alerts as one unit.
	Reset(ctx context.Context, at time.Time) error
}

// Guard serializes read-modify-write sequences against the singleton rows.
// The tick engine holds it from its state read to its write; every command
// mutation holds it for its write, so neither can overwrite the other.
type Guard struct {
	mu sync.Mutex
}

// NewGuard constructs a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Do runs fn while holding the guard.
func (g *Guard) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
