package events

import (
	"time"

	alarms "steamwash-cloud/internal/alarms/domain"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// TickCompleted is raised after a running tick has been persisted.
type TickCompleted struct {
	Sequence   uint64                   `json:"sequence"`
	State      telemetry.SystemState    `json:"state"`
	Debits     telemetry.RealtimeDebits `json:"debits"`
	Increment  telemetry.UsageIncrement `json:"increment"`
	Alerts     []alarms.Alert           `json:"alerts"`
	OccurredAt time.Time                `json:"occurred_at"`
}
