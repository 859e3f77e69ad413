package application

import (
	"context"

	alarms "steamwash-cloud/internal/alarms/domain"
)

// Alert event types.
const (
	EventRaised  = "raised"
	EventCleared = "cleared"
)

// AlertNotifier publishes alert log events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents an alert log change. Cleared events carry no alert.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alarms.Alert `json:"alert"`
}
