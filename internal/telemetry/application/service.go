package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/observability/metrics"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// DefaultRecentAlerts is the number of alerts a snapshot carries.
const DefaultRecentAlerts = 10

// Command names used for metrics and audit.
const (
	CommandUpdateStatus      = "update_status"
	CommandUpdateResources   = "update_resources"
	CommandUpdateTariffs     = "update_tariffs"
	CommandAddAlert          = "add_alert"
	CommandReset             = "reset"
	CommandStart             = "start"
	CommandStop              = "stop"
	CommandEmergencyStop     = "emergency_stop"
	CommandSetTargetPressure = "target_pressure"
	CommandSetTargetSpeed    = "target_speed"
	CommandSetActiveMotors   = "active_motors"
	CommandSetServicePrice   = "service_price"
)

// Snapshot is the consolidated read model served to dashboards.
type Snapshot struct {
	SystemStatus   telemetry.SystemState    `json:"systemStatus"`
	ResourceUsage  telemetry.ResourceUsage  `json:"resourceUsage"`
	Tariffs        telemetry.Tariffs        `json:"tariffs"`
	RealtimeDebits telemetry.RealtimeDebits `json:"realtimeDebits"`
	Alerts         []alarms.Alert           `json:"alerts"`
}

// Financials derives the billing view of the snapshot.
func (s Snapshot) Financials() telemetry.Financials {
	return telemetry.ComputeFinancials(s.SystemStatus, s.ResourceUsage, s.Tariffs)
}

// Service exposes operator commands and the read surface.
type Service struct {
	store    Store
	guard    *Guard
	clock    Clock
	notifier alarmapp.AlertNotifier
	recent   int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAlertNotifier sets the notifier for manually added alerts and resets.
func WithAlertNotifier(notifier alarmapp.AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithRecentAlerts sets how many alerts a snapshot carries.
func WithRecentAlerts(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.recent = limit
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, guard *Guard, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("telemetry service: nil store")
	}
	if guard == nil {
		return nil, errors.New("telemetry service: nil guard")
	}
	s := &Service{
		store:  store,
		guard:  guard,
		clock:  systemClock{},
		recent: DefaultRecentAlerts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// GetSnapshot returns the consolidated view. Alerts are newest first.
func (s *Service) GetSnapshot(ctx context.Context) (Snapshot, error) {
	state, err := s.store.SystemState(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	usage, err := s.store.ResourceUsage(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tariffs, err := s.store.Tariffs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	debits, err := s.store.RealtimeDebits(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	recent, err := s.store.RecentAlerts(ctx, s.recent)
	if err != nil {
		return Snapshot{}, err
	}
	if recent == nil {
		recent = []alarms.Alert{}
	}
	return Snapshot{
		SystemStatus:   state,
		ResourceUsage:  usage,
		Tariffs:        tariffs,
		RealtimeDebits: debits,
		Alerts:         recent,
	}, nil
}

// UpdateSystemState merges patch into the singleton state.
func (s *Service) UpdateSystemState(ctx context.Context, patch telemetry.SystemStatePatch) (telemetry.SystemState, error) {
	return s.updateState(ctx, CommandUpdateStatus, patch)
}

// UpdateResourceUsage overwrites the given usage counters and tariffs together.
func (s *Service) UpdateResourceUsage(ctx context.Context, patch telemetry.ResourceUsagePatch) (telemetry.ResourceUsage, error) {
	if err := patch.Validate(); err != nil {
		metrics.IncCommand(CommandUpdateResources, metrics.ResultError)
		return telemetry.ResourceUsage{}, err
	}
	err := s.guard.Do(func() error {
		return s.store.UpdateResources(ctx, patch, s.clock.Now())
	})
	if err != nil {
		metrics.IncCommand(CommandUpdateResources, metrics.ResultError)
		return telemetry.ResourceUsage{}, err
	}
	metrics.IncCommand(CommandUpdateResources, metrics.ResultSuccess)
	return s.store.ResourceUsage(ctx)
}

// UpdateTariffs overwrites the given unit prices.
func (s *Service) UpdateTariffs(ctx context.Context, patch telemetry.TariffsPatch) (telemetry.Tariffs, error) {
	return s.updateTariffs(ctx, CommandUpdateTariffs, patch)
}

// AddAlert appends an operator alert to the log.
func (s *Service) AddAlert(ctx context.Context, kind, message string) (alarms.Alert, error) {
	alert := alarms.Alert{
		Kind:      alarms.Kind(strings.ToLower(strings.TrimSpace(kind))),
		Message:   strings.TrimSpace(message),
		CreatedAt: s.clock.Now(),
	}
	if err := alert.Validate(); err != nil {
		metrics.IncCommand(CommandAddAlert, metrics.ResultError)
		return alarms.Alert{}, fmt.Errorf("%w: %v", telemetry.ErrInvalidArgument, err)
	}
	var stored alarms.Alert
	err := s.guard.Do(func() error {
		var err error
		stored, err = s.store.AppendAlert(ctx, alert)
		return err
	})
	if err != nil {
		metrics.IncCommand(CommandAddAlert, metrics.ResultError)
		return alarms.Alert{}, err
	}
	metrics.IncCommand(CommandAddAlert, metrics.ResultSuccess)
	metrics.IncAlertEvent(string(stored.Kind))
	if s.notifier != nil {
		s.notifier.Notify(ctx, alarmapp.AlertEvent{Type: alarmapp.EventRaised, Alert: stored})
	}
	return stored, nil
}

// Reset zeroes usage counters and clears the alert log. SystemState is kept.
func (s *Service) Reset(ctx context.Context) error {
	err := s.guard.Do(func() error {
		return s.store.Reset(ctx, s.clock.Now())
	})
	if err != nil {
		metrics.IncCommand(CommandReset, metrics.ResultError)
		return err
	}
	metrics.IncCommand(CommandReset, metrics.ResultSuccess)
	if s.notifier != nil {
		s.notifier.Notify(ctx, alarmapp.AlertEvent{Type: alarmapp.EventCleared})
	}
	return nil
}

// Start sets the system running.
func (s *Service) Start(ctx context.Context) (telemetry.SystemState, error) {
	running := true
	return s.updateState(ctx, CommandStart, telemetry.SystemStatePatch{IsRunning: &running})
}

// Stop halts the system, leaving physical readings as they are.
func (s *Service) Stop(ctx context.Context) (telemetry.SystemState, error) {
	running := false
	return s.updateState(ctx, CommandStop, telemetry.SystemStatePatch{IsRunning: &running})
}

// EmergencyStop halts the system and drops pressure, motor speed and temperature.
func (s *Service) EmergencyStop(ctx context.Context) (telemetry.SystemState, error) {
	running := false
	pressure, speed, temperature := 0.0, 0.0, telemetry.DefaultTemperature
	return s.updateState(ctx, CommandEmergencyStop, telemetry.SystemStatePatch{
		IsRunning:     &running,
		SteamPressure: &pressure,
		MotorSpeed:    &speed,
		Temperature:   &temperature,
	})
}

// SetTargetPressure changes the pressure setpoint.
func (s *Service) SetTargetPressure(ctx context.Context, value float64) (telemetry.SystemState, error) {
	if value < telemetry.MinSteamPressure || value > telemetry.MaxSteamPressure {
		metrics.IncCommand(CommandSetTargetPressure, metrics.ResultError)
		return telemetry.SystemState{}, fmt.Errorf("%w: target pressure must be within [%g, %g]",
			telemetry.ErrInvalidArgument, telemetry.MinSteamPressure, telemetry.MaxSteamPressure)
	}
	return s.updateState(ctx, CommandSetTargetPressure, telemetry.SystemStatePatch{TargetPressure: &value})
}

// SetTargetSpeed changes the motor speed setpoint.
func (s *Service) SetTargetSpeed(ctx context.Context, value float64) (telemetry.SystemState, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		metrics.IncCommand(CommandSetTargetSpeed, metrics.ResultError)
		return telemetry.SystemState{}, fmt.Errorf("%w: target speed must be a non-negative number", telemetry.ErrInvalidArgument)
	}
	return s.updateState(ctx, CommandSetTargetSpeed, telemetry.SystemStatePatch{TargetSpeed: &value})
}

// SetActiveMotors changes how many motors are billed per session.
func (s *Service) SetActiveMotors(ctx context.Context, count int) (telemetry.SystemState, error) {
	if count < 0 {
		metrics.IncCommand(CommandSetActiveMotors, metrics.ResultError)
		return telemetry.SystemState{}, fmt.Errorf("%w: active motors must not be negative", telemetry.ErrInvalidArgument)
	}
	return s.updateState(ctx, CommandSetActiveMotors, telemetry.SystemStatePatch{ActiveMotors: &count})
}

// SetServicePrice changes the price of one motor-session.
func (s *Service) SetServicePrice(ctx context.Context, price float64) (telemetry.Tariffs, error) {
	if price < 0 {
		metrics.IncCommand(CommandSetServicePrice, metrics.ResultError)
		return telemetry.Tariffs{}, fmt.Errorf("%w: service price must not be negative", telemetry.ErrInvalidArgument)
	}
	return s.updateTariffs(ctx, CommandSetServicePrice, telemetry.TariffsPatch{ServicePrice: &price})
}

func (s *Service) updateState(ctx context.Context, command string, patch telemetry.SystemStatePatch) (telemetry.SystemState, error) {
	if err := patch.Validate(); err != nil {
		metrics.IncCommand(command, metrics.ResultError)
		return telemetry.SystemState{}, err
	}
	var state telemetry.SystemState
	err := s.guard.Do(func() error {
		var err error
		state, err = s.store.UpdateSystemState(ctx, patch, s.clock.Now())
		return err
	})
	if err != nil {
		metrics.IncCommand(command, metrics.ResultError)
		return telemetry.SystemState{}, err
	}
	metrics.IncCommand(command, metrics.ResultSuccess)
	return state, nil
}

func (s *Service) updateTariffs(ctx context.Context, command string, patch telemetry.TariffsPatch) (telemetry.Tariffs, error) {
	if err := patch.Validate(); err != nil {
		metrics.IncCommand(command, metrics.ResultError)
		return telemetry.Tariffs{}, err
	}
	err := s.guard.Do(func() error {
		return s.store.UpdateResources(ctx, telemetry.ResourceUsagePatch{TariffsPatch: patch}, s.clock.Now())
	})
	if err != nil {
		metrics.IncCommand(command, metrics.ResultError)
		return telemetry.Tariffs{}, err
	}
	metrics.IncCommand(command, metrics.ResultSuccess)
	return s.store.Tariffs(ctx)
}
