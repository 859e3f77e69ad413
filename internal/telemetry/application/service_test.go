package application

import (
	"context"
	"errors"
	"testing"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	telemetry "steamwash-cloud/internal/telemetry/domain"
	"steamwash-cloud/internal/telemetry/infrastructure/memory"
)

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{WithServiceClock(fixedClock{now: tickAt})}
	service, err := NewService(store, NewGuard(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func ptr[T any](v T) *T { return &v }

func TestSnapshotDefaults(t *testing.T) {
	service := newTestService(t, memory.NewStore())

	snapshot, err := service.GetSnapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Alerts == nil || len(snapshot.Alerts) != 0 {
		t.Fatalf("expected empty non-nil alerts, got %#v", snapshot.Alerts)
	}
	if snapshot.Tariffs != telemetry.DefaultTariffs() {
		t.Fatalf("unexpected tariffs: %+v", snapshot.Tariffs)
	}
	if snapshot.SystemStatus.IsRunning || snapshot.SystemStatus.TargetSpeed != telemetry.DefaultTargetSpeed {
		t.Fatalf("unexpected state: %+v", snapshot.SystemStatus)
	}
}

func TestSnapshotCarriesRecentAlertsNewestFirst(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, memory.NewStore())
	for i := 0; i < 12; i++ {
		if _, err := service.AddAlert(ctx, "warning", "manual check"); err != nil {
			t.Fatalf("add alert: %v", err)
		}
	}

	snapshot, err := service.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot.Alerts) != DefaultRecentAlerts {
		t.Fatalf("expected %d alerts, got %d", DefaultRecentAlerts, len(snapshot.Alerts))
	}
	if snapshot.Alerts[0].ID != 12 || snapshot.Alerts[9].ID != 3 {
		t.Fatalf("unexpected order: first=%d last=%d", snapshot.Alerts[0].ID, snapshot.Alerts[9].ID)
	}
}

func TestUpdateSystemStateMergesPartialPatch(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, memory.NewStore())

	state, err := service.UpdateSystemState(ctx, telemetry.SystemStatePatch{
		IsRunning:   ptr(true),
		TargetSpeed: ptr(2000.0),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !state.IsRunning || state.TargetSpeed != 2000 {
		t.Fatalf("patch not applied: %+v", state)
	}
	if state.Voltage != telemetry.DefaultVoltage || state.ActiveMotors != telemetry.DefaultActiveMotors {
		t.Fatalf("untouched fields changed: %+v", state)
	}
	if !state.UpdatedAt.Equal(tickAt) {
		t.Fatalf("expected updated_at %v, got %v", tickAt, state.UpdatedAt)
	}
}

func TestUpdateSystemStateRejectsEmptyPatch(t *testing.T) {
	service := newTestService(t, memory.NewStore())
	_, err := service.UpdateSystemState(context.Background(), telemetry.SystemStatePatch{})
	if !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestUpdateResourceUsageAppliesTariffsTogether(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, memory.NewStore())

	patch := telemetry.ResourceUsagePatch{WashSessions: ptr(7)}
	patch.ServicePrice = ptr(20000.0)
	usage, err := service.UpdateResourceUsage(ctx, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if usage.WashSessions != 7 {
		t.Fatalf("expected 7 sessions, got %d", usage.WashSessions)
	}
	snapshot, _ := service.GetSnapshot(ctx)
	if snapshot.Tariffs.ServicePrice != 20000 || snapshot.Tariffs.Electricity != telemetry.DefaultElectricityTariff {
		t.Fatalf("unexpected tariffs: %+v", snapshot.Tariffs)
	}
	if got := snapshot.Financials().GrossRevenue; got != 7*3*20000 {
		t.Fatalf("unexpected gross revenue: %v", got)
	}
}

func TestUpdateResourceUsageStorageFailure(t *testing.T) {
	store := &failingStore{Store: memory.NewStore(), failWrite: true}
	service := newTestService(t, store)

	_, err := service.UpdateResourceUsage(context.Background(), telemetry.ResourceUsagePatch{WaterUsage: ptr(3.0)})
	if !errors.Is(err, telemetry.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	usage, _ := store.ResourceUsage(context.Background())
	if usage.WaterUsage != 0 {
		t.Fatalf("partial write: %+v", usage)
	}
}

func TestAddAlertValidation(t *testing.T) {
	service := newTestService(t, memory.NewStore())
	cases := []struct {
		name    string
		kind    string
		message string
	}{
		{name: "unknown kind", kind: "info", message: "hello"},
		{name: "empty kind", kind: "", message: "hello"},
		{name: "empty message", kind: "danger", message: "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.AddAlert(context.Background(), tc.kind, tc.message)
			if !errors.Is(err, telemetry.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestAddAlertNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	service := newTestService(t, memory.NewStore(), WithAlertNotifier(notifier))

	alert, err := service.AddAlert(context.Background(), " Danger ", "manual stop requested")
	if err != nil {
		t.Fatalf("add alert: %v", err)
	}
	if alert.ID != 1 || alert.Kind != alarms.KindDanger || !alert.CreatedAt.Equal(tickAt) {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	events := notifier.snapshot()
	if len(events) != 1 || events[0].Type != alarmapp.EventRaised || events[0].Alert.ID != 1 {
		t.Fatalf("unexpected notifications: %+v", events)
	}
}

func TestResetClearsUsageAndAlertsOnly(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	service := newTestService(t, memory.NewStore(), WithAlertNotifier(notifier))
	if _, err := service.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.UpdateResourceUsage(ctx, telemetry.ResourceUsagePatch{
		EnergyConsumption: ptr(4.0),
		WashSessions:      ptr(3),
		TotalRevenue:      ptr(99.0),
	}); err != nil {
		t.Fatalf("update resources: %v", err)
	}
	if _, err := service.AddAlert(ctx, "warning", "check soap"); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	if err := service.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	snapshot, _ := service.GetSnapshot(ctx)
	usage := snapshot.ResourceUsage
	if usage.EnergyConsumption != 0 || usage.WashSessions != 0 || usage.TotalRevenue != 0 {
		t.Fatalf("usage not zeroed: %+v", usage)
	}
	if len(snapshot.Alerts) != 0 {
		t.Fatalf("alerts not cleared: %+v", snapshot.Alerts)
	}
	if !snapshot.SystemStatus.IsRunning {
		t.Fatalf("reset must not touch system state")
	}
	events := notifier.snapshot()
	if events[len(events)-1].Type != alarmapp.EventCleared {
		t.Fatalf("expected cleared notification, got %+v", events)
	}
}

func TestResetStorageFailure(t *testing.T) {
	store := &failingStore{Store: memory.NewStore(), failWrite: true}
	service := newTestService(t, store)
	if err := service.Reset(context.Background()); !errors.Is(err, telemetry.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestEmergencyStop(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, memory.NewStore())
	if _, err := service.UpdateSystemState(ctx, telemetry.SystemStatePatch{
		IsRunning:     ptr(true),
		SteamPressure: ptr(9.0),
		MotorSpeed:    ptr(1700.0),
		Temperature:   ptr(110.0),
		WaterLevel:    ptr(40.0),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	state, err := service.EmergencyStop(ctx)
	if err != nil {
		t.Fatalf("emergency stop: %v", err)
	}
	if state.IsRunning || state.SteamPressure != 0 || state.MotorSpeed != 0 || state.Temperature != 25 {
		t.Fatalf("unexpected state after emergency stop: %+v", state)
	}
	if state.WaterLevel != 40 {
		t.Fatalf("water level should be kept, got %v", state.WaterLevel)
	}
}

func TestSetpointCommands(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, memory.NewStore())

	if _, err := service.SetTargetPressure(ctx, 11); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for pressure 11, got %v", err)
	}
	if _, err := service.SetTargetSpeed(ctx, -1); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for speed -1, got %v", err)
	}
	if _, err := service.SetActiveMotors(ctx, -2); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for motors -2, got %v", err)
	}
	if _, err := service.SetServicePrice(ctx, -5); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for price -5, got %v", err)
	}

	if _, err := service.SetTargetPressure(ctx, 6.5); err != nil {
		t.Fatalf("set pressure: %v", err)
	}
	if _, err := service.SetTargetSpeed(ctx, 1500); err != nil {
		t.Fatalf("set speed: %v", err)
	}
	state, err := service.SetActiveMotors(ctx, 4)
	if err != nil {
		t.Fatalf("set motors: %v", err)
	}
	if state.TargetPressure != 6.5 || state.TargetSpeed != 1500 || state.ActiveMotors != 4 {
		t.Fatalf("setpoints not applied: %+v", state)
	}
	tariffs, err := service.SetServicePrice(ctx, 12000)
	if err != nil {
		t.Fatalf("set price: %v", err)
	}
	if tariffs.ServicePrice != 12000 || tariffs.Water != telemetry.DefaultWaterTariff {
		t.Fatalf("unexpected tariffs: %+v", tariffs)
	}
}
