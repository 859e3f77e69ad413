package telemetry

import (
	"errors"
	"math"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestSystemStatePatchApplyMergesOnlySetFields(t *testing.T) {
	state := DefaultSystemState()
	state.SteamPressure = 4
	patch := SystemStatePatch{IsRunning: ptr(true), TargetSpeed: ptr(5000.0)}
	if err := patch.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	next := patch.Apply(state)
	if !next.IsRunning || next.TargetSpeed != 5000 {
		t.Fatalf("patch not applied: %+v", next)
	}
	if next.SteamPressure != 4 || next.ActiveMotors != DefaultActiveMotors || next.Temperature != DefaultTemperature {
		t.Fatalf("unset fields changed: %+v", next)
	}
}

func TestPatchValidation(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"empty state", SystemStatePatch{}.Validate()},
		{"nan state", SystemStatePatch{Voltage: ptr(math.NaN())}.Validate()},
		{"empty tariffs", TariffsPatch{}.Validate()},
		{"inf tariff", TariffsPatch{Soap: ptr(math.Inf(1))}.Validate()},
		{"empty usage", ResourceUsagePatch{}.Validate()},
		{"nan usage", ResourceUsagePatch{WaterUsage: ptr(math.NaN())}.Validate()},
		{"nan tariff in usage", ResourceUsagePatch{TariffsPatch: TariffsPatch{ServicePrice: ptr(math.NaN())}}.Validate()},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, ErrInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", tc.name, tc.err)
		}
	}
}

func TestResourceUsagePatchAcceptsTariffOnly(t *testing.T) {
	patch := ResourceUsagePatch{TariffsPatch: TariffsPatch{ServicePrice: ptr(20000.0)}}
	if err := patch.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !patch.UsageEmpty() {
		t.Fatalf("expected usage part empty")
	}
	tariffs := patch.TariffsPatch.Apply(DefaultTariffs())
	if tariffs.ServicePrice != 20000 || tariffs.Electricity != DefaultElectricityTariff {
		t.Fatalf("unexpected tariffs: %+v", tariffs)
	}
}

func TestResourceUsagePatchApply(t *testing.T) {
	usage := ResourceUsage{EnergyConsumption: 1, WaterUsage: 2, WashSessions: 3}
	next := ResourceUsagePatch{WashSessions: ptr(7), SoapUsage: ptr(9.5)}.Apply(usage)
	if next.WashSessions != 7 || next.SoapUsage != 9.5 || next.EnergyConsumption != 1 || next.WaterUsage != 2 {
		t.Fatalf("unexpected usage: %+v", next)
	}
}
