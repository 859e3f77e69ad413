package telemetry

import (
	"math"
	"testing"
)

func TestComputeFinancials(t *testing.T) {
	state := DefaultSystemState()
	usage := ResourceUsage{EnergyConsumption: 2, WaterUsage: 10, SoapUsage: 100, WashSessions: 4}

	got := ComputeFinancials(state, usage, DefaultTariffs())

	if got.GrossRevenue != 4*3*15000 {
		t.Fatalf("expected gross 180000, got %v", got.GrossRevenue)
	}
	wantCost := 2*1500.0 + 10*500.0 + 100*50.0
	if math.Abs(got.OperationalCost-wantCost) > 1e-9 {
		t.Fatalf("expected cost %v, got %v", wantCost, got.OperationalCost)
	}
	if math.Abs(got.NetRevenue-(got.GrossRevenue-wantCost)) > 1e-9 {
		t.Fatalf("unexpected net %v", got.NetRevenue)
	}
	if len(got.Costs) != 3 || got.Costs[0].Resource != "energy" || got.Costs[0].Amount != 3000 {
		t.Fatalf("unexpected cost lines: %+v", got.Costs)
	}
}

func TestComputeFinancialsNoMotors(t *testing.T) {
	state := DefaultSystemState()
	state.ActiveMotors = 0
	got := ComputeFinancials(state, ResourceUsage{WashSessions: 9}, DefaultTariffs())
	if got.GrossRevenue != 0 || got.NetRevenue != 0 {
		t.Fatalf("expected zero revenue, got %+v", got)
	}
}
