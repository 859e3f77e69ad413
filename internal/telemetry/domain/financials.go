package telemetry

// CostLine is the cost of one consumed resource.
type CostLine struct {
	Resource string  `json:"resource"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Tariff   float64 `json:"tariff"`
	Amount   float64 `json:"amount"`
}

// Financials is the billing view of accumulated usage.
type Financials struct {
	WashSessions    int        `json:"wash_sessions"`
	ActiveMotors    int        `json:"active_motors"`
	ServicePrice    float64    `json:"service_price"`
	GrossRevenue    float64    `json:"gross_revenue"`
	OperationalCost float64    `json:"operational_cost"`
	NetRevenue      float64    `json:"net_revenue"`
	Costs           []CostLine `json:"costs"`
}

// ComputeFinancials bills every session once per active motor and charges
// consumption at the current tariffs.
func ComputeFinancials(state SystemState, usage ResourceUsage, tariffs Tariffs) Financials {
	costs := []CostLine{
		costLine("energy", "kWh", usage.EnergyConsumption, tariffs.Electricity),
		costLine("water", "L", usage.WaterUsage, tariffs.Water),
		costLine("soap", "mL", usage.SoapUsage, tariffs.Soap),
	}
	var cost float64
	for _, line := range costs {
		cost += line.Amount
	}
	gross := float64(usage.WashSessions) * float64(state.ActiveMotors) * tariffs.ServicePrice
	return Financials{
		WashSessions:    usage.WashSessions,
		ActiveMotors:    state.ActiveMotors,
		ServicePrice:    tariffs.ServicePrice,
		GrossRevenue:    gross,
		OperationalCost: cost,
		NetRevenue:      gross - cost,
		Costs:           costs,
	}
}

func costLine(resource, unit string, quantity, tariff float64) CostLine {
	return CostLine{
		Resource: resource,
		Unit:     unit,
		Quantity: quantity,
		Tariff:   tariff,
		Amount:   quantity * tariff,
	}
}
