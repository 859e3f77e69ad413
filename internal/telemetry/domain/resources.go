package telemetry

import "time"

// Reference tariff defaults.
const (
	DefaultElectricityTariff = 1500.0
	DefaultWaterTariff       = 500.0
	DefaultSoapTariff        = 50.0
	DefaultServicePrice      = 15000.0
)

// ResourceUsage accumulates consumption while the system runs.
type ResourceUsage struct {
	EnergyConsumption float64   `json:"energy_consumption"`
	WaterUsage        float64   `json:"water_usage"`
	SoapUsage         float64   `json:"soap_usage"`
	WashDuration      float64   `json:"wash_duration"`
	WashSessions      int       `json:"wash_sessions"`
	TotalRevenue      float64   `json:"total_revenue"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UsageIncrement is the amount one tick adds to ResourceUsage.
type UsageIncrement struct {
	EnergyKWh   float64 `json:"energy_kwh"`
	WaterLiters float64 `json:"water_liters"`
	SoapML      float64 `json:"soap_ml"`
	DurationMin float64 `json:"duration_min"`
}

// Add returns usage with the increment applied.
func (u ResourceUsage) Add(inc UsageIncrement) ResourceUsage {
	u.EnergyConsumption += inc.EnergyKWh
	u.WaterUsage += inc.WaterLiters
	u.SoapUsage += inc.SoapML
	u.WashDuration += inc.DurationMin
	return u
}

// RealtimeDebits are the instantaneous consumption rates sampled on the last tick.
type RealtimeDebits struct {
	WaterDebit  float64   `json:"water_debit"`
	SoapDebit   float64   `json:"soap_debit"`
	EnergyDebit float64   `json:"energy_debit"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tariffs are operator-configured unit prices.
type Tariffs struct {
	Electricity  float64 `json:"electricity"`
	Water        float64 `json:"water"`
	Soap         float64 `json:"soap"`
	ServicePrice float64 `json:"service_price"`
}

// DefaultTariffs returns the reference tariff row.
func DefaultTariffs() Tariffs {
	return Tariffs{
		Electricity:  DefaultElectricityTariff,
		Water:        DefaultWaterTariff,
		Soap:         DefaultSoapTariff,
		ServicePrice: DefaultServicePrice,
	}
}
