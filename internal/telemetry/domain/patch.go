package telemetry

import (
	"fmt"
	"math"
)

// SystemStatePatch is a partial update of SystemState. Nil fields are untouched.
// Values are not range-checked; the tick clamp step bounds physical fields.
type SystemStatePatch struct {
	SteamPressure  *float64 `json:"steam_pressure,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	WaterLevel     *float64 `json:"water_level,omitempty"`
	MotorSpeed     *float64 `json:"motor_speed,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty"`
	IsRunning      *bool    `json:"is_running,omitempty"`
	TargetPressure *float64 `json:"target_pressure,omitempty"`
	TargetSpeed    *float64 `json:"target_speed,omitempty"`
	ActiveMotors   *int     `json:"active_motors,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p SystemStatePatch) Empty() bool {
	return p.SteamPressure == nil && p.Temperature == nil && p.WaterLevel == nil &&
		p.MotorSpeed == nil && p.Voltage == nil && p.IsRunning == nil &&
		p.TargetPressure == nil && p.TargetSpeed == nil && p.ActiveMotors == nil
}

// Validate checks the patch is structurally usable.
func (p SystemStatePatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: empty system state update", ErrInvalidArgument)
	}
	return checkFinite(map[string]*float64{
		"steam_pressure":  p.SteamPressure,
		"temperature":     p.Temperature,
		"water_level":     p.WaterLevel,
		"motor_speed":     p.MotorSpeed,
		"voltage":         p.Voltage,
		"target_pressure": p.TargetPressure,
		"target_speed":    p.TargetSpeed,
	})
}

// Apply merges the patch into state.
func (p SystemStatePatch) Apply(state SystemState) SystemState {
	setFloat(&state.SteamPressure, p.SteamPressure)
	setFloat(&state.Temperature, p.Temperature)
	setFloat(&state.WaterLevel, p.WaterLevel)
	setFloat(&state.MotorSpeed, p.MotorSpeed)
	setFloat(&state.Voltage, p.Voltage)
	setFloat(&state.TargetPressure, p.TargetPressure)
	setFloat(&state.TargetSpeed, p.TargetSpeed)
	if p.IsRunning != nil {
		state.IsRunning = *p.IsRunning
	}
	if p.ActiveMotors != nil {
		state.ActiveMotors = *p.ActiveMotors
	}
	return state
}

// TariffsPatch is a partial update of Tariffs.
type TariffsPatch struct {
	Electricity  *float64 `json:"electricity,omitempty"`
	Water        *float64 `json:"water,omitempty"`
	Soap         *float64 `json:"soap,omitempty"`
	ServicePrice *float64 `json:"service_price,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p TariffsPatch) Empty() bool {
	return p.Electricity == nil && p.Water == nil && p.Soap == nil && p.ServicePrice == nil
}

// Validate checks the patch is structurally usable.
func (p TariffsPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: empty tariff update", ErrInvalidArgument)
	}
	return checkFinite(map[string]*float64{
		"electricity":   p.Electricity,
		"water":         p.Water,
		"soap":          p.Soap,
		"service_price": p.ServicePrice,
	})
}

// Apply merges the patch into tariffs.
func (p TariffsPatch) Apply(t Tariffs) Tariffs {
	setFloat(&t.Electricity, p.Electricity)
	setFloat(&t.Water, p.Water)
	setFloat(&t.Soap, p.Soap)
	setFloat(&t.ServicePrice, p.ServicePrice)
	return t
}

// ResourceUsagePatch is a partial update of ResourceUsage. Tariff keys are
// accepted alongside usage keys and applied together.
type ResourceUsagePatch struct {
	EnergyConsumption *float64 `json:"energy_consumption,omitempty"`
	WaterUsage        *float64 `json:"water_usage,omitempty"`
	SoapUsage         *float64 `json:"soap_usage,omitempty"`
	WashDuration      *float64 `json:"wash_duration,omitempty"`
	WashSessions      *int     `json:"wash_sessions,omitempty"`
	TotalRevenue      *float64 `json:"total_revenue,omitempty"`

	TariffsPatch
}

// UsageEmpty reports whether no usage field is set.
func (p ResourceUsagePatch) UsageEmpty() bool {
	return p.EnergyConsumption == nil && p.WaterUsage == nil && p.SoapUsage == nil &&
		p.WashDuration == nil && p.WashSessions == nil && p.TotalRevenue == nil
}

// Empty reports whether the patch sets no field at all.
func (p ResourceUsagePatch) Empty() bool {
	return p.UsageEmpty() && p.TariffsPatch.Empty()
}

// Validate checks the patch is structurally usable.
func (p ResourceUsagePatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: empty resource update", ErrInvalidArgument)
	}
	if err := checkFinite(map[string]*float64{
		"energy_consumption": p.EnergyConsumption,
		"water_usage":        p.WaterUsage,
		"soap_usage":         p.SoapUsage,
		"wash_duration":      p.WashDuration,
		"total_revenue":      p.TotalRevenue,
	}); err != nil {
		return err
	}
	if p.TariffsPatch.Empty() {
		return nil
	}
	return p.TariffsPatch.Validate()
}

// Apply merges the usage part of the patch into usage.
func (p ResourceUsagePatch) Apply(u ResourceUsage) ResourceUsage {
	setFloat(&u.EnergyConsumption, p.EnergyConsumption)
	setFloat(&u.WaterUsage, p.WaterUsage)
	setFloat(&u.SoapUsage, p.SoapUsage)
	setFloat(&u.WashDuration, p.WashDuration)
	setFloat(&u.TotalRevenue, p.TotalRevenue)
	if p.WashSessions != nil {
		u.WashSessions = *p.WashSessions
	}
	return u
}

func setFloat(dst *float64, value *float64) {
	if value != nil {
		*dst = *value
	}
}

func checkFinite(fields map[string]*float64) error {
	for name, value := range fields {
		if value == nil {
			continue
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidArgument, name)
		}
	}
	return nil
}
