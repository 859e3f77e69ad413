package telemetry

import "time"

// Physical ranges enforced by the tick clamp step.
const (
	MinSteamPressure = 0.0
	MaxSteamPressure = 10.0
	MinTemperature   = 20.0
	MaxTemperature   = 150.0
	MinWaterLevel    = 0.0
	MaxWaterLevel    = 100.0
	MinVoltage       = 200.0
	MaxVoltage       = 240.0
)

// Reference defaults for a freshly initialized system.
const (
	DefaultTemperature    = 25.0
	DefaultWaterLevel     = 75.0
	DefaultVoltage        = 220.0
	DefaultTargetPressure = 5.0
	DefaultTargetSpeed    = 1800.0
	DefaultActiveMotors   = 3
)

// SystemState is the singleton physical state of the steam-wash system.
// Setpoints (targets, active motors) and IsRunning change only through commands.
type SystemState struct {
	SteamPressure  float64   `json:"steam_pressure"`
	Temperature    float64   `json:"temperature"`
	WaterLevel     float64   `json:"water_level"`
	MotorSpeed     float64   `json:"motor_speed"`
	Voltage        float64   `json:"voltage"`
	IsRunning      bool      `json:"is_running"`
	TargetPressure float64   `json:"target_pressure"`
	TargetSpeed    float64   `json:"target_speed"`
	ActiveMotors   int       `json:"active_motors"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultSystemState returns the state of a system that has never run.
func DefaultSystemState() SystemState {
	return SystemState{
		Temperature:    DefaultTemperature,
		WaterLevel:     DefaultWaterLevel,
		Voltage:        DefaultVoltage,
		TargetPressure: DefaultTargetPressure,
		TargetSpeed:    DefaultTargetSpeed,
		ActiveMotors:   DefaultActiveMotors,
	}
}

// Physics holds the fields the tick engine owns.
type Physics struct {
	SteamPressure float64 `json:"steam_pressure"`
	Temperature   float64 `json:"temperature"`
	WaterLevel    float64 `json:"water_level"`
	MotorSpeed    float64 `json:"motor_speed"`
	Voltage       float64 `json:"voltage"`
}

// Physics extracts the physical fields.
func (s SystemState) Physics() Physics {
	return Physics{
		SteamPressure: s.SteamPressure,
		Temperature:   s.Temperature,
		WaterLevel:    s.WaterLevel,
		MotorSpeed:    s.MotorSpeed,
		Voltage:       s.Voltage,
	}
}

// WithPhysics returns a copy of s carrying the given physical fields.
func (s SystemState) WithPhysics(p Physics) SystemState {
	s.SteamPressure = p.SteamPressure
	s.Temperature = p.Temperature
	s.WaterLevel = p.WaterLevel
	s.MotorSpeed = p.MotorSpeed
	s.Voltage = p.Voltage
	return s
}

// Clamp bounds the physical fields to their ranges. MotorSpeed is not bounded.
func (p Physics) Clamp() Physics {
	p.SteamPressure = clamp(p.SteamPressure, MinSteamPressure, MaxSteamPressure)
	p.Temperature = clamp(p.Temperature, MinTemperature, MaxTemperature)
	p.WaterLevel = clamp(p.WaterLevel, MinWaterLevel, MaxWaterLevel)
	p.Voltage = clamp(p.Voltage, MinVoltage, MaxVoltage)
	return p
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
