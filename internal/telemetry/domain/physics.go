package telemetry

import "time"

// DefaultTickDuration is the reference tick period.
const DefaultTickDuration = 500 * time.Millisecond

// Random walk amplitudes and debit ranges.
const (
	pressureStep    = 0.25
	temperatureStep = 1.0
	waterDrainMax   = 0.1
	motorInertia    = 0.1
	motorNoise      = 5.0
	voltageStep     = 2.5

	energyDebitMin = 2.5
	energyDebitMax = 3.0
	waterDebitMin  = 15.0
	waterDebitMax  = 20.0
	soapDebitMin   = 25.0
	soapDebitMax   = 35.0
)

// RandomSource yields uniform values in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// Step advances the physical fields of a running system by one tick and
// draws fresh debits. Step does not look at IsRunning; callers gate it.
func Step(state SystemState, rng RandomSource) (Physics, RealtimeDebits) {
	next := Physics{
		SteamPressure: state.SteamPressure + uniform(rng, -pressureStep, pressureStep),
		Temperature:   state.Temperature + uniform(rng, -temperatureStep, temperatureStep),
		WaterLevel:    state.WaterLevel - uniform(rng, 0, waterDrainMax),
		MotorSpeed:    state.MotorSpeed + (state.TargetSpeed-state.MotorSpeed)*motorInertia + uniform(rng, -motorNoise, motorNoise),
		Voltage:       state.Voltage + uniform(rng, -voltageStep, voltageStep),
	}.Clamp()

	debits := RealtimeDebits{
		EnergyDebit: uniform(rng, energyDebitMin, energyDebitMax),
		WaterDebit:  uniform(rng, waterDebitMin, waterDebitMax),
		SoapDebit:   uniform(rng, soapDebitMin, soapDebitMax),
	}
	return next, debits
}

// Accumulate converts debits sampled over dt into a usage increment.
// Energy debits are kW (kWh = kW * h); water and soap debits are per minute.
func Accumulate(debits RealtimeDebits, dt time.Duration) UsageIncrement {
	seconds := dt.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	return UsageIncrement{
		EnergyKWh:   debits.EnergyDebit * seconds / 3600,
		WaterLiters: debits.WaterDebit * seconds / 60,
		SoapML:      debits.SoapDebit * seconds / 60,
		DurationMin: seconds / 60,
	}
}

func uniform(rng RandomSource, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// Tick is the outcome of one running simulation step, ready to persist.
type Tick struct {
	At        time.Time
	Physics   Physics
	Debits    RealtimeDebits
	Increment UsageIncrement
}
