package application

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/observability/metrics"
	"steamwash-cloud/internal/telemetry/application/events"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// TickOutcome describes what a single tick did.
type TickOutcome string

const (
	TickAdvanced TickOutcome = TickOutcome(metrics.TickResultAdvanced)
	TickStopped  TickOutcome = TickOutcome(metrics.TickResultStopped)
	TickSkipped  TickOutcome = TickOutcome(metrics.TickResultError)
)

// TickPublisher forwards completed ticks to downstream consumers.
type TickPublisher interface {
	PublishTick(ctx context.Context, event events.TickCompleted) error
}

// Engine drives the periodic simulation tick.
type Engine struct {
	store     Store
	guard     *Guard
	evaluator *alarms.Evaluator
	rng       telemetry.RandomSource
	clock     Clock
	period    time.Duration
	dt        time.Duration
	notifier  alarmapp.AlertNotifier
	publisher TickPublisher
	logger    *log.Logger
	sequence  atomic.Uint64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPeriod sets the wall-clock interval between ticks.
func WithPeriod(period time.Duration) EngineOption {
	return func(e *Engine) {
		if period > 0 {
			e.period = period
		}
	}
}

// WithTickDuration sets the simulated duration each tick accounts for.
func WithTickDuration(dt time.Duration) EngineOption {
	return func(e *Engine) {
		if dt > 0 {
			e.dt = dt
		}
	}
}

// WithRandomSource overrides the random source used by the physics step.
func WithRandomSource(rng telemetry.RandomSource) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed seeds the default random source.
func WithSeed(seed uint64) EngineOption {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithEvaluator overrides the alert rules.
func WithEvaluator(evaluator *alarms.Evaluator) EngineOption {
	return func(e *Engine) {
		if evaluator != nil {
			e.evaluator = evaluator
		}
	}
}

// WithNotifier sets the alert notifier.
func WithNotifier(notifier alarmapp.AlertNotifier) EngineOption {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithPublisher sets the tick publisher.
func WithPublisher(publisher TickPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine constructs an Engine. The guard must be shared with the Service
// that mutates the same store.
func NewEngine(store Store, guard *Guard, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: nil store")
	}
	if guard == nil {
		return nil, errors.New("engine: nil guard")
	}
	now := uint64(time.Now().UnixNano())
	e := &Engine{
		store:     store,
		guard:     guard,
		evaluator: alarms.DefaultEvaluator(),
		rng:       rand.New(rand.NewPCG(now, now>>1)),
		clock:     systemClock{},
		period:    telemetry.DefaultTickDuration,
		dt:        telemetry.DefaultTickDuration,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Period returns the configured tick interval.
func (e *Engine) Period() time.Duration {
	return e.period
}

// Start runs ticks until ctx is done. A failed tick is logged and the
// loop keeps going.
func (e *Engine) Start(ctx context.Context) {
	if e == nil {
		return
	}
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(ctx); err != nil {
				e.logger.Printf("simulation tick skipped: %v", err)
			}
		}
	}
}

// Tick performs one simulation step. A stopped system is left untouched.
// On any storage error nothing is written and TickSkipped is returned.
func (e *Engine) Tick(ctx context.Context) (TickOutcome, error) {
	started := time.Now()

	outcome := TickStopped
	var (
		state  telemetry.SystemState
		tick   telemetry.Tick
		stored []alarms.Alert
	)
	err := e.guard.Do(func() error {
		current, err := e.store.SystemState(ctx)
		if err != nil {
			return err
		}
		if !current.IsRunning {
			return nil
		}

		at := e.clock.Now()
		physics, debits := telemetry.Step(current, e.rng)
		debits.UpdatedAt = at
		tick = telemetry.Tick{
			At:        at,
			Physics:   physics,
			Debits:    debits,
			Increment: telemetry.Accumulate(debits, e.dt),
		}
		state = current.WithPhysics(physics)
		state.UpdatedAt = at

		stored, err = e.store.ApplyTick(ctx, tick, e.evaluator.Evaluate(state, at))
		if err != nil {
			return err
		}
		outcome = TickAdvanced
		return nil
	})
	if err != nil {
		metrics.ObserveTick(string(TickSkipped), time.Since(started))
		return TickSkipped, err
	}
	metrics.ObserveTick(string(outcome), time.Since(started))
	if outcome == TickAdvanced {
		e.afterTick(ctx, state, tick, stored)
	}
	return outcome, nil
}

func (e *Engine) afterTick(ctx context.Context, state telemetry.SystemState, tick telemetry.Tick, stored []alarms.Alert) {
	metrics.SetSystemReading("steam_pressure", state.SteamPressure)
	metrics.SetSystemReading("temperature", state.Temperature)
	metrics.SetSystemReading("water_level", state.WaterLevel)
	metrics.SetSystemReading("motor_speed", state.MotorSpeed)
	metrics.SetSystemReading("voltage", state.Voltage)
	metrics.SetDebit("energy", tick.Debits.EnergyDebit)
	metrics.SetDebit("water", tick.Debits.WaterDebit)
	metrics.SetDebit("soap", tick.Debits.SoapDebit)

	for _, alert := range stored {
		metrics.IncAlertEvent(string(alert.Kind))
		if e.notifier != nil {
			e.notifier.Notify(ctx, alarmapp.AlertEvent{Type: alarmapp.EventRaised, Alert: alert})
		}
	}

	if e.publisher == nil {
		return
	}
	if stored == nil {
		stored = []alarms.Alert{}
	}
	event := events.TickCompleted{
		Sequence:   e.sequence.Add(1),
		State:      state,
		Debits:     tick.Debits,
		Increment:  tick.Increment,
		Alerts:     stored,
		OccurredAt: tick.At,
	}
	if err := e.publisher.PublishTick(ctx, event); err != nil {
		metrics.IncPublish(metrics.ResultError)
		e.logger.Printf("tick publish failed: seq=%d err=%v", event.Sequence, err)
		return
	}
	metrics.IncPublish(metrics.ResultSuccess)
}
