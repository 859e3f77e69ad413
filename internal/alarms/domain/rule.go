package alarms

import (
	"fmt"
	"time"

	telemetry "steamwash-cloud/internal/telemetry/domain"
)

type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorGreaterOrEqual Operator = ">="
	OperatorLess           Operator = "<"
	OperatorLessOrEqual    Operator = "<="
)

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorGreaterOrEqual, OperatorLess, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// Metric names a SystemState field a rule watches.
type Metric string

const (
	MetricSteamPressure Metric = "steam_pressure"
	MetricTemperature   Metric = "temperature"
	MetricWaterLevel    Metric = "water_level"
	MetricMotorSpeed    Metric = "motor_speed"
	MetricVoltage       Metric = "voltage"
)

// Value reads the metric from state.
func (m Metric) Value(state telemetry.SystemState) (float64, bool) {
	switch m {
	case MetricSteamPressure:
		return state.SteamPressure, true
	case MetricTemperature:
		return state.Temperature, true
	case MetricWaterLevel:
		return state.WaterLevel, true
	case MetricMotorSpeed:
		return state.MotorSpeed, true
	case MetricVoltage:
		return state.Voltage, true
	default:
		return 0, false
	}
}

// Rule defines a threshold-based alert rule.
type Rule struct {
	Metric    Metric   `yaml:"metric" json:"metric"`
	Operator  Operator `yaml:"operator" json:"operator"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Kind      Kind     `yaml:"kind" json:"kind"`
	Message   string   `yaml:"message" json:"message"`
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if _, ok := r.Metric.Value(telemetry.SystemState{}); !ok {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, r.Metric)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("%w: invalid operator %q", ErrInvalidRule, r.Operator)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: invalid kind %q", ErrInvalidRule, r.Kind)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidRule)
	}
	return nil
}

// Triggered reports whether value crosses the rule threshold.
func (r Rule) Triggered(value float64) bool {
	switch r.Operator {
	case OperatorGreater:
		return value > r.Threshold
	case OperatorGreaterOrEqual:
		return value >= r.Threshold
	case OperatorLess:
		return value < r.Threshold
	case OperatorLessOrEqual:
		return value <= r.Threshold
	default:
		return false
	}
}

// DefaultRules returns the steam pressure and temperature thresholds.
func DefaultRules() []Rule {
	return []Rule{
		{
			Metric:    MetricSteamPressure,
			Operator:  OperatorGreater,
			Threshold: 8,
			Kind:      KindDanger,
			Message:   "steam pressure too high",
		},
		{
			Metric:    MetricTemperature,
			Operator:  OperatorGreater,
			Threshold: 120,
			Kind:      KindWarning,
			Message:   "temperature approaching maximum",
		},
	}
}

// Evaluator checks a state against a fixed rule set.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator constructs an evaluator. No rules means DefaultRules.
func NewEvaluator(rules ...Rule) (*Evaluator, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Evaluator{rules: copied}, nil
}

// DefaultEvaluator returns an evaluator over DefaultRules.
func DefaultEvaluator() *Evaluator {
	return &Evaluator{rules: DefaultRules()}
}

// Evaluate returns one alert per triggered rule, in rule order.
// Sustained conditions alert again on every call.
func (e *Evaluator) Evaluate(state telemetry.SystemState, at time.Time) []Alert {
	if e == nil {
		return nil
	}
	var result []Alert
	for _, rule := range e.rules {
		value, ok := rule.Metric.Value(state)
		if !ok || !rule.Triggered(value) {
			continue
		}
		result = append(result, Alert{Kind: rule.Kind, Message: rule.Message, CreatedAt: at.UTC()})
	}
	return result
}

// Rules returns a copy of the configured rules.
func (e *Evaluator) Rules() []Rule {
	if e == nil {
		return nil
	}
	copied := make([]Rule, len(e.rules))
	copy(copied, e.rules)
	return copied
}
