package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/sqldb"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

const singletonID = 1

// Store is the SQL implementation of the telemetry store.
type Store struct {
	db *sqldb.DB
}

// NewStore constructs a Store.
func NewStore(db *sqldb.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("telemetry sqlstore: nil db")
	}
	return &Store{db: db}, nil
}

// SystemState loads the singleton state row.
func (s *Store) SystemState(ctx context.Context) (telemetry.SystemState, error) {
	return s.readState(ctx, s.db.DB)
}

// ResourceUsage loads the usage row.
func (s *Store) ResourceUsage(ctx context.Context) (telemetry.ResourceUsage, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT energy_consumption, water_usage, soap_usage, wash_duration, wash_sessions, total_revenue, updated_at
FROM resource_usage
WHERE id = $1`), singletonID)
	var usage telemetry.ResourceUsage
	if err := row.Scan(
		&usage.EnergyConsumption,
		&usage.WaterUsage,
		&usage.SoapUsage,
		&usage.WashDuration,
		&usage.WashSessions,
		&usage.TotalRevenue,
		&usage.UpdatedAt,
	); err != nil {
		return telemetry.ResourceUsage{}, wrap("resource usage", err)
	}
	usage.UpdatedAt = usage.UpdatedAt.UTC()
	return usage, nil
}

// Tariffs loads the tariff row.
func (s *Store) Tariffs(ctx context.Context) (telemetry.Tariffs, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT electricity, water, soap, service_price
FROM tariffs
WHERE id = $1`), singletonID)
	var t telemetry.Tariffs
	if err := row.Scan(&t.Electricity, &t.Water, &t.Soap, &t.ServicePrice); err != nil {
		return telemetry.Tariffs{}, wrap("tariffs", err)
	}
	return t, nil
}

// RealtimeDebits loads the debit row.
func (s *Store) RealtimeDebits(ctx context.Context) (telemetry.RealtimeDebits, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT water_debit, soap_debit, energy_debit, updated_at
FROM realtime_debits
WHERE id = $1`), singletonID)
	var d telemetry.RealtimeDebits
	if err := row.Scan(&d.WaterDebit, &d.SoapDebit, &d.EnergyDebit, &d.UpdatedAt); err != nil {
		return telemetry.RealtimeDebits{}, wrap("realtime debits", err)
	}
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

// RecentAlerts returns up to limit alerts, newest first. limit <= 0 returns all.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]alarms.Alert, error) {
	query := `
SELECT id, kind, message, created_at
FROM alerts
ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += `
LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, wrap("recent alerts", err)
	}
	defer rows.Close()

	result := make([]alarms.Alert, 0)
	for rows.Next() {
		var alert alarms.Alert
		var kind string
		if err := rows.Scan(&alert.ID, &kind, &alert.Message, &alert.CreatedAt); err != nil {
			return nil, wrap("recent alerts", err)
		}
		alert.Kind = alarms.Kind(kind)
		alert.CreatedAt = alert.CreatedAt.UTC()
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("recent alerts", err)
	}
	return result, nil
}

// ApplyTick writes physics, debits, the usage increment and raised alerts in
// one transaction. Setpoints and is_running are not part of the statement.
func (s *Store) ApplyTick(ctx context.Context, tick telemetry.Tick, raised []alarms.Alert) ([]alarms.Alert, error) {
	stored := make([]alarms.Alert, 0, len(raised))
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		p := tick.Physics
		if err := execOne(ctx, tx, s.db.Rebind(`
UPDATE system_state
SET steam_pressure = $1, temperature = $2, water_level = $3, motor_speed = $4, voltage = $5, updated_at = $6
WHERE id = $7`), p.SteamPressure, p.Temperature, p.WaterLevel, p.MotorSpeed, p.Voltage, tick.At, singletonID); err != nil {
			return err
		}

		d := tick.Debits
		if err := execOne(ctx, tx, s.db.Rebind(`
UPDATE realtime_debits
SET water_debit = $1, soap_debit = $2, energy_debit = $3, updated_at = $4
WHERE id = $5`), d.WaterDebit, d.SoapDebit, d.EnergyDebit, tick.At, singletonID); err != nil {
			return err
		}

		inc := tick.Increment
		if err := execOne(ctx, tx, s.db.Rebind(`
UPDATE resource_usage
SET energy_consumption = energy_consumption + $1,
	water_usage = water_usage + $2,
	soap_usage = soap_usage + $3,
	wash_duration = wash_duration + $4,
	updated_at = $5
WHERE id = $6`), inc.EnergyKWh, inc.WaterLiters, inc.SoapML, inc.DurationMin, tick.At, singletonID); err != nil {
			return err
		}

		for _, alert := range raised {
			saved, err := s.insertAlert(ctx, tx, alert)
			if err != nil {
				return err
			}
			stored = append(stored, saved)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("apply tick", err)
	}
	return stored, nil
}

// UpdateSystemState writes the set fields of patch and returns the merged row.
func (s *Store) UpdateSystemState(ctx context.Context, patch telemetry.SystemStatePatch, at time.Time) (telemetry.SystemState, error) {
	var state telemetry.SystemState
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		set := newSetList()
		set.addFloat("steam_pressure", patch.SteamPressure)
		set.addFloat("temperature", patch.Temperature)
		set.addFloat("water_level", patch.WaterLevel)
		set.addFloat("motor_speed", patch.MotorSpeed)
		set.addFloat("voltage", patch.Voltage)
		if patch.IsRunning != nil {
			set.add("is_running", *patch.IsRunning)
		}
		set.addFloat("target_pressure", patch.TargetPressure)
		set.addFloat("target_speed", patch.TargetSpeed)
		if patch.ActiveMotors != nil {
			set.add("active_motors", *patch.ActiveMotors)
		}
		set.add("updated_at", at)
		if err := set.exec(ctx, tx, s.db, "system_state"); err != nil {
			return err
		}
		var err error
		state, err = s.readState(ctx, tx)
		return err
	})
	if err != nil {
		return telemetry.SystemState{}, wrap("update system state", err)
	}
	return state, nil
}

// UpdateResources writes usage and tariff fields in one transaction.
func (s *Store) UpdateResources(ctx context.Context, patch telemetry.ResourceUsagePatch, at time.Time) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if !patch.UsageEmpty() {
			set := newSetList()
			set.addFloat("energy_consumption", patch.EnergyConsumption)
			set.addFloat("water_usage", patch.WaterUsage)
			set.addFloat("soap_usage", patch.SoapUsage)
			set.addFloat("wash_duration", patch.WashDuration)
			if patch.WashSessions != nil {
				set.add("wash_sessions", *patch.WashSessions)
			}
			set.addFloat("total_revenue", patch.TotalRevenue)
			set.add("updated_at", at)
			if err := set.exec(ctx, tx, s.db, "resource_usage"); err != nil {
				return err
			}
		}
		if !patch.TariffsPatch.Empty() {
			set := newSetList()
			set.addFloat("electricity", patch.Electricity)
			set.addFloat("water", patch.Water)
			set.addFloat("soap", patch.Soap)
			set.addFloat("service_price", patch.ServicePrice)
			set.add("updated_at", at)
			if err := set.exec(ctx, tx, s.db, "tariffs"); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("update resources", err)
}

// AppendAlert inserts an alert and returns it with its id.
func (s *Store) AppendAlert(ctx context.Context, alert alarms.Alert) (alarms.Alert, error) {
	var saved alarms.Alert
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = s.insertAlert(ctx, tx, alert)
		return err
	})
	if err != nil {
		return alarms.Alert{}, wrap("append alert", err)
	}
	return saved, nil
}

// Reset zeroes every usage counter and deletes all alerts in one transaction.
func (s *Store) Reset(ctx context.Context, at time.Time) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := execOne(ctx, tx, s.db.Rebind(`
UPDATE resource_usage
SET energy_consumption = 0, water_usage = 0, soap_usage = 0, wash_duration = 0,
	wash_sessions = 0, total_revenue = 0, updated_at = $1
WHERE id = $2`), at, singletonID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM alerts`)
		return err
	})
	return wrap("reset", err)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) readState(ctx context.Context, q queryer) (telemetry.SystemState, error) {
	row := q.QueryRowContext(ctx, s.db.Rebind(`
SELECT steam_pressure, temperature, water_level, motor_speed, voltage, is_running,
	target_pressure, target_speed, active_motors, updated_at
FROM system_state
WHERE id = $1`), singletonID)
	var state telemetry.SystemState
	if err := row.Scan(
		&state.SteamPressure,
		&state.Temperature,
		&state.WaterLevel,
		&state.MotorSpeed,
		&state.Voltage,
		&state.IsRunning,
		&state.TargetPressure,
		&state.TargetSpeed,
		&state.ActiveMotors,
		&state.UpdatedAt,
	); err != nil {
		return telemetry.SystemState{}, wrap("system state", err)
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	return state, nil
}

func (s *Store) insertAlert(ctx context.Context, tx *sql.Tx, alert alarms.Alert) (alarms.Alert, error) {
	if err := alert.Validate(); err != nil {
		return alarms.Alert{}, fmt.Errorf("%w: %v", telemetry.ErrInvalidArgument, err)
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	row := tx.QueryRowContext(ctx, s.db.Rebind(`
INSERT INTO alerts (kind, message, created_at)
VALUES ($1, $2, $3)
RETURNING id`), string(alert.Kind), alert.Message, alert.CreatedAt)
	if err := row.Scan(&alert.ID); err != nil {
		return alarms.Alert{}, err
	}
	return alert, nil
}

func execOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// setList builds the SET clause of a singleton row update.
type setList struct {
	columns []string
	args    []any
}

func newSetList() *setList {
	return &setList{}
}

func (l *setList) add(column string, value any) {
	l.args = append(l.args, value)
	l.columns = append(l.columns, column+" = $"+strconv.Itoa(len(l.args)))
}

func (l *setList) addFloat(column string, value *float64) {
	if value != nil {
		l.add(column, *value)
	}
}

func (l *setList) exec(ctx context.Context, tx *sql.Tx, db *sqldb.DB, table string) error {
	args := append(l.args, singletonID)
	query := "UPDATE " + table + " SET " + strings.Join(l.columns, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))
	return execOne(ctx, tx, db.Rebind(query), args...)
}

// wrap maps driver errors onto the telemetry error taxonomy.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, telemetry.ErrInvalidArgument),
		errors.Is(err, telemetry.ErrNotFound),
		errors.Is(err, telemetry.ErrStorageUnavailable):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s row missing", telemetry.ErrNotFound, op)
	default:
		return fmt.Errorf("%w: %s: %v", telemetry.ErrStorageUnavailable, op, err)
	}
}
