package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// column type placeholders expanded per dialect
var typeNames = map[Dialect]map[string]string{
	Postgres: {
		"{{serial}}": "BIGSERIAL PRIMARY KEY",
		"{{float}}":  "DOUBLE PRECISION",
		"{{bool}}":   "BOOLEAN",
		"{{time}}":   "TIMESTAMPTZ",
		"{{json}}":   "JSONB",
	},
	SQLite: {
		"{{serial}}": "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{float}}":  "REAL",
		"{{bool}}":   "BOOLEAN",
		"{{time}}":   "TIMESTAMP",
		"{{json}}":   "TEXT",
	},
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_state (
	id INTEGER PRIMARY KEY,
	steam_pressure {{float}} NOT NULL DEFAULT 0,
	temperature {{float}} NOT NULL DEFAULT 25,
	water_level {{float}} NOT NULL DEFAULT 75,
	motor_speed {{float}} NOT NULL DEFAULT 0,
	voltage {{float}} NOT NULL DEFAULT 220,
	is_running {{bool}} NOT NULL DEFAULT FALSE,
	target_pressure {{float}} NOT NULL DEFAULT 5,
	target_speed {{float}} NOT NULL DEFAULT 1800,
	active_motors INTEGER NOT NULL DEFAULT 3,
	updated_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS resource_usage (
	id INTEGER PRIMARY KEY,
	energy_consumption {{float}} NOT NULL DEFAULT 0,
	water_usage {{float}} NOT NULL DEFAULT 0,
	soap_usage {{float}} NOT NULL DEFAULT 0,
	wash_duration {{float}} NOT NULL DEFAULT 0,
	wash_sessions INTEGER NOT NULL DEFAULT 0,
	total_revenue {{float}} NOT NULL DEFAULT 0,
	updated_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tariffs (
	id INTEGER PRIMARY KEY,
	electricity {{float}} NOT NULL,
	water {{float}} NOT NULL,
	soap {{float}} NOT NULL,
	service_price {{float}} NOT NULL,
	updated_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS realtime_debits (
	id INTEGER PRIMARY KEY,
	water_debit {{float}} NOT NULL DEFAULT 0,
	soap_debit {{float}} NOT NULL DEFAULT 0,
	energy_debit {{float}} NOT NULL DEFAULT 0,
	updated_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS alerts (
	id {{serial}},
	kind TEXT NOT NULL CHECK (kind IN ('danger', 'warning')),
	message TEXT NOT NULL,
	created_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS members (
	id {{serial}},
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	address TEXT NOT NULL,
	created_at {{time}} NOT NULL,
	updated_at {{time}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
	id {{serial}},
	uuid TEXT NOT NULL UNIQUE,
	task TEXT NOT NULL,
	pic TEXT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'running', 'completed')),
	priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	created_at {{time}} NOT NULL,
	updated_at {{time}} NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_pic ON tasks (pic)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	metadata {{json}} NULL,
	payload_digest TEXT NOT NULL,
	ip TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	created_at {{time}} NOT NULL
)`,
}

// Defaults seeded into the singleton rows.
type Defaults struct {
	Temperature    float64
	WaterLevel     float64
	Voltage        float64
	TargetPressure float64
	TargetSpeed    float64
	ActiveMotors   int
	Electricity    float64
	Water          float64
	Soap           float64
	ServicePrice   float64
}

// Migrate creates every table and inserts the singleton rows (id=1) when
// missing. Running it again changes nothing.
func (db *DB) Migrate(ctx context.Context, defaults Defaults, now time.Time) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, db.expand(stmt)); err != nil {
			return fmt.Errorf("sqldb migrate: %w", err)
		}
	}
	return db.InTx(ctx, func(tx *sql.Tx) error {
		seeds := []struct {
			query string
			args  []any
		}{
			{
				query: `INSERT INTO system_state (id, steam_pressure, temperature, water_level, motor_speed, voltage, is_running, target_pressure, target_speed, active_motors, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`,
				args: []any{0.0, defaults.Temperature, defaults.WaterLevel, 0.0, defaults.Voltage, false,
					defaults.TargetPressure, defaults.TargetSpeed, defaults.ActiveMotors, now},
			},
			{
				query: `INSERT INTO resource_usage (id, updated_at) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
				args:  []any{now},
			},
			{
				query: `INSERT INTO tariffs (id, electricity, water, soap, service_price, updated_at)
VALUES (1, $1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
				args: []any{defaults.Electricity, defaults.Water, defaults.Soap, defaults.ServicePrice, now},
			},
			{
				query: `INSERT INTO realtime_debits (id, updated_at) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
				args:  []any{now},
			},
		}
		for _, seed := range seeds {
			if _, err := tx.ExecContext(ctx, db.Rebind(seed.query), seed.args...); err != nil {
				return fmt.Errorf("sqldb seed: %w", err)
			}
		}
		return nil
	})
}

func (db *DB) expand(stmt string) string {
	for placeholder, name := range typeNames[db.dialect] {
		stmt = strings.ReplaceAll(stmt, placeholder, name)
	}
	return stmt
}
