// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	alarms "steamwash-cloud/internal/alarms/domain"
	"steamwash-cloud/internal/sqldb"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = "STEAMWASH_CONFIG"

// DriverMemory keeps telemetry in process memory.
const DriverMemory = "memory"

// Config holds every server setting.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`
	Site        string `yaml:"site"`

	TickPeriod   time.Duration `yaml:"tick_period"`
	TickDuration time.Duration `yaml:"tick_dt"`
	RandomSeed   uint64        `yaml:"random_seed"`
	RecentAlerts int           `yaml:"recent_alerts"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	AlertWebhookURL     string        `yaml:"alert_webhook_url"`
	AlertNotifyCooldown time.Duration `yaml:"alert_notify_cooldown"`
	AlertNotifyTimeout  time.Duration `yaml:"alert_notify_timeout"`
	AlertNotifyKinds    []string      `yaml:"alert_notify_kinds"`
	// AlertRules replaces the default thresholds when non-empty.
	AlertRules []alarms.Rule `yaml:"alert_rules"`

	SeedSampleTasks bool `yaml:"seed_sample_tasks"`
}

// Default returns the reference settings.
func Default() Config {
	return Config{
		HTTPAddr:            ":3000",
		StoreDriver:         string(sqldb.SQLite),
		DatabaseURL:         "file:steamwash.db?_pragma=busy_timeout(5000)",
		Site:                "steamwash",
		TickPeriod:          telemetry.DefaultTickDuration,
		RecentAlerts:        10,
		KafkaTopic:          "steamwash.telemetry",
		AlertNotifyCooldown: 5 * time.Minute,
		AlertNotifyTimeout:  5 * time.Second,
		AlertNotifyKinds:    []string{"danger"},
	}
}

// Load builds the config. An empty path falls back to STEAMWASH_CONFIG; when
// neither is set no file is read.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.TickDuration <= 0 {
		cfg.TickDuration = cfg.TickPeriod
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.StoreDriver != DriverMemory {
		if _, err := sqldb.ParseDialect(c.StoreDriver); err != nil {
			errs = append(errs, fmt.Errorf("store_driver: %w", err))
		} else if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("database_url is required for sql stores"))
		}
	}
	if c.TickPeriod <= 0 {
		errs = append(errs, errors.New("tick_period must be positive"))
	}
	if c.TickDuration < 0 {
		errs = append(errs, errors.New("tick_dt must not be negative"))
	}
	if c.RecentAlerts <= 0 {
		errs = append(errs, errors.New("recent_alerts must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("kafka_topic is required with kafka_brokers"))
	}
	if c.AlertNotifyCooldown < 0 || c.AlertNotifyTimeout < 0 {
		errs = append(errs, errors.New("alert notify durations must not be negative"))
	}
	for _, kind := range c.AlertNotifyKinds {
		if _, err := alarms.ParseKind(kind); err != nil {
			errs = append(errs, fmt.Errorf("alert_notify_kinds: %q: %w", kind, err))
		}
	}
	for i, rule := range c.AlertRules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("alert_rules[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesSQL reports whether telemetry lives in a SQL database.
func (c Config) UsesSQL() bool {
	return c.StoreDriver != DriverMemory
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.Site = getenvDefault("SITE_NAME", cfg.Site)
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.AlertWebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.AlertWebhookURL)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}
	if kinds := os.Getenv("ALERT_NOTIFY_KINDS"); kinds != "" {
		cfg.AlertNotifyKinds = splitList(kinds)
	}

	var errs []error
	var err error
	if cfg.TickPeriod, err = getenvDuration("TICK_PERIOD", cfg.TickPeriod); err != nil {
		errs = append(errs, err)
	}
	if cfg.TickDuration, err = getenvDuration("TICK_DT", cfg.TickDuration); err != nil {
		errs = append(errs, err)
	}
	if cfg.AlertNotifyCooldown, err = getenvDuration("ALERT_NOTIFY_COOLDOWN", cfg.AlertNotifyCooldown); err != nil {
		errs = append(errs, err)
	}
	if cfg.AlertNotifyTimeout, err = getenvDuration("ALERT_NOTIFY_TIMEOUT", cfg.AlertNotifyTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.RecentAlerts, err = getenvInt("RECENT_ALERTS", cfg.RecentAlerts); err != nil {
		errs = append(errs, err)
	}
	if value := os.Getenv("RANDOM_SEED"); value != "" {
		seed, perr := strconv.ParseUint(value, 10, 64)
		if perr != nil {
			errs = append(errs, fmt.Errorf("RANDOM_SEED: %w", perr))
		} else {
			cfg.RandomSeed = seed
		}
	}
	if value := os.Getenv("SEED_SAMPLE_TASKS"); value != "" {
		seed, perr := strconv.ParseBool(value)
		if perr != nil {
			errs = append(errs, fmt.Errorf("SEED_SAMPLE_TASKS: %w", perr))
		} else {
			cfg.SeedSampleTasks = seed
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
