package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "steamwash_"

	resultSuccess = "success"
	resultError   = "error"
	resultDropped = "dropped"

	tickResultAdvanced = "advanced"
	tickResultStopped  = "stopped"
	tickResultError    = "error"
)

var (
	registerOnce sync.Once

	tickTotal   *prometheus.CounterVec
	tickLatency *prometheus.HistogramVec

	systemGauge *prometheus.GaugeVec
	debitGauge  *prometheus.GaugeVec

	alertEventsTotal *prometheus.CounterVec

	commandTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	publishTotal *prometheus.CounterVec
	notifyTotal  *prometheus.CounterVec
)

// Init registers simulator metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		tickTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tick_total",
				Help: "Total simulation ticks by result",
			},
			[]string{"result"},
		)
		tickLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_latency_seconds",
				Help:    "Simulation tick latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		systemGauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "system_state",
				Help: "Last persisted physical reading by field",
			},
			[]string{"field"},
		)
		debitGauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "realtime_debit",
				Help: "Last sampled consumption rate by resource",
			},
			[]string{"resource"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alerts appended by kind",
			},
			[]string{"kind"},
		)

		commandTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_total",
				Help: "Total operator commands by command and result",
			},
			[]string{"command", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_publish_total",
				Help: "Total tick events published by result",
			},
			[]string{"result"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_total",
				Help: "Total alert notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		prometheus.MustRegister(
			tickTotal,
			tickLatency,
			systemGauge,
			debitGauge,
			alertEventsTotal,
			commandTotal,
			exportTotal,
			exportLatency,
			publishTotal,
			notifyTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveTick records tick duration and result.
func ObserveTick(result string, duration time.Duration) {
	if result == "" {
		result = tickResultAdvanced
	}
	if tickTotal != nil {
		tickTotal.WithLabelValues(result).Inc()
	}
	if tickLatency != nil {
		tickLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// SetSystemReading sets the gauge for one physical field.
func SetSystemReading(field string, value float64) {
	if field == "" {
		return
	}
	if systemGauge != nil {
		systemGauge.WithLabelValues(field).Set(value)
	}
}

// SetDebit sets the gauge for one consumption rate.
func SetDebit(resource string, value float64) {
	if resource == "" {
		return
	}
	if debitGauge != nil {
		debitGauge.WithLabelValues(resource).Set(value)
	}
}

// IncAlertEvent increments the alert counter for kind.
func IncAlertEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(kind).Inc()
	}
}

// IncCommand increments the operator command counter.
func IncCommand(command, result string) {
	if command == "" {
		command = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if commandTotal != nil {
		commandTotal.WithLabelValues(command, result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPublish increments the tick event publish counter.
func IncPublish(result string) {
	if result == "" {
		result = resultSuccess
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(result).Inc()
	}
}

// IncNotification increments the notification counter.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultDropped = resultDropped

	TickResultAdvanced = tickResultAdvanced
	TickResultStopped  = tickResultStopped
	TickResultError    = tickResultError
)
