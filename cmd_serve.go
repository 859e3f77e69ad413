package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	alarmapp "steamwash-cloud/internal/alarms/application"
	alarms "steamwash-cloud/internal/alarms/domain"
	alarmhttp "steamwash-cloud/internal/alarms/interfaces/http"
	alarmnotify "steamwash-cloud/internal/alarms/notify"
	apihttp "steamwash-cloud/internal/api/http"
	"steamwash-cloud/internal/audit"
	"steamwash-cloud/internal/config"
	"steamwash-cloud/internal/members"
	"steamwash-cloud/internal/observability/metrics"
	settlementapp "steamwash-cloud/internal/settlement/application"
	settlementinterfaces "steamwash-cloud/internal/settlement/interfaces"
	"steamwash-cloud/internal/sqldb"
	"steamwash-cloud/internal/tasks"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
	telemetry "steamwash-cloud/internal/telemetry/domain"
	"steamwash-cloud/internal/telemetry/infrastructure/memory"
	"steamwash-cloud/internal/telemetry/infrastructure/sqlstore"
	telemetryhttp "steamwash-cloud/internal/telemetry/interfaces/http"
	telemetrykafka "steamwash-cloud/internal/telemetry/interfaces/kafka"
)

// memoryAuxDSN backs members, tasks and audit when telemetry lives in memory.
const memoryAuxDSN = "file:steamwash-aux?mode=memory&cache=shared"

const shutdownTimeout = 10 * time.Second

var advertisedEndpoints = []string{
	"GET /api/status",
	"POST /api/update-status",
	"POST /api/update-resources",
	"POST /api/update-tariffs",
	"POST /api/add-alert",
	"POST /api/reset",
	"POST /api/commands/{command}",
	"GET /api/alerts/stream",
	"GET /api/financials",
	"GET /api/reports/usage.{xlsx|pdf|csv}",
	"GET|POST /api/members",
	"GET|PUT|DELETE /api/members/{id}",
	"GET|POST /api/todos",
	"GET|PUT|DELETE /api/todos/{id}",
	"GET /api/todos/dashboard/stats",
	"GET /api/todos/pics",
	"GET /api/todos/by-pic/{pic}",
	"GET /api/audit-logs",
	"GET /metrics",
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger())
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// app is a fully wired server.
type app struct {
	handler http.Handler
	engine  *telemetryapp.Engine
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	go a.engine.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("steam wash api listening on %s (store=%s, tick=%s)", cfg.HTTPAddr, cfg.StoreDriver, a.engine.Period())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Printf("shutting down")
	return server.Shutdown(shutdownCtx)
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	db, store, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(ctx, migrationDefaults(), time.Now().UTC()); err != nil {
		return fail(err)
	}
	taskRepo, err := tasks.NewSQLRepository(db)
	if err != nil {
		return fail(err)
	}
	if cfg.SeedSampleTasks {
		seeded, err := taskRepo.SeedSamples(ctx, time.Now().UTC())
		if err != nil {
			return fail(err)
		}
		if seeded > 0 {
			logger.Printf("seeded %d sample tasks", seeded)
		}
	}
	metrics.Init(db.DB, logger)

	broker := alarmhttp.NewBroker()
	notifier, closeNotifier, err := buildNotifier(cfg, broker, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closeNotifier)

	guard := telemetryapp.NewGuard()
	engineOpts := []telemetryapp.EngineOption{
		telemetryapp.WithPeriod(cfg.TickPeriod),
		telemetryapp.WithTickDuration(cfg.TickDuration),
		telemetryapp.WithNotifier(notifier),
		telemetryapp.WithLogger(logger),
	}
	if cfg.RandomSeed != 0 {
		engineOpts = append(engineOpts, telemetryapp.WithSeed(cfg.RandomSeed))
	}
	if len(cfg.AlertRules) > 0 {
		evaluator, err := alarms.NewEvaluator(cfg.AlertRules...)
		if err != nil {
			return fail(err)
		}
		engineOpts = append(engineOpts, telemetryapp.WithEvaluator(evaluator))
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer, err := telemetrykafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, writer.Close)
		publisher, err := telemetrykafka.NewPublisher(writer, cfg.Site)
		if err != nil {
			return fail(err)
		}
		engineOpts = append(engineOpts, telemetryapp.WithPublisher(publisher))
		logger.Printf("publishing ticks to kafka topic %s", cfg.KafkaTopic)
	}
	engine, err := telemetryapp.NewEngine(store, guard, engineOpts...)
	if err != nil {
		return fail(err)
	}
	a.engine = engine

	service, err := telemetryapp.NewService(store, guard,
		telemetryapp.WithAlertNotifier(notifier),
		telemetryapp.WithRecentAlerts(cfg.RecentAlerts),
	)
	if err != nil {
		return fail(err)
	}

	auditRepo := audit.NewRepository(db)
	router := mux.NewRouter()

	telemetryHandler, err := telemetryhttp.NewHandler(service,
		telemetryhttp.WithAudit(auditRepo),
		telemetryhttp.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}
	telemetryHandler.Register(router)

	reports, err := settlementapp.NewReportService(service, settlementapp.SystemClock{}, cfg.Site)
	if err != nil {
		return fail(err)
	}
	reportHandler, err := settlementinterfaces.NewReportHandler(reports, auditRepo, logger)
	if err != nil {
		return fail(err)
	}
	reportHandler.Register(router)

	memberRepo, err := members.NewSQLRepository(db)
	if err != nil {
		return fail(err)
	}
	memberHandler, err := members.NewHandler(memberRepo, auditRepo, logger)
	if err != nil {
		return fail(err)
	}
	memberHandler.Register(router)

	taskHandler, err := tasks.NewHandler(taskRepo, auditRepo, logger)
	if err != nil {
		return fail(err)
	}
	taskHandler.Register(router)

	router.Handle("/api/alerts/stream", alarmhttp.NewStreamHandler(broker)).Methods(http.MethodGet)
	router.Handle("/api/audit-logs", audit.NewListHandler(auditRepo)).Methods(http.MethodGet)
	router.Handle("/api/health", apihttp.NewHealthHandler(advertisedEndpoints)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	a.handler = withMiddleware(router, logger)
	return a, nil
}

func withMiddleware(h http.Handler, logger *log.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", audit.OperatorHeader, "ngrok-skip-browser-warning"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(true))
	return loggingMiddleware(recovery(cors(h)), logger)
}

// openStores returns the SQL database used by members, tasks and audit, and
// the telemetry store. The memory driver pairs an in-memory telemetry store
// with an in-memory SQLite database.
func openStores(ctx context.Context, cfg config.Config) (*sqldb.DB, telemetryapp.Store, error) {
	if !cfg.UsesSQL() {
		db, err := sqldb.Open(ctx, sqldb.SQLite, memoryAuxDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open aux sqlite: %w", err)
		}
		return db, memory.NewStore(), nil
	}
	dialect, err := sqldb.ParseDialect(cfg.StoreDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqldb.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	store, err := sqlstore.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, store, nil
}

func migrationDefaults() sqldb.Defaults {
	state := telemetry.DefaultSystemState()
	tariffs := telemetry.DefaultTariffs()
	return sqldb.Defaults{
		Temperature:    state.Temperature,
		WaterLevel:     state.WaterLevel,
		Voltage:        state.Voltage,
		TargetPressure: state.TargetPressure,
		TargetSpeed:    state.TargetSpeed,
		ActiveMotors:   state.ActiveMotors,
		Electricity:    tariffs.Electricity,
		Water:          tariffs.Water,
		Soap:           tariffs.Soap,
		ServicePrice:   tariffs.ServicePrice,
	}
}

// buildNotifier fans alert events out to the SSE broker and, when a webhook
// is configured, to the webhook channel. The returned func stops webhook
// delivery.
func buildNotifier(cfg config.Config, broker *alarmhttp.Broker, logger *log.Logger) (alarmapp.AlertNotifier, func() error, error) {
	noop := func() error { return nil }
	if cfg.AlertWebhookURL == "" {
		return broker, noop, nil
	}
	kinds := make([]alarms.Kind, 0, len(cfg.AlertNotifyKinds))
	for _, raw := range cfg.AlertNotifyKinds {
		kind, err := alarms.ParseKind(raw)
		if err != nil {
			return nil, noop, err
		}
		kinds = append(kinds, kind)
	}
	channel, err := alarmnotify.NewWebhookChannel(cfg.AlertWebhookURL)
	if err != nil {
		return nil, noop, err
	}
	template, err := alarmnotify.NewTemplate("")
	if err != nil {
		return nil, noop, err
	}
	webhook, err := alarmnotify.NewNotifier(channel, template,
		alarmnotify.WithCooldown(cfg.AlertNotifyCooldown),
		alarmnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
		alarmnotify.WithKinds(kinds...),
		alarmnotify.WithSite(cfg.Site),
		alarmnotify.WithLogger(logger),
	)
	if err != nil {
		return nil, noop, err
	}
	logger.Printf("alert webhook enabled for kinds %v", cfg.AlertNotifyKinds)
	return alarmnotify.NewMultiNotifier(broker, webhook), webhook.Close, nil
}
