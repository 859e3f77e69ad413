package http

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"

	"github.com/gorilla/mux"

	apihttp "steamwash-cloud/internal/api/http"
	"steamwash-cloud/internal/audit"
	"steamwash-cloud/internal/telemetry/application"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

var errorStatuses = []apihttp.StatusMapping{
	{Err: apihttp.ErrBadBody, Status: http.StatusBadRequest},
	{Err: telemetry.ErrInvalidArgument, Status: http.StatusBadRequest},
	{Err: telemetry.ErrNotFound, Status: http.StatusNotFound},
	{Err: telemetry.ErrStorageUnavailable, Status: http.StatusServiceUnavailable},
}

// Handler serves the simulator read surface and operator commands.
type Handler struct {
	service *application.Service
	audit   audit.Logger
	logger  *log.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithAudit records successful commands.
func WithAudit(logger audit.Logger) Option {
	return func(h *Handler) {
		h.audit = logger
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("telemetry handler: nil service")
	}
	h := &Handler{service: service, logger: log.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/update-status", h.handleUpdateStatus).Methods(http.MethodPost)
	r.HandleFunc("/api/update-resources", h.handleUpdateResources).Methods(http.MethodPost)
	r.HandleFunc("/api/update-tariffs", h.handleUpdateTariffs).Methods(http.MethodPost)
	r.HandleFunc("/api/add-alert", h.handleAddAlert).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", h.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/commands/{command}", h.handleCommand).Methods(http.MethodPost)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context())
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, snapshot, "")
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var patch telemetry.SystemStatePatch
	if err := apihttp.DecodeJSON(r, &patch); err != nil {
		h.fail(w, application.CommandUpdateStatus, err)
		return
	}
	state, err := h.service.UpdateSystemState(r.Context(), patch)
	if err != nil {
		h.fail(w, application.CommandUpdateStatus, err)
		return
	}
	h.record(r, application.CommandUpdateStatus, "system_state", patch)
	apihttp.WriteData(w, http.StatusOK, state, "Status updated successfully")
}

func (h *Handler) handleUpdateResources(w http.ResponseWriter, r *http.Request) {
	var patch telemetry.ResourceUsagePatch
	if err := apihttp.DecodeJSON(r, &patch); err != nil {
		h.fail(w, application.CommandUpdateResources, err)
		return
	}
	usage, err := h.service.UpdateResourceUsage(r.Context(), patch)
	if err != nil {
		h.fail(w, application.CommandUpdateResources, err)
		return
	}
	h.record(r, application.CommandUpdateResources, "resource_usage", patch)
	apihttp.WriteData(w, http.StatusOK, usage, "Resources updated successfully")
}

func (h *Handler) handleUpdateTariffs(w http.ResponseWriter, r *http.Request) {
	var patch telemetry.TariffsPatch
	if err := apihttp.DecodeJSON(r, &patch); err != nil {
		h.fail(w, application.CommandUpdateTariffs, err)
		return
	}
	tariffs, err := h.service.UpdateTariffs(r.Context(), patch)
	if err != nil {
		h.fail(w, application.CommandUpdateTariffs, err)
		return
	}
	h.record(r, application.CommandUpdateTariffs, "tariffs", patch)
	apihttp.WriteData(w, http.StatusOK, tariffs, "Tariffs updated successfully")
}

type addAlertRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *Handler) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req addAlertRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, application.CommandAddAlert, err)
		return
	}
	alert, err := h.service.AddAlert(r.Context(), req.Type, req.Message)
	if err != nil {
		h.fail(w, application.CommandAddAlert, err)
		return
	}
	h.record(r, application.CommandAddAlert, "alert", req)
	apihttp.WriteData(w, http.StatusOK, alert, "Alert added successfully")
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.fail(w, application.CommandReset, err)
		return
	}
	h.record(r, application.CommandReset, "resource_usage", nil)
	apihttp.WriteData(w, http.StatusOK, nil, "System reset successfully")
}

type commandRequest struct {
	Value *float64 `json:"value"`
}

// command path segment -> operation
var commands = map[string]struct {
	name       string
	needsValue bool
	run        func(ctx context.Context, s *application.Service, value float64) (any, error)
}{
	"start": {name: application.CommandStart, run: func(ctx context.Context, s *application.Service, _ float64) (any, error) {
		return s.Start(ctx)
	}},
	"stop": {name: application.CommandStop, run: func(ctx context.Context, s *application.Service, _ float64) (any, error) {
		return s.Stop(ctx)
	}},
	"emergency-stop": {name: application.CommandEmergencyStop, run: func(ctx context.Context, s *application.Service, _ float64) (any, error) {
		return s.EmergencyStop(ctx)
	}},
	"target-pressure": {name: application.CommandSetTargetPressure, needsValue: true, run: func(ctx context.Context, s *application.Service, v float64) (any, error) {
		return s.SetTargetPressure(ctx, v)
	}},
	"target-speed": {name: application.CommandSetTargetSpeed, needsValue: true, run: func(ctx context.Context, s *application.Service, v float64) (any, error) {
		return s.SetTargetSpeed(ctx, v)
	}},
	"active-motors": {name: application.CommandSetActiveMotors, needsValue: true, run: func(ctx context.Context, s *application.Service, v float64) (any, error) {
		if v != math.Trunc(v) {
			return nil, errors.Join(telemetry.ErrInvalidArgument, errors.New("active motors must be a whole number"))
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			return nil, errors.Join(telemetry.ErrInvalidArgument, errors.New("active motors out of range"))
		}
		return s.SetActiveMotors(ctx, int(v))
	}},
	"service-price": {name: application.CommandSetServicePrice, needsValue: true, run: func(ctx context.Context, s *application.Service, v float64) (any, error) {
		return s.SetServicePrice(ctx, v)
	}},
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, ok := commands[mux.Vars(r)["command"]]
	if !ok {
		apihttp.WriteError(w, http.StatusNotFound, "unknown command")
		return
	}
	var value float64
	if cmd.needsValue {
		var req commandRequest
		if err := apihttp.DecodeJSON(r, &req); err != nil {
			h.fail(w, cmd.name, err)
			return
		}
		if req.Value == nil {
			apihttp.WriteError(w, http.StatusBadRequest, "value is required")
			return
		}
		value = *req.Value
	}
	result, err := cmd.run(r.Context(), h.service, value)
	if err != nil {
		h.fail(w, cmd.name, err)
		return
	}
	var meta any
	if cmd.needsValue {
		meta = map[string]float64{"value": value}
	}
	h.record(r, cmd.name, "system_state", meta)
	apihttp.WriteData(w, http.StatusOK, result, "Command applied")
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apihttp.StatusFor(err, errorStatuses...)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("telemetry %s error: %v", op, err)
	}
	apihttp.WriteMappedError(w, err, errorStatuses...)
}

func (h *Handler) record(r *http.Request, action, resourceType string, payload any) {
	if h.audit == nil {
		return
	}
	entry := audit.FromRequest(r, "telemetry."+action, resourceType, "1", payload)
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit log error: action=%s err=%v", entry.Action, err)
	}
}

