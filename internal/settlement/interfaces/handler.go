package interfaces

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apihttp "steamwash-cloud/internal/api/http"
	"steamwash-cloud/internal/audit"
	"steamwash-cloud/internal/observability/metrics"
	"steamwash-cloud/internal/settlement/application"
	settlement "steamwash-cloud/internal/settlement/domain"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

var errorStatuses = []apihttp.StatusMapping{
	{Err: settlement.ErrUnsupportedFormat, Status: http.StatusNotFound},
	{Err: telemetry.ErrNotFound, Status: http.StatusNotFound},
	{Err: telemetry.ErrStorageUnavailable, Status: http.StatusServiceUnavailable},
}

// ReportHandler serves financials and usage report downloads.
type ReportHandler struct {
	service     *application.ReportService
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewReportHandler constructs a handler.
func NewReportHandler(service *application.ReportService, auditLogger audit.Logger, logger *log.Logger) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("settlement handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// Register mounts the routes on r.
func (h *ReportHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/financials", h.handleFinancials).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/usage.{format}", h.handleExport).Methods(http.MethodGet)
}

func (h *ReportHandler) handleFinancials(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Build(r.Context())
	if err != nil {
		h.logger.Printf("financials error: %v", err)
		apihttp.WriteMappedError(w, err, errorStatuses...)
		return
	}
	apihttp.WriteData(w, http.StatusOK, report.Financials, "")
}

func (h *ReportHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw := mux.Vars(r)["format"]
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(raw, result, time.Since(start))
	}()

	format, err := settlement.ParseFormat(raw)
	if err != nil {
		result = metrics.ResultError
		apihttp.WriteMappedError(w, err, errorStatuses...)
		return
	}
	report, err := h.service.Build(r.Context())
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("report export error: format=%s err=%v", format, err)
		apihttp.WriteMappedError(w, err, errorStatuses...)
		return
	}
	data, err := Export(report, format)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("report render error: format=%s err=%v", format, err)
		apihttp.WriteError(w, http.StatusInternalServerError, "export "+string(format)+" error")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)

	if h.auditLogger != nil {
		entry := audit.FromRequest(r, "report.export", "usage_report", report.FileName(format), map[string]any{"format": format})
		if err := h.auditLogger.Log(r.Context(), entry); err != nil {
			h.logger.Printf("audit log error: action=%s err=%v", entry.Action, err)
		}
	}
}
