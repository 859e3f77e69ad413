package tasks

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apihttp "steamwash-cloud/internal/api/http"
	"steamwash-cloud/internal/audit"
)

var errorStatuses = []apihttp.StatusMapping{
	{Err: apihttp.ErrBadBody, Status: http.StatusBadRequest},
	{Err: ErrInvalidTask, Status: http.StatusBadRequest},
	{Err: ErrEmptyPatch, Status: http.StatusBadRequest},
	{Err: ErrNotFound, Status: http.StatusNotFound},
}

// Handler serves /api/todos.
type Handler struct {
	repo        Repository
	auditLogger audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(repo Repository, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("task handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/todos/dashboard/stats", h.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/todos/pics", h.handlePICs).Methods(http.MethodGet)
	r.HandleFunc("/api/todos/by-pic/{pic}", h.handleByPIC).Methods(http.MethodGet)
	r.HandleFunc("/api/todos", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/todos", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/todos/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/todos/{id}", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/api/todos/{id}", h.handleDelete).Methods(http.MethodDelete)
}

type createRequest struct {
	Task     string   `json:"task"`
	Priority Priority `json:"priority"`
	PIC      string   `json:"pic"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, list, "")
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, task, "")
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create", err)
		return
	}
	task, err := New(req.Task, req.Priority, req.PIC, h.now())
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	task, err = h.repo.Create(r.Context(), task)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	h.record(r, "todo.create", task.ID, req)
	apihttp.WriteData(w, http.StatusCreated, task, "Todo created successfully")
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var patch Patch
	if err := apihttp.DecodeJSON(r, &patch); err != nil {
		h.fail(w, "update", err)
		return
	}
	task, err := h.repo.Update(r.Context(), id, patch, h.now())
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	h.record(r, "todo.update", id, task)
	apihttp.WriteData(w, http.StatusOK, task, "Todo updated successfully")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete", err)
		return
	}
	h.record(r, "todo.delete", id, nil)
	apihttp.WriteData(w, http.StatusOK, nil, "Todo deleted successfully")
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, stats, "")
}

func (h *Handler) handleByPIC(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ByPIC(r.Context(), mux.Vars(r)["pic"])
	if err != nil {
		h.fail(w, "by-pic", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, list, "")
}

func (h *Handler) handlePICs(w http.ResponseWriter, r *http.Request) {
	pics, err := h.repo.PICs(r.Context())
	if err != nil {
		h.fail(w, "pics", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, pics, "")
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		apihttp.WriteError(w, http.StatusNotFound, "Todo not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apihttp.StatusFor(err, errorStatuses...)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Printf("todo %s error: %v", op, err)
	case errors.Is(err, ErrNotFound):
		apihttp.WriteError(w, status, "Todo not found")
		return
	case errors.Is(err, ErrEmptyPatch):
		apihttp.WriteError(w, status, "No data to update")
		return
	}
	apihttp.WriteMappedError(w, err, errorStatuses...)
}

func (h *Handler) record(r *http.Request, action string, id int64, payload any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action, "todo", strconv.FormatInt(id, 10), payload)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit log error: action=%s err=%v", action, err)
	}
}
