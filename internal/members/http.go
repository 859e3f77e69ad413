package members

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
	{Err: ErrInvalidMember, Status: http.StatusBadRequest},
	{Err: ErrNotFound, Status: http.StatusNotFound},
}

// Handler serves /api/members.
type Handler struct {
	repo        Repository
	auditLogger audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(repo Repository, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("member handler: nil repository")
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
	r.HandleFunc("/api/members", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/members", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/members/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/members/{id}", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/api/members/{id}", h.handleDelete).Methods(http.MethodDelete)
}

type memberRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
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
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	member, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	apihttp.WriteData(w, http.StatusOK, member, "")
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create", err)
		return
	}
	member, err := New(req.Name, req.Address, h.now())
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	member, err = h.repo.Create(r.Context(), member)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	h.record(r, "member.create", member.ID, req)
	apihttp.WriteData(w, http.StatusCreated, member, "Member created successfully")
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, "update", err)
		return
	}
	member, err := h.repo.Update(r.Context(), id, req.Name, req.Address, h.now())
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	h.record(r, "member.update", id, req)
	apihttp.WriteData(w, http.StatusOK, member, "Member updated successfully")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete", err)
		return
	}
	h.record(r, "member.delete", id, nil)
	apihttp.WriteData(w, http.StatusOK, nil, "Member deleted successfully")
}

// memberID parses the path id. Unparseable ids match no member.
func memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		apihttp.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apihttp.StatusFor(err, errorStatuses...) >= http.StatusInternalServerError {
		h.logger.Printf("member %s error: %v", op, err)
	}
	apihttp.WriteMappedError(w, err, errorStatuses...)
}

func (h *Handler) record(r *http.Request, action string, id int64, payload any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action, "member", strconv.FormatInt(id, 10), payload)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit log error: action=%s err=%v", action, err)
	}
}
