package apihttp

import (
	"net/http"
	"time"
)

// HealthHandler reports liveness and the advertised endpoints.
type HealthHandler struct {
	endpoints []string
	now       func() time.Time
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(endpoints []string) *HealthHandler {
	copied := make([]string, len(endpoints))
	copy(copied, endpoints)
	return &HealthHandler{endpoints: copied, now: time.Now}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "steam wash API is running",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"endpoints": h.endpoints,
	})
}
