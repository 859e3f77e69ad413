package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apihttp "steamwash-cloud/internal/api/http"
)

// OperatorHeader carries the operator name set by dashboards.
const OperatorHeader = "X-Operator"

const anonymousActor = "anonymous"

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// FromRequest builds an entry for a command received over HTTP.
func FromRequest(r *http.Request, action, resourceType, resourceID string, metadata any) Entry {
	entry := Entry{
		ID:           NewID(),
		Actor:        anonymousActor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
	if r != nil {
		if actor := strings.TrimSpace(r.Header.Get(OperatorHeader)); actor != "" {
			entry.Actor = actor
		}
		entry.IP = ClientIP(r)
		entry.UserAgent = r.UserAgent()
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			entry.Metadata = data
			entry.PayloadDigest = DigestJSON(data)
		}
	}
	return entry
}

// Lister reads recent audit entries.
type Lister interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

// NewListHandler serves GET /api/audit-logs?limit=N.
func NewListHandler(lister Lister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := lister.List(r.Context(), limit)
		if err != nil {
			apihttp.WriteError(w, http.StatusServiceUnavailable, "audit log unavailable")
			return
		}
		apihttp.WriteData(w, http.StatusOK, entries, "")
	})
}
