package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}

// StatusMapping pairs a sentinel error with an HTTP status.
type StatusMapping struct {
	Err    error
	Status int
}

// StatusFor returns the status of the first mapping err matches, else 500.
func StatusFor(err error, mappings ...StatusMapping) int {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m.Status
		}
	}
	return http.StatusInternalServerError
}

// WriteMappedError writes err with a status chosen by StatusFor. Internal
// failures are reported without driver detail.
func WriteMappedError(w http.ResponseWriter, err error, mappings ...StatusMapping) {
	status := StatusFor(err, mappings...)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	WriteError(w, status, message)
}

// ErrBadBody marks an undecodable request body.
var ErrBadBody = errors.New("invalid request body")

// DecodeJSON decodes a bounded JSON body into dst. Keys dst does not declare
// are rejected so a misspelled field fails instead of being dropped.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", ErrBadBody)
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadBody)
		}
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	return nil
}
