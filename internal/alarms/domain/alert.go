package alarms

import (
	"strings"
	"time"
)

// Kind is the severity of an alert.
type Kind string

const (
	KindDanger  Kind = "danger"
	KindWarning Kind = "warning"
)

// ParseKind validates a raw kind string.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", ErrInvalidKind
	}
	return kind, nil
}

// Valid returns true when kind is supported.
func (k Kind) Valid() bool {
	switch k {
	case KindDanger, KindWarning:
		return true
	default:
		return false
	}
}

// Alert is an append-only alert log entry. ID reflects insertion order.
type Alert struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks alert invariants.
func (a Alert) Validate() error {
	if !a.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(a.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}
