package alarms

import "errors"

var (
	// ErrInvalidKind indicates an alert kind outside danger/warning.
	ErrInvalidKind = errors.New("alert: invalid kind")
	// ErrEmptyMessage indicates an alert without a message.
	ErrEmptyMessage = errors.New("alert: empty message")
	// ErrInvalidRule indicates a malformed threshold rule.
	ErrInvalidRule = errors.New("alert rule: invalid")
)
