package telemetry

import "errors"

var (
	// ErrStorageUnavailable indicates the telemetry store could not be reached.
	ErrStorageUnavailable = errors.New("telemetry: storage unavailable")
	// ErrInvalidArgument indicates a malformed command payload.
	ErrInvalidArgument = errors.New("telemetry: invalid argument")
	// ErrNotFound indicates a missing singleton row.
	ErrNotFound = errors.New("telemetry: not found")
)
