package interfaces

import "errors"

var (
	// ErrNotFound indicates a job, task, or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable indicates the selected storage backend is unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrLocalOnly indicates an operation that only the local queue backend
	// supports (the cloud queue performs its own scheduling and delivery).
	ErrLocalOnly = errors.New("operation is only supported by the local queue backend")
)
