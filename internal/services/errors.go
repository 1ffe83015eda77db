package services

import "errors"

// Error taxonomy surfaced to the API layer. Handlers map these to HTTP
// status codes; background loops only log and continue.
var (
	// ErrInvalidRequest covers malformed addressing input, unknown status
	// values and empty update patches.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound covers unknown workflows, devices and divisions, and
	// workflows with zero delivery records.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when mutating a workflow that has already
	// been published.
	ErrConflict = errors.New("conflict")
)
