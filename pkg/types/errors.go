package types

import "errors"

// Error kinds shared across components. Callers branch with errors.Is.
var (
	// ErrBackendUnavailable wraps transient vector-index or API failures.
	// These surface to the caller of the operation that triggered them
	// and are never retried by the core.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedInput marks per-item input problems (unreadable file,
	// undecodable content). The pipeline recovers from these locally.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConfig marks configuration problems detected before work begins.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotFound is the sentinel for lookups that matched nothing.
	ErrNotFound = errors.New("not found")

	// Result validation errors.
	ErrInvalidResultID = errors.New("result ID cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
