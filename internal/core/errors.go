// Package core holds the types and error kinds shared by every other
// package in the index: field identity, operator tags, opaque references,
// and the closed set of error kinds described by the design's error
// handling policy.
package core

import "errors"

// Error kinds. Callers distinguish them with errors.Is; functions in this
// module that fail for one of these reasons wrap the matching kind with
// contextual detail via fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidInput covers unknown fields, unknown operators, and
	// malformed queries. Fail fast, no retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQueryTooShort is returned for a contains query shorter than the
	// configured gram width.
	ErrQueryTooShort = errors.New("query too short")

	// ErrStoreTransient covers connection drops, timeouts, and deadlocks
	// in a backend. Callers may retry with backoff.
	ErrStoreTransient = errors.New("store transient failure")

	// ErrStorePermanent covers missing schema or denied auth. Fatal for
	// the operation; must be surfaced to an operator.
	ErrStorePermanent = errors.New("store permanent failure")

	// ErrSecretMissing means the keyed-hash secret was not loaded. Fatal
	// at startup; service must refuse to run.
	ErrSecretMissing = errors.New("keyed hash secret missing")

	// ErrPostingOverflow means a posting list exceeded the backend's
	// capacity. The add is failed; the key should be recorded for
	// offline remediation.
	ErrPostingOverflow = errors.New("posting list overflow")

	// ErrIntegrity means a stored key or posting list failed to decode.
	// Fatal for that entry only; callers should isolate and continue.
	ErrIntegrity = errors.New("index integrity failure")

	// ErrDeadlineExceeded means a cooperative cancellation fired mid
	// operation.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrUnknownField is used when a field alias or full name does not
	// resolve. It is a separate sentinel that does not wrap
	// ErrInvalidInput, so callers check for it alongside ErrInvalidInput.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownOperator is used when an operator tag does not resolve. It
	// is a separate sentinel that does not wrap ErrInvalidInput, so callers
	// check for it alongside ErrInvalidInput.
	ErrUnknownOperator = errors.New("unknown operator")
)
