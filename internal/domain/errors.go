// Package domain defines the core entities, ports, and domain-specific
// errors of the dialer core.
package domain

import "errors"

// Error taxonomy (sentinels). Wrap with fmt.Errorf("op=...: %w", err) at the
// call site so errors.Is/errors.As keep working through every layer.
var (
	// ErrInvalidArgument covers malformed selectors, non-positive targets,
	// non-positive weights, unknown scheme ids, non-positive TTLs, and
	// missing projects.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated
	// (duplicate cell selector, duplicate scheme version, duplicate sample
	// pool entry). Callers may retry or upsert.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyReserved is returned by ReserveNext when the interviewer
	// already holds a live reservation (invariant I13).
	ErrAlreadyReserved = errors.New("interviewer already has an active reservation")
	// ErrNoSchemeAvailable is returned when no scheme can be selected for a
	// reservation request.
	ErrNoSchemeAvailable = errors.New("no scheme available")
	// ErrNoCapacity is returned when every cell considered is at capacity.
	ErrNoCapacity = errors.New("no capacity")
	// ErrNoSample is returned when capacity exists but no sample could be
	// claimed from any ranked cell.
	ErrNoSample = errors.New("no sample available")
	// ErrBankUnavailable is returned when the external bank schema cannot
	// be read.
	ErrBankUnavailable = errors.New("bank gateway unavailable")
	// ErrRateLimited is returned when a caller exceeds its configured
	// request budget for the reservation endpoint.
	ErrRateLimited = errors.New("rate limited")
	// ErrInternal covers anything else.
	ErrInternal = errors.New("internal error")
)
