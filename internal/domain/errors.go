package domain

import "errors"

// Sentinel errors shared across services and delivery. Constraint, quota,
// and capacity failures are domain results the caller reacts to; only
// unexpected storage errors propagate unwrapped.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrOptionFull          = errors.New("option is full")
	ErrQuotaExceeded       = errors.New("per-user booking limit reached")
	ErrCreditExceeded      = errors.New("credit budget exceeded")
	ErrCombinationConflict = errors.New("option combination conflict")
	ErrConcurrencyConflict = errors.New("concurrent allocation conflict")
)
