// Package progression implements the quest-objective progression engine:
// dependency-gated availability, evidence submission, GM review, quest
// completion, and deadline extensions.
package progression

import "errors"

// Failure kinds returned by every engine operation. Callers test with
// errors.Is; the HTTP layer maps them to status codes. InvalidState from a
// concurrent race is expected and means "someone already did this" — the
// right response is to re-fetch, not retry.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrObjectiveLocked = errors.New("objective locked")
	ErrValidation      = errors.New("validation failed")
	ErrDeadlinePassed  = errors.New("deadline passed")
)
