package checks

import "errors"

var (
	// ErrCheckNotFound indicates a missing check.
	ErrCheckNotFound = errors.New("checks: check not found")
	// ErrAlreadyResolved indicates a second resolution of the same check.
	ErrAlreadyResolved = errors.New("checks: check already resolved")
	// ErrUnknownDecision indicates a decision outside approve/reject.
	ErrUnknownDecision = errors.New("checks: unknown decision")
)
