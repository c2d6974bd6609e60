package recon

import "errors"

var (
	// ErrMatchNotFound indicates a missing match.
	ErrMatchNotFound = errors.New("recon: match not found")
	// ErrInvalidTransition indicates accept/reject from a terminal state.
	ErrInvalidTransition = errors.New("recon: invalid match transition")
	// ErrConcurrentModification indicates a version check failed; the match
	// changed under the caller.
	ErrConcurrentModification = errors.New("recon: match modified concurrently")
)
