package statements

import "errors"

var (
	// ErrStatementNotFound indicates a missing statement.
	ErrStatementNotFound = errors.New("statements: statement not found")
	// ErrInvalidTransition indicates the statement is not in a state the
	// requested transition applies to.
	ErrInvalidTransition = errors.New("statements: invalid status transition")
)
