package ledger

import "errors"

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrMissingFxRate indicates a foreign-currency line without a rate.
	ErrMissingFxRate = errors.New("ledger: foreign currency line requires fx rate")
	// ErrNotDraft indicates the entry already left DRAFT.
	ErrNotDraft = errors.New("ledger: entry is not draft")
	// ErrNotPosted indicates void requires a POSTED entry.
	ErrNotPosted = errors.New("ledger: entry is not posted")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountHasLines guards deletion of accounts with journal lines.
	ErrAccountHasLines = errors.New("ledger: account has journal lines")
)
