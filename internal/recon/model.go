package recon

import "time"

// MatchStatus enumerates the reconciliation match lifecycle.
type MatchStatus string

const (
	MatchStatusAutoAccepted  MatchStatus = "AUTO_ACCEPTED"
	MatchStatusPendingReview MatchStatus = "PENDING_REVIEW"
	MatchStatusAccepted      MatchStatus = "ACCEPTED"
	MatchStatusRejected      MatchStatus = "REJECTED"
	MatchStatusSuperseded    MatchStatus = "SUPERSEDED"
)

// live reports whether a match still binds its transaction. A rejected or
// superseded match leaves the transaction eligible for a new run.
func (s MatchStatus) live() bool {
	switch s {
	case MatchStatusAutoAccepted, MatchStatusPendingReview, MatchStatusAccepted:
		return true
	case MatchStatusRejected, MatchStatusSuperseded:
		return false
	}
	return false
}

// Match links one bank transaction to one or more journal entries. Matches
// are never deleted; a new run supersedes the old row and bumps the version,
// so history is reconstructed by following SupersededByID chains.
type Match struct {
	ID             int64
	OwnerID        int64
	TransactionID  int64
	EntryIDs       []int64
	Score          int
	Breakdown      map[string]int
	Status         MatchStatus
	Version        int
	SupersededByID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
