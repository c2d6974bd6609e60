package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalShared "github.com/finbook/finbook/internal/shared"
	"github.com/finbook/finbook/internal/statements"
)

// AuditPort records lifecycle decisions for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Lifecycle owns the accept/reject state machine over matches. Matches are
// mutated only here or by a superseding match run.
type Lifecycle struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewLifecycle wires the lifecycle manager.
func NewLifecycle(repo Repository, audit AuditPort) *Lifecycle {
	return &Lifecycle{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (l *Lifecycle) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Accept confirms a match. Valid only from PENDING_REVIEW or AUTO_ACCEPTED.
func (l *Lifecycle) Accept(ctx context.Context, matchID, actorID int64) error {
	return l.transition(ctx, matchID, actorID, MatchStatusAccepted)
}

// Reject dismisses a match and releases its transaction for a future run.
func (l *Lifecycle) Reject(ctx context.Context, matchID, actorID int64) error {
	return l.transition(ctx, matchID, actorID, MatchStatusRejected)
}

func (l *Lifecycle) transition(ctx context.Context, matchID, actorID int64, to MatchStatus) error {
	match, err := l.repo.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	switch match.Status {
	case MatchStatusPendingReview, MatchStatusAutoAccepted:
	default:
		return fmt.Errorf("recon: match %d is %s: %w", matchID, match.Status, ErrInvalidTransition)
	}
	if err := l.repo.UpdateMatchStatus(ctx, matchID, to, match.Version); err != nil {
		return err
	}
	if to == MatchStatusRejected {
		if err := l.repo.SetTransactionStatus(ctx, match.TransactionID, statements.TxStatusUnmatched, nil); err != nil {
			return err
		}
	}
	l.recordAudit(ctx, actorID, matchID, to)
	return nil
}

// BatchResult reports the outcome for one id in a batch operation.
type BatchResult struct {
	MatchID int64
	Err     error
}

// BatchAccept applies Accept to each id independently. One failed id never
// rolls back its siblings; the caller receives per-id results.
func (l *Lifecycle) BatchAccept(ctx context.Context, matchIDs []int64, actorID int64) []BatchResult {
	results := make([]BatchResult, 0, len(matchIDs))
	for _, id := range matchIDs {
		results = append(results, BatchResult{MatchID: id, Err: l.Accept(ctx, id, actorID)})
	}
	return results
}

// History walks the supersession chain starting from the given match,
// oldest first.
func (l *Lifecycle) History(ctx context.Context, matchID int64) ([]Match, error) {
	var chain []Match
	id := matchID
	for {
		match, err := l.repo.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, match)
		if match.SupersededByID == nil {
			return chain, nil
		}
		if *match.SupersededByID == id {
			return nil, errors.New("recon: supersession cycle detected")
		}
		id = *match.SupersededByID
	}
}

func (l *Lifecycle) recordAudit(ctx context.Context, actorID, matchID int64, to MatchStatus) {
	if l.audit == nil {
		return
	}
	_ = l.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   "recon." + string(to),
		Entity:   "reconciliation_match",
		EntityID: fmt.Sprintf("%d", matchID),
		At:       l.now(),
	})
}
