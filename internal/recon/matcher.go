package recon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/finbook/finbook/internal/statements"
)

// Matcher links bank transactions to posted journal entries. Runs are
// idempotent: a transaction already bound by a live match is skipped, so
// re-executing a run creates zero new matches.
type Matcher struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewMatcher wires the reconciliation matcher.
func NewMatcher(repo Repository, logger *slog.Logger) *Matcher {
	return &Matcher{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (m *Matcher) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// ExecuteMatching runs the matcher over every eligible transaction for the
// owner, optionally scoped to one statement, and returns the matches created
// in this run. A failure on one transaction does not abort its siblings.
func (m *Matcher) ExecuteMatching(ctx context.Context, ownerID int64, statementID *int64) ([]Match, error) {
	if ownerID == 0 {
		return nil, errors.New("recon: owner required")
	}
	txs, err := m.repo.ListEligibleTransactions(ctx, ownerID, statementID)
	if err != nil {
		return nil, err
	}

	created := make([]Match, 0)
	var failed int
	for _, tx := range txs {
		match, ok, err := m.matchOne(ctx, tx)
		if err != nil {
			failed++
			m.log().Error("matching failed for transaction",
				slog.Int64("transaction_id", tx.ID), slog.Any("error", err))
			continue
		}
		if ok {
			created = append(created, match)
		}
	}

	m.log().Info("completed matching run",
		slog.Int64("owner_id", ownerID),
		slog.Int("eligible", len(txs)),
		slog.Int("matched", len(created)),
		slog.Int("failed", failed),
	)
	return created, nil
}

// matchOne applies candidate search, scoring and decision routing to a
// single transaction. Returns ok=false when no match was recorded.
func (m *Matcher) matchOne(ctx context.Context, tx statements.BankTransaction) (Match, bool, error) {
	if _, live, err := m.repo.FindLiveMatch(ctx, tx.ID); err != nil {
		return Match{}, false, err
	} else if live {
		return Match{}, false, nil
	}

	from := tx.Date.AddDate(0, 0, -DateWindowDays)
	to := tx.Date.AddDate(0, 0, DateWindowDays)
	candidates, err := m.repo.FindCandidates(ctx, tx.OwnerID, from, to, tx.Amount, AmountTolerance)
	if err != nil {
		return Match{}, false, err
	}
	if len(candidates) == 0 {
		return Match{}, false, m.markUnmatched(ctx, tx)
	}

	best, bestScore, breakdown := pickBest(tx, candidates)
	if bestScore < ReviewThreshold {
		return Match{}, false, m.markUnmatched(ctx, tx)
	}

	status := MatchStatusPendingReview
	if bestScore >= AutoAcceptThreshold {
		status = MatchStatusAutoAccepted
	}

	version := 1
	var prior *Match
	if latest, found, err := m.repo.LatestMatch(ctx, tx.ID); err != nil {
		return Match{}, false, err
	} else if found {
		version = latest.Version + 1
		prior = &latest
	}

	match, err := m.repo.InsertMatch(ctx, Match{
		OwnerID:       tx.OwnerID,
		TransactionID: tx.ID,
		EntryIDs:      []int64{best.EntryID},
		Score:         bestScore,
		Breakdown:     breakdown,
		Status:        status,
		Version:       version,
	})
	if err != nil {
		return Match{}, false, err
	}
	if prior != nil && prior.Status != MatchStatusSuperseded {
		if err := m.repo.SupersedeMatch(ctx, prior.ID, match.ID, prior.Version); err != nil {
			return Match{}, false, err
		}
	}

	confidence := bestScore
	if err := m.repo.SetTransactionStatus(ctx, tx.ID, statements.TxStatusMatched, &confidence); err != nil {
		return Match{}, false, err
	}
	return match, true, nil
}

// markUnmatched records that a search ran and found nothing acceptable.
func (m *Matcher) markUnmatched(ctx context.Context, tx statements.BankTransaction) error {
	if tx.Status == statements.TxStatusUnmatched {
		return nil
	}
	return m.repo.SetTransactionStatus(ctx, tx.ID, statements.TxStatusUnmatched, nil)
}

func pickBest(tx statements.BankTransaction, candidates []Candidate) (Candidate, int, map[string]int) {
	var best Candidate
	bestScore := -1
	var bestBreakdown map[string]int
	for _, cand := range candidates {
		score, breakdown := scoreCandidate(tx.Date, tx.Amount, tx.Description, cand)
		if score > bestScore {
			best = cand
			bestScore = score
			bestBreakdown = breakdown
		}
	}
	return best, bestScore, bestBreakdown
}

func (m *Matcher) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}
