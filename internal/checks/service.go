package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	internalShared "github.com/finbook/finbook/internal/shared"
)

// AuditPort records check resolutions for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service runs the consistency detectors and owns the check review
// lifecycle.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the checks service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ScanResult summarises one detector run.
type ScanResult struct {
	Scanned int
	Created int
	Skipped int
}

// RunDuplicateScan detects duplicate candidates for the owner, optionally
// scoped to one statement, and persists a PENDING check per new group.
func (s *Service) RunDuplicateScan(ctx context.Context, ownerID int64, statementID *int64) (ScanResult, error) {
	txs, err := s.repo.ListTransactionViews(ctx, ownerID, statementID)
	if err != nil {
		return ScanResult{}, err
	}
	return s.persistFindings(ctx, ownerID, len(txs), DetectDuplicates(txs))
}

// RunTransferScan detects internal transfer pairs for the owner.
func (s *Service) RunTransferScan(ctx context.Context, ownerID int64, statementID *int64) (ScanResult, error) {
	txs, err := s.repo.ListTransactionViews(ctx, ownerID, statementID)
	if err != nil {
		return ScanResult{}, err
	}
	return s.persistFindings(ctx, ownerID, len(txs), DetectTransferPairs(txs))
}

// RunAnomalyScan evaluates each transaction against the owner's trailing
// history. A transaction with no history degrades to no-finding rather than
// failing the run.
func (s *Service) RunAnomalyScan(ctx context.Context, ownerID int64, statementID *int64) (ScanResult, error) {
	txs, err := s.repo.ListTransactionViews(ctx, ownerID, statementID)
	if err != nil {
		return ScanResult{}, err
	}
	var findings []Finding
	for _, tx := range txs {
		history, err := s.repo.ListHistory(ctx, ownerID, tx.Date, MerchantLookbackDays)
		if err != nil {
			return ScanResult{}, err
		}
		findings = append(findings, DetectAnomalies(tx, excludeSelf(history, tx.ID))...)
	}
	return s.persistFindings(ctx, ownerID, len(txs), findings)
}

// excludeSelf drops the transaction under evaluation from its own history.
func excludeSelf(history []TxnView, id int64) []TxnView {
	out := make([]TxnView, 0, len(history))
	for _, h := range history {
		if h.ID != id {
			out = append(out, h)
		}
	}
	return out
}

func (s *Service) persistFindings(ctx context.Context, ownerID int64, scanned int, findings []Finding) (ScanResult, error) {
	result := ScanResult{Scanned: scanned}
	for _, finding := range findings {
		_, created, err := s.repo.CreateFinding(ctx, Check{
			OwnerID:        ownerID,
			Type:           finding.Type,
			Status:         CheckStatusPending,
			TransactionIDs: finding.TransactionIDs,
			Details:        finding.Details,
			Severity:       finding.Severity,
		})
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	s.logger.Info("checks scan finished",
		slog.Int64("owner_id", ownerID),
		slog.Int("scanned", result.Scanned),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// ResolveCheck records a terminal human decision on a check. Only PENDING
// and FLAGGED checks can be resolved; resolving twice fails.
func (s *Service) ResolveCheck(ctx context.Context, checkID, actorID int64, decision Decision, note string) (Check, error) {
	var to CheckStatus
	switch decision {
	case DecisionApprove:
		to = CheckStatusApproved
	case DecisionReject:
		to = CheckStatusRejected
	default:
		return Check{}, fmt.Errorf("checks: decision %q: %w", decision, ErrUnknownDecision)
	}

	check, err := s.repo.GetCheck(ctx, checkID)
	if err != nil {
		return Check{}, err
	}
	switch check.Status {
	case CheckStatusPending, CheckStatusFlagged:
	default:
		return Check{}, fmt.Errorf("checks: check %d is %s: %w", checkID, check.Status, ErrAlreadyResolved)
	}

	at := s.now().UTC()
	if err := s.repo.ResolveCheck(ctx, checkID, to, note, at); err != nil {
		return Check{}, err
	}
	check.Status = to
	check.ResolutionNote = &note
	check.ResolvedAt = &at

	s.recordAudit(ctx, actorID, "checks.resolve", checkID, map[string]any{
		"decision": string(decision),
		"note":     note,
	})
	return check, nil
}

// ListOpenChecks returns the owner's review queue, newest first.
func (s *Service) ListOpenChecks(ctx context.Context, ownerID int64) ([]Check, error) {
	return s.repo.ListOpenChecks(ctx, ownerID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, checkID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "consistency_check",
		EntityID: fmt.Sprintf("%d", checkID),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
