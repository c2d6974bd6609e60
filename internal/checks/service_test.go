package checks

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finbook/finbook/internal/ingest"
	internalShared "github.com/finbook/finbook/internal/shared"
)

type memoryChecksRepo struct {
	views  []TxnView
	checks map[int64]Check
	nextID int64
}

func newMemoryChecksRepo() *memoryChecksRepo {
	return &memoryChecksRepo{checks: make(map[int64]Check)}
}

func (r *memoryChecksRepo) ListTransactionViews(ctx context.Context, ownerID int64, statementID *int64) ([]TxnView, error) {
	var out []TxnView
	for _, v := range r.views {
		if v.OwnerID != ownerID {
			continue
		}
		if statementID != nil && v.StatementID != *statementID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *memoryChecksRepo) ListHistory(ctx context.Context, ownerID int64, before time.Time, lookbackDays int) ([]TxnView, error) {
	from := before.AddDate(0, 0, -lookbackDays)
	var out []TxnView
	for _, v := range r.views {
		if v.OwnerID == ownerID && !v.Date.Before(from) && !v.Date.After(before) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryChecksRepo) CreateFinding(ctx context.Context, check Check) (Check, bool, error) {
	for _, c := range r.checks {
		if c.OwnerID != check.OwnerID || c.Type != check.Type {
			continue
		}
		if c.Status != CheckStatusPending && c.Status != CheckStatusFlagged {
			continue
		}
		if slices.Equal(c.TransactionIDs, check.TransactionIDs) {
			return check, false, nil
		}
	}
	r.nextID++
	check.ID = r.nextID
	check.CreatedAt = time.Now()
	r.checks[check.ID] = check
	return check, true, nil
}

func (r *memoryChecksRepo) GetCheck(ctx context.Context, checkID int64) (Check, error) {
	c, ok := r.checks[checkID]
	if !ok {
		return Check{}, ErrCheckNotFound
	}
	return c, nil
}

func (r *memoryChecksRepo) ResolveCheck(ctx context.Context, checkID int64, status CheckStatus, note string, at time.Time) error {
	c, ok := r.checks[checkID]
	if !ok {
		return ErrCheckNotFound
	}
	if c.Status != CheckStatusPending && c.Status != CheckStatusFlagged {
		return ErrAlreadyResolved
	}
	c.Status = status
	c.ResolutionNote = &note
	c.ResolvedAt = &at
	r.checks[checkID] = c
	return nil
}

func (r *memoryChecksRepo) ListOpenChecks(ctx context.Context, ownerID int64) ([]Check, error) {
	var out []Check
	for _, c := range r.checks {
		if c.OwnerID == ownerID && (c.Status == CheckStatusPending || c.Status == CheckStatusFlagged) {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingChecksAudit struct {
	logs []internalShared.AuditLog
}

func (a *recordingChecksAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newChecksService(repo Repository) *Service {
	return NewService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunDuplicateScanCreatesPendingChecks(t *testing.T) {
	repo := newMemoryChecksRepo()
	repo.views = []TxnView{
		view(1, 10, scanDate, "4.50", ingest.DirectionOut, "COFFEE SHOP"),
		view(2, 10, scanDate, "4.50", ingest.DirectionOut, "COFFEE SHOP"),
	}
	svc := newChecksService(repo)

	result, err := svc.RunDuplicateScan(context.Background(), 7, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 1, result.Created)

	open, err := svc.ListOpenChecks(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, CheckStatusPending, open[0].Status)
	require.Equal(t, []int64{1, 2}, open[0].TransactionIDs)
}

func TestRunDuplicateScanRerunSkipsOpenChecks(t *testing.T) {
	repo := newMemoryChecksRepo()
	repo.views = []TxnView{
		view(1, 10, scanDate, "4.50", ingest.DirectionOut, "COFFEE SHOP"),
		view(2, 10, scanDate, "4.50", ingest.DirectionOut, "COFFEE SHOP"),
	}
	svc := newChecksService(repo)

	_, err := svc.RunDuplicateScan(context.Background(), 7, nil)
	require.NoError(t, err)
	second, err := svc.RunDuplicateScan(context.Background(), 7, nil)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 1, second.Skipped)
	require.Len(t, repo.checks, 1)
}

func TestRunAnomalyScanExcludesSelfFromBaseline(t *testing.T) {
	repo := newMemoryChecksRepo()
	// Six 10.00 transactions plus one 100.00: the spike's own amount must
	// not inflate its baseline.
	for i := 0; i < 6; i++ {
		repo.views = append(repo.views, view(int64(100+i), 10, scanDate.AddDate(0, 0, -(i+1)), "10.00", ingest.DirectionOut, "GROCERIES NTUC"))
	}
	repo.views = append(repo.views, view(1, 10, scanDate, "100.00", ingest.DirectionOut, "GROCERIES NTUC"))
	svc := newChecksService(repo)

	result, err := svc.RunAnomalyScan(context.Background(), 7, nil)
	require.NoError(t, err)
	require.NotZero(t, result.Created)

	found := false
	for _, c := range repo.checks {
		if c.Details["kind"] == string(AnomalyLargeAmount) {
			found = true
			require.Equal(t, []int64{1}, c.TransactionIDs)
		}
	}
	require.True(t, found)
}

func TestResolveCheckApprove(t *testing.T) {
	repo := newMemoryChecksRepo()
	audit := &recordingChecksAudit{}
	svc := NewService(repo, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	check, created, err := repo.CreateFinding(context.Background(), Check{OwnerID: 7, Type: CheckTypeDuplicate, Status: CheckStatusPending, TransactionIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.True(t, created)

	resolved, err := svc.ResolveCheck(context.Background(), check.ID, 7, DecisionApprove, "same coffee twice, legit")
	require.NoError(t, err)
	require.Equal(t, CheckStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolutionNote)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "checks.resolve", audit.logs[0].Action)
}

func TestResolveCheckTwiceFails(t *testing.T) {
	repo := newMemoryChecksRepo()
	svc := newChecksService(repo)

	check, created, err := repo.CreateFinding(context.Background(), Check{OwnerID: 7, Type: CheckTypeDuplicate, Status: CheckStatusPending, TransactionIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.ResolveCheck(context.Background(), check.ID, 7, DecisionReject, "duplicate confirmed")
	require.NoError(t, err)

	_, err = svc.ResolveCheck(context.Background(), check.ID, 7, DecisionApprove, "changed my mind")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolveCheckUnknownDecision(t *testing.T) {
	repo := newMemoryChecksRepo()
	svc := newChecksService(repo)

	check, created, err := repo.CreateFinding(context.Background(), Check{OwnerID: 7, Type: CheckTypeDuplicate, Status: CheckStatusPending})
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.ResolveCheck(context.Background(), check.ID, 7, Decision("MAYBE"), "")
	require.ErrorIs(t, err, ErrUnknownDecision)
}

func TestResolveMissingCheck(t *testing.T) {
	svc := newChecksService(newMemoryChecksRepo())
	_, err := svc.ResolveCheck(context.Background(), 42, 7, DecisionApprove, "")
	require.ErrorIs(t, err, ErrCheckNotFound)
}
