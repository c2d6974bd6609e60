package statements

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStatementsRepo struct {
	statements   map[int64]Statement
	transactions map[int64]BankTransaction
	nextID       int64
}

func newMemoryStatementsRepo() *memoryStatementsRepo {
	return &memoryStatementsRepo{
		statements:   make(map[int64]Statement),
		transactions: make(map[int64]BankTransaction),
	}
}

func (r *memoryStatementsRepo) addStatement(status StatementStatus, updatedAt time.Time) Statement {
	r.nextID++
	stmt := Statement{ID: r.nextID, OwnerID: 7, AccountID: 10, Status: status, UpdatedAt: updatedAt}
	r.statements[stmt.ID] = stmt
	return stmt
}

func (r *memoryStatementsRepo) GetStatement(ctx context.Context, statementID int64) (Statement, error) {
	stmt, ok := r.statements[statementID]
	if !ok {
		return Statement{}, ErrStatementNotFound
	}
	return stmt, nil
}

func (r *memoryStatementsRepo) UpdateStatementStatus(ctx context.Context, statementID int64, from []StatementStatus, to StatementStatus, failureReason *string) error {
	stmt, ok := r.statements[statementID]
	if !ok {
		return ErrStatementNotFound
	}
	if !slices.Contains(from, stmt.Status) {
		return ErrInvalidTransition
	}
	stmt.Status = to
	stmt.FailureReason = failureReason
	stmt.UpdatedAt = time.Now()
	r.statements[statementID] = stmt
	return nil
}

func (r *memoryStatementsRepo) ListStuckParsing(ctx context.Context, updatedBefore time.Time) ([]Statement, error) {
	var out []Statement
	for _, stmt := range r.statements {
		if stmt.Status == StatementStatusParsing && stmt.UpdatedAt.Before(updatedBefore) {
			out = append(out, stmt)
		}
	}
	return out, nil
}

func (r *memoryStatementsRepo) InsertTransaction(ctx context.Context, tx BankTransaction) (BankTransaction, error) {
	r.nextID++
	tx.ID = r.nextID
	r.transactions[tx.ID] = tx
	return tx, nil
}

func (r *memoryStatementsRepo) ListTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, tx := range r.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		if statementID != nil && tx.StatementID != *statementID {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func newStatementsService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStatementLifecycleTransitions(t *testing.T) {
	repo := newMemoryStatementsRepo()
	svc := newStatementsService(repo)

	stmt := repo.addStatement(StatementStatusUploaded, time.Now())
	require.NoError(t, svc.MarkParsing(context.Background(), stmt.ID))
	require.NoError(t, svc.MarkParsed(context.Background(), stmt.ID))

	stored, err := repo.GetStatement(context.Background(), stmt.ID)
	require.NoError(t, err)
	require.Equal(t, StatementStatusParsed, stored.Status)
}

func TestMarkParsedRequiresParsing(t *testing.T) {
	repo := newMemoryStatementsRepo()
	svc := newStatementsService(repo)

	stmt := repo.addStatement(StatementStatusUploaded, time.Now())
	require.ErrorIs(t, svc.MarkParsed(context.Background(), stmt.ID), ErrInvalidTransition)
}

func TestMarkFailedRequiresReason(t *testing.T) {
	repo := newMemoryStatementsRepo()
	svc := newStatementsService(repo)

	stmt := repo.addStatement(StatementStatusParsing, time.Now())
	require.Error(t, svc.MarkFailed(context.Background(), stmt.ID, ""))

	require.NoError(t, svc.MarkFailed(context.Background(), stmt.ID, "parser crashed"))
	stored, err := repo.GetStatement(context.Background(), stmt.ID)
	require.NoError(t, err)
	require.Equal(t, StatementStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	require.Equal(t, "parser crashed", *stored.FailureReason)
}

func TestMarkFailedFromParsedFails(t *testing.T) {
	repo := newMemoryStatementsRepo()
	svc := newStatementsService(repo)

	stmt := repo.addStatement(StatementStatusParsed, time.Now())
	require.ErrorIs(t, svc.MarkFailed(context.Background(), stmt.ID, "late failure"), ErrInvalidTransition)
}

func TestListStuckParsing(t *testing.T) {
	repo := newMemoryStatementsRepo()
	svc := newStatementsService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) })

	stale := repo.addStatement(StatementStatusParsing, time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC))
	repo.addStatement(StatementStatusParsing, time.Date(2026, 5, 1, 11, 50, 0, 0, time.UTC))
	repo.addStatement(StatementStatusParsed, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	stuck, err := svc.ListStuckParsing(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	require.Equal(t, stale.ID, stuck[0].ID)
}
