package statements

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Service exposes the statement status transitions. The polling supervisor
// that detects stuck parses lives in the jobs layer; this service only owns
// the transitions it calls.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the statements service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// MarkParsing moves an uploaded statement into PARSING.
func (s *Service) MarkParsing(ctx context.Context, statementID int64) error {
	return s.repo.UpdateStatementStatus(ctx, statementID, []StatementStatus{StatementStatusUploaded}, StatementStatusParsing, nil)
}

// MarkParsed completes a parse.
func (s *Service) MarkParsed(ctx context.Context, statementID int64) error {
	return s.repo.UpdateStatementStatus(ctx, statementID, []StatementStatus{StatementStatusParsing}, StatementStatusParsed, nil)
}

// MarkFailed fails a statement stuck in or aborted during parsing.
func (s *Service) MarkFailed(ctx context.Context, statementID int64, reason string) error {
	if reason == "" {
		return errors.New("statements: failure reason required")
	}
	err := s.repo.UpdateStatementStatus(ctx, statementID,
		[]StatementStatus{StatementStatusUploaded, StatementStatusParsing}, StatementStatusFailed, &reason)
	if err != nil {
		return err
	}
	s.log().Warn("statement marked failed", slog.Int64("statement_id", statementID), slog.String("reason", reason))
	return nil
}

// ListStuckParsing returns statements parsing for longer than the deadline.
func (s *Service) ListStuckParsing(ctx context.Context, olderThan time.Duration) ([]Statement, error) {
	return s.repo.ListStuckParsing(ctx, s.now().Add(-olderThan))
}

// ListTransactions returns an owner's bank transactions, optionally scoped
// to one statement.
func (s *Service) ListTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]BankTransaction, error) {
	return s.repo.ListTransactions(ctx, ownerID, statementID)
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
