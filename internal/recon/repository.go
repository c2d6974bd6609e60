package recon

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/statements"
)

// Repository persists reconciliation matches and exposes the candidate and
// transaction queries the matcher needs.
type Repository interface {
	ListEligibleTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]statements.BankTransaction, error)
	FindLiveMatch(ctx context.Context, transactionID int64) (Match, bool, error)
	LatestMatch(ctx context.Context, transactionID int64) (Match, bool, error)
	FindCandidates(ctx context.Context, ownerID int64, from, to time.Time, amount, tolerance decimal.Decimal) ([]Candidate, error)

	InsertMatch(ctx context.Context, m Match) (Match, error)
	SupersedeMatch(ctx context.Context, oldID, newID int64, expectedVersion int) error
	GetMatch(ctx context.Context, matchID int64) (Match, error)
	// UpdateMatchStatus applies an optimistic version check; zero rows
	// affected surfaces as ErrConcurrentModification.
	UpdateMatchStatus(ctx context.Context, matchID int64, status MatchStatus, expectedVersion int) error

	SetTransactionStatus(ctx context.Context, transactionID int64, status statements.TxStatus, confidence *int) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed reconciliation repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListEligibleTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]statements.BankTransaction, error) {
	query := `SELECT t.id, t.statement_id, t.owner_id, t.account_id, t.date, t.description, t.amount::text, t.direction, t.status, t.confidence, t.created_at, t.updated_at
FROM bank_statement_transactions t
WHERE t.owner_id=$1 AND t.status IN ('PENDING','UNMATCHED')`
	args := []any{ownerID}
	if statementID != nil {
		query += ` AND t.statement_id=$2`
		args = append(args, *statementID)
	}
	query += ` ORDER BY t.date ASC, t.id ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []statements.BankTransaction
	for rows.Next() {
		var t statements.BankTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.StatementID, &t.OwnerID, &t.AccountID, &t.Date, &t.Description, &amount, &t.Direction, &t.Status, &t.Confidence, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

const matchColumns = `id, owner_id, transaction_id, entry_ids, score, breakdown, status, version, superseded_by_id, created_at, updated_at`

func (r *repository) FindLiveMatch(ctx context.Context, transactionID int64) (Match, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM reconciliation_matches
WHERE transaction_id=$1 AND status IN ('AUTO_ACCEPTED','PENDING_REVIEW','ACCEPTED')
ORDER BY version DESC LIMIT 1`, transactionID)
	return scanMatchMaybe(row)
}

func (r *repository) LatestMatch(ctx context.Context, transactionID int64) (Match, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM reconciliation_matches
WHERE transaction_id=$1 ORDER BY version DESC LIMIT 1`, transactionID)
	return scanMatchMaybe(row)
}

func (r *repository) FindCandidates(ctx context.Context, ownerID int64, from, to time.Time, amount, tolerance decimal.Decimal) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.date, e.memo,
(SELECT GREATEST(
  COALESCE(SUM(l.amount) FILTER (WHERE l.direction='DEBIT'), 0),
  COALESCE(SUM(l.amount) FILTER (WHERE l.direction='CREDIT'), 0))
 FROM journal_lines l WHERE l.entry_id = e.id)::text AS net
FROM journal_entries e
WHERE e.owner_id=$1 AND e.status='POSTED' AND e.date BETWEEN $2 AND $3
AND EXISTS (
  SELECT 1 FROM journal_lines l WHERE l.entry_id = e.id
  GROUP BY l.entry_id
  HAVING ABS(GREATEST(
    COALESCE(SUM(l.amount) FILTER (WHERE l.direction='DEBIT'), 0),
    COALESCE(SUM(l.amount) FILTER (WHERE l.direction='CREDIT'), 0)) - $4::numeric) <= $5::numeric
)
ORDER BY e.date ASC`, ownerID, from, to, amount.StringFixed(2), tolerance.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var net string
		if err := rows.Scan(&c.EntryID, &c.EntryDate, &c.Memo, &net); err != nil {
			return nil, err
		}
		if c.NetAmount, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *repository) InsertMatch(ctx context.Context, m Match) (Match, error) {
	breakdown, err := json.Marshal(m.Breakdown)
	if err != nil {
		return Match{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO reconciliation_matches (owner_id, transaction_id, entry_ids, score, breakdown, status, version)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		m.OwnerID, m.TransactionID, m.EntryIDs, m.Score, breakdown, m.Status, m.Version).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Match{}, err
	}
	return m, nil
}

func (r *repository) SupersedeMatch(ctx context.Context, oldID, newID int64, expectedVersion int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE reconciliation_matches
SET status='SUPERSEDED', superseded_by_id=$2, updated_at=NOW()
WHERE id=$1 AND version=$3`, oldID, newID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (r *repository) GetMatch(ctx context.Context, matchID int64) (Match, error) {
	row := r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM reconciliation_matches WHERE id=$1`, matchID)
	m, found, err := scanMatchMaybe(row)
	if err != nil {
		return Match{}, err
	}
	if !found {
		return Match{}, ErrMatchNotFound
	}
	return m, nil
}

func (r *repository) UpdateMatchStatus(ctx context.Context, matchID int64, status MatchStatus, expectedVersion int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE reconciliation_matches
SET status=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3`, matchID, status, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetMatch(ctx, matchID); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

func (r *repository) SetTransactionStatus(ctx context.Context, transactionID int64, status statements.TxStatus, confidence *int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE bank_statement_transactions SET status=$2, confidence=$3, updated_at=NOW() WHERE id=$1`, transactionID, status, confidence)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("recon: bank transaction not found")
	}
	return nil
}

func scanMatchMaybe(row pgx.Row) (Match, bool, error) {
	var m Match
	var breakdown []byte
	err := row.Scan(&m.ID, &m.OwnerID, &m.TransactionID, &m.EntryIDs, &m.Score, &breakdown, &m.Status, &m.Version, &m.SupersededByID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, false, nil
		}
		return Match{}, false, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &m.Breakdown); err != nil {
			return Match{}, false, err
		}
	}
	return m, true, nil
}
