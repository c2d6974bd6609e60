package statements

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists statements and their transactions.
type Repository interface {
	GetStatement(ctx context.Context, statementID int64) (Statement, error)
	UpdateStatementStatus(ctx context.Context, statementID int64, from []StatementStatus, to StatementStatus, failureReason *string) error
	ListStuckParsing(ctx context.Context, updatedBefore time.Time) ([]Statement, error)

	InsertTransaction(ctx context.Context, tx BankTransaction) (BankTransaction, error)
	ListTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]BankTransaction, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed statements repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const statementColumns = `id, owner_id, account_id, institution, currency, period_start, period_end, opening_balance::text, closing_balance::text, status, failure_reason, created_at, updated_at`

func (r *repository) GetStatement(ctx context.Context, statementID int64) (Statement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+statementColumns+` FROM statements WHERE id=$1`, statementID)
	st, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Statement{}, ErrStatementNotFound
		}
		return Statement{}, err
	}
	return st, nil
}

func (r *repository) UpdateStatementStatus(ctx context.Context, statementID int64, from []StatementStatus, to StatementStatus, failureReason *string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE statements SET status=$3, failure_reason=$4, updated_at=NOW()
WHERE id=$1 AND status = ANY($2)`, statementID, statusStrings(from), to, failureReason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetStatement(ctx, statementID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *repository) ListStuckParsing(ctx context.Context, updatedBefore time.Time) ([]Statement, error) {
	rows, err := r.db.Query(ctx, `SELECT `+statementColumns+` FROM statements
WHERE status='PARSING' AND updated_at < $1 ORDER BY updated_at ASC`, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repository) InsertTransaction(ctx context.Context, tx BankTransaction) (BankTransaction, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO bank_statement_transactions (statement_id, owner_id, account_id, date, description, amount, direction, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		tx.StatementID, tx.OwnerID, tx.AccountID, tx.Date, tx.Description, tx.Amount.StringFixed(2), tx.Direction, tx.Status).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return BankTransaction{}, err
	}
	return tx, nil
}

func (r *repository) ListTransactions(ctx context.Context, ownerID int64, statementID *int64) ([]BankTransaction, error) {
	query := `SELECT id, statement_id, owner_id, account_id, date, description, amount::text, direction, status, confidence, created_at, updated_at
FROM bank_statement_transactions WHERE owner_id=$1`
	args := []any{ownerID}
	if statementID != nil {
		query += ` AND statement_id=$2`
		args = append(args, *statementID)
	}
	query += ` ORDER BY date ASC, id ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []BankTransaction
	for rows.Next() {
		var t BankTransaction
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

func scanStatement(row pgx.Row) (Statement, error) {
	var st Statement
	var opening, closing string
	err := row.Scan(&st.ID, &st.OwnerID, &st.AccountID, &st.Institution, &st.Currency, &st.PeriodStart, &st.PeriodEnd,
		&opening, &closing, &st.Status, &st.FailureReason, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return Statement{}, err
	}
	if st.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return Statement{}, err
	}
	if st.ClosingBalance, err = decimal.NewFromString(closing); err != nil {
		return Statement{}, err
	}
	return st, nil
}

func statusStrings(statuses []StatementStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
