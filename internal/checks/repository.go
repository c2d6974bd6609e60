package checks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/platform/db"
)

// Repository persists consistency checks and reads the transaction
// population the detectors scan.
type Repository interface {
	ListTransactionViews(ctx context.Context, ownerID int64, statementID *int64) ([]TxnView, error)
	ListHistory(ctx context.Context, ownerID int64, before time.Time, lookbackDays int) ([]TxnView, error)

	// CreateFinding inserts the check unless an unresolved check over the
	// same member set already exists, reporting whether a row was created.
	CreateFinding(ctx context.Context, check Check) (Check, bool, error)
	GetCheck(ctx context.Context, checkID int64) (Check, error)
	ResolveCheck(ctx context.Context, checkID int64, status CheckStatus, note string, at time.Time) error
	ListOpenChecks(ctx context.Context, ownerID int64) ([]Check, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed checks repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListTransactionViews(ctx context.Context, ownerID int64, statementID *int64) ([]TxnView, error) {
	query := `SELECT id, owner_id, account_id, statement_id, date, amount::text, direction, description
FROM bank_statement_transactions WHERE owner_id=$1`
	args := []any{ownerID}
	if statementID != nil {
		query += ` AND statement_id=$2`
		args = append(args, *statementID)
	}
	query += ` ORDER BY date ASC, id ASC`
	return r.queryViews(ctx, query, args...)
}

func (r *repository) ListHistory(ctx context.Context, ownerID int64, before time.Time, lookbackDays int) ([]TxnView, error) {
	from := before.AddDate(0, 0, -lookbackDays)
	return r.queryViews(ctx, `SELECT id, owner_id, account_id, statement_id, date, amount::text, direction, description
FROM bank_statement_transactions WHERE owner_id=$1 AND date >= $2 AND date <= $3
ORDER BY date ASC, id ASC`, ownerID, from, before)
}

func (r *repository) queryViews(ctx context.Context, query string, args ...any) ([]TxnView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []TxnView
	for rows.Next() {
		var v TxnView
		var amount string
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.AccountID, &v.StatementID, &v.Date, &amount, &v.Direction, &v.Description); err != nil {
			return nil, err
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

const checkColumns = `id, owner_id, check_type, status, transaction_ids, details, severity, resolution_note, resolved_at, created_at`

// CreateFinding runs the dedup lookup and insert inside one transaction
// holding the owner's advisory lock, so concurrent scans against the same
// owner cannot record the same finding twice.
func (r *repository) CreateFinding(ctx context.Context, check Check) (Check, bool, error) {
	details, err := json.Marshal(check.Details)
	if err != nil {
		return Check{}, false, err
	}
	created := false
	err = db.WithOwnerTx(ctx, r.db, check.OwnerID, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM consistency_checks
WHERE owner_id=$1 AND check_type=$2 AND transaction_ids=$3 AND status IN ('PENDING','FLAGGED'))`,
			check.OwnerID, check.Type, check.TransactionIDs).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := tx.QueryRow(ctx, `INSERT INTO consistency_checks (owner_id, check_type, status, transaction_ids, details, severity)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
			check.OwnerID, check.Type, check.Status, check.TransactionIDs, details, check.Severity).
			Scan(&check.ID, &check.CreatedAt); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return Check{}, false, err
	}
	return check, created, nil
}

func (r *repository) GetCheck(ctx context.Context, checkID int64) (Check, error) {
	row := r.db.QueryRow(ctx, `SELECT `+checkColumns+` FROM consistency_checks WHERE id=$1`, checkID)
	return scanCheck(row)
}

func (r *repository) ResolveCheck(ctx context.Context, checkID int64, status CheckStatus, note string, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE consistency_checks
SET status=$2, resolution_note=$3, resolved_at=$4
WHERE id=$1 AND status IN ('PENDING','FLAGGED')`, checkID, status, note, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetCheck(ctx, checkID); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

func (r *repository) ListOpenChecks(ctx context.Context, ownerID int64) ([]Check, error) {
	rows, err := r.db.Query(ctx, `SELECT `+checkColumns+` FROM consistency_checks
WHERE owner_id=$1 AND status IN ('PENDING','FLAGGED') ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, check)
	}
	return out, rows.Err()
}

func scanCheck(row pgx.Row) (Check, error) {
	var c Check
	var details []byte
	err := row.Scan(&c.ID, &c.OwnerID, &c.Type, &c.Status, &c.TransactionIDs, &details, &c.Severity, &c.ResolutionNote, &c.ResolvedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Check{}, ErrCheckNotFound
		}
		return Check{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &c.Details); err != nil {
			return Check{}, err
		}
	}
	return c, nil
}
