package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	GetAccount(ctx context.Context, ownerID, accountID int64) (Account, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]Account, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	DeactivateAccount(ctx context.Context, ownerID, accountID int64) error
	AccountLineCount(ctx context.Context, accountID int64) (int64, error)
	DeleteAccount(ctx context.Context, ownerID, accountID int64) error

	GetEntry(ctx context.Context, ownerID, entryID int64) (JournalEntry, error)
	ListEntries(ctx context.Context, ownerID int64) ([]JournalEntry, error)
	SumPostedLinesByAccount(ctx context.Context, ownerID int64, accountIDs []int64) ([]AccountLineSum, error)

	// Mutations that must observe entry status run inside a transaction.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes entry mutations available within a transaction.
// GetEntryForUpdate locks the entry row so concurrent post/void transitions
// resolve serially.
type TxRepository interface {
	InsertEntry(ctx context.Context, in EntryInput, status EntryStatus) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	GetEntryForUpdate(ctx context.Context, ownerID, entryID int64) (JournalEntry, []JournalLine, error)
	UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error
	SetVoid(ctx context.Context, entryID int64, reason string, reversalEntryID int64) error
	DeleteEntry(ctx context.Context, entryID int64) error
}

// AccountLineSum aggregates posted line amounts for one account by direction.
type AccountLineSum struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetAccount(ctx context.Context, ownerID, accountID int64) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `SELECT id, owner_id, name, type, currency, is_active, created_at, updated_at
FROM accounts WHERE id=$1 AND owner_id=$2`, accountID, ownerID).
		Scan(&a.ID, &a.OwnerID, &a.Name, &a.Type, &a.Currency, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) ListAccounts(ctx context.Context, ownerID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, name, type, currency, is_active, created_at, updated_at
FROM accounts WHERE owner_id=$1 ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Type, &a.Currency, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (owner_id, name, type, currency, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		acc.OwnerID, acc.Name, acc.Type, acc.Currency, acc.IsActive).
		Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

func (r *repository) DeactivateAccount(ctx context.Context, ownerID, accountID int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND owner_id=$2`, accountID, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) AccountLineCount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, accountID).Scan(&n)
	return n, err
}

func (r *repository) DeleteAccount(ctx context.Context, ownerID, accountID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1 AND owner_id=$2`, accountID, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) GetEntry(ctx context.Context, ownerID, entryID int64) (JournalEntry, error) {
	var e JournalEntry
	err := r.db.QueryRow(ctx, `SELECT id, owner_id, date, memo, source, status, void_reason, reversal_entry_id, created_at, updated_at
FROM journal_entries WHERE id=$1 AND owner_id=$2`, entryID, ownerID).
		Scan(&e.ID, &e.OwnerID, &e.Date, &e.Memo, &e.Source, &e.Status, &e.VoidReason, &e.ReversalEntryID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := scanLines(ctx, r.db, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (r *repository) ListEntries(ctx context.Context, ownerID int64) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, date, memo, source, status, void_reason, reversal_entry_id, created_at, updated_at
FROM journal_entries WHERE owner_id=$1 ORDER BY date DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Date, &e.Memo, &e.Source, &e.Status, &e.VoidReason, &e.ReversalEntryID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) SumPostedLinesByAccount(ctx context.Context, ownerID int64, accountIDs []int64) ([]AccountLineSum, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT l.account_id,
COALESCE(SUM(l.amount) FILTER (WHERE l.direction='DEBIT'), 0)::text,
COALESCE(SUM(l.amount) FILTER (WHERE l.direction='CREDIT'), 0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.owner_id=$1 AND e.status IN ('POSTED','RECONCILED') AND l.account_id = ANY($2)
GROUP BY l.account_id`, ownerID, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sums []AccountLineSum
	for rows.Next() {
		var s AccountLineSum
		var debit, credit string
		if err := rows.Scan(&s.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		if s.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if s.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, in EntryInput, status EntryStatus) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (owner_id, date, memo, source, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, in.OwnerID, in.Date, in.Memo, in.Source, status)
	entry := JournalEntry{
		OwnerID: in.OwnerID,
		Date:    in.Date,
		Memo:    in.Memo,
		Source:  in.Source,
		Status:  status,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		var rate any
		if line.FxRate != nil {
			rate = line.FxRate.String()
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, direction, amount, currency, fx_rate)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.AccountID, line.Direction, line.Amount.StringFixed(2), line.Currency, rate); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, ownerID, entryID int64) (JournalEntry, []JournalLine, error) {
	var e JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, owner_id, date, memo, source, status, void_reason, reversal_entry_id, created_at, updated_at
FROM journal_entries WHERE id=$1 AND owner_id=$2 FOR UPDATE`, entryID, ownerID).
		Scan(&e.ID, &e.OwnerID, &e.Date, &e.Memo, &e.Source, &e.Status, &e.VoidReason, &e.ReversalEntryID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, nil, ErrEntryNotFound
		}
		return JournalEntry{}, nil, err
	}
	lines, err := scanLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return e, lines, nil
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, entryID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) SetVoid(ctx context.Context, entryID int64, reason string, reversalEntryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='VOID', void_reason=$2, reversal_entry_id=$3, updated_at=NOW()
WHERE id=$1`, entryID, reason, reversalEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, direction, amount::text, currency, fx_rate::text, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var amount string
		var rate *string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Direction, &amount, &line.Currency, &rate, &line.CreatedAt); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if rate != nil {
			parsed, err := decimal.NewFromString(*rate)
			if err != nil {
				return nil, err
			}
			line.FxRate = &parsed
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
