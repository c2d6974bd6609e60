package ingest

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrFingerprintExists signals a concurrent insert of the same fingerprint.
// It never escapes the service: the loser of the race re-reads the winner's
// row and appends its provenance there.
var ErrFingerprintExists = errors.New("ingest: fingerprint already exists")

// Repository persists canonical atomic records.
type Repository interface {
	FindTransactionByHash(ctx context.Context, ownerID int64, hash string) (AtomicTransaction, bool, error)
	InsertTransaction(ctx context.Context, tx AtomicTransaction) (AtomicTransaction, error)
	AppendTransactionSource(ctx context.Context, id int64, sourceDoc string) error
	ListTransactions(ctx context.Context, ownerID int64) ([]AtomicTransaction, error)

	FindPositionByHash(ctx context.Context, ownerID int64, hash string) (AtomicPosition, bool, error)
	InsertPosition(ctx context.Context, pos AtomicPosition) (AtomicPosition, error)
	AppendPositionSource(ctx context.Context, id int64, sourceDoc string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed ingest repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) FindTransactionByHash(ctx context.Context, ownerID int64, hash string) (AtomicTransaction, bool, error) {
	var t AtomicTransaction
	var amount string
	err := r.db.QueryRow(ctx, `SELECT id, owner_id, date, amount::text, direction, description, reference, currency, dedup_hash, source_documents, created_at
FROM atomic_transactions WHERE owner_id=$1 AND dedup_hash=$2`, ownerID, hash).
		Scan(&t.ID, &t.OwnerID, &t.Date, &amount, &t.Direction, &t.Description, &t.Reference, &t.Currency, &t.DedupHash, &t.SourceDocuments, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AtomicTransaction{}, false, nil
		}
		return AtomicTransaction{}, false, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return AtomicTransaction{}, false, err
	}
	return t, true, nil
}

func (r *repository) InsertTransaction(ctx context.Context, tx AtomicTransaction) (AtomicTransaction, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO atomic_transactions (owner_id, date, amount, direction, description, reference, currency, dedup_hash, source_documents)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		tx.OwnerID, tx.Date, tx.Amount.StringFixed(2), tx.Direction, tx.Description, tx.Reference, tx.Currency, tx.DedupHash, tx.SourceDocuments).
		Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return AtomicTransaction{}, ErrFingerprintExists
		}
		return AtomicTransaction{}, err
	}
	return tx, nil
}

func (r *repository) AppendTransactionSource(ctx context.Context, id int64, sourceDoc string) error {
	_, err := r.db.Exec(ctx, `UPDATE atomic_transactions
SET source_documents = array_append(source_documents, $2)
WHERE id=$1 AND NOT ($2 = ANY(source_documents))`, id, sourceDoc)
	return err
}

func (r *repository) ListTransactions(ctx context.Context, ownerID int64) ([]AtomicTransaction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, date, amount::text, direction, description, reference, currency, dedup_hash, source_documents, created_at
FROM atomic_transactions WHERE owner_id=$1 ORDER BY date DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []AtomicTransaction
	for rows.Next() {
		var t AtomicTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Date, &amount, &t.Direction, &t.Description, &t.Reference, &t.Currency, &t.DedupHash, &t.SourceDocuments, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *repository) FindPositionByHash(ctx context.Context, ownerID int64, hash string) (AtomicPosition, bool, error) {
	var p AtomicPosition
	var qty, mv string
	err := r.db.QueryRow(ctx, `SELECT id, owner_id, snapshot_date, asset_identifier, broker, quantity::text, market_value::text, currency, dedup_hash, source_documents, created_at
FROM atomic_positions WHERE owner_id=$1 AND dedup_hash=$2`, ownerID, hash).
		Scan(&p.ID, &p.OwnerID, &p.SnapshotDate, &p.AssetIdentifier, &p.Broker, &qty, &mv, &p.Currency, &p.DedupHash, &p.SourceDocuments, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AtomicPosition{}, false, nil
		}
		return AtomicPosition{}, false, err
	}
	if p.Quantity, err = decimal.NewFromString(qty); err != nil {
		return AtomicPosition{}, false, err
	}
	if p.MarketValue, err = decimal.NewFromString(mv); err != nil {
		return AtomicPosition{}, false, err
	}
	return p, true, nil
}

func (r *repository) InsertPosition(ctx context.Context, pos AtomicPosition) (AtomicPosition, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO atomic_positions (owner_id, snapshot_date, asset_identifier, broker, quantity, market_value, currency, dedup_hash, source_documents)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		pos.OwnerID, pos.SnapshotDate, pos.AssetIdentifier, pos.Broker, pos.Quantity.String(), pos.MarketValue.StringFixed(2), pos.Currency, pos.DedupHash, pos.SourceDocuments).
		Scan(&pos.ID, &pos.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return AtomicPosition{}, ErrFingerprintExists
		}
		return AtomicPosition{}, err
	}
	return pos, nil
}

func (r *repository) AppendPositionSource(ctx context.Context, id int64, sourceDoc string) error {
	_, err := r.db.Exec(ctx, `UPDATE atomic_positions
SET source_documents = array_append(source_documents, $2)
WHERE id=$1 AND NOT ($2 = ANY(source_documents))`, id, sourceDoc)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
