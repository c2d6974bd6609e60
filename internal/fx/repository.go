package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository stores rates in fx_rates and serves them as a RateSource.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed rate store.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetRate loads the rate for the pair on the given calendar date.
func (r *Repository) GetRate(ctx context.Context, base, quote string, date time.Time) (decimal.Decimal, error) {
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	var raw string
	err := r.db.QueryRow(ctx, `SELECT rate::text FROM fx_rates
WHERE base_currency=$1 AND quote_currency=$2 AND rate_date=$3`,
		base, quote, date).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrRateNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(raw)
}

// UpsertRate records or replaces the rate for a pair and date.
func (r *Repository) UpsertRate(ctx context.Context, rate Rate) error {
	_, err := r.db.Exec(ctx, `INSERT INTO fx_rates (base_currency, quote_currency, rate_date, rate)
VALUES ($1,$2,$3,$4)
ON CONFLICT (base_currency, quote_currency, rate_date) DO UPDATE SET rate=EXCLUDED.rate`,
		rate.Base, rate.Quote, rate.Date, rate.Rate.String())
	return err
}
