package fx

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned when no rate exists for the requested pair
// and date.
var ErrRateNotFound = errors.New("fx: rate not found")

// Rate is one quoted conversion rate valid for a calendar date.
type Rate struct {
	Base  string
	Quote string
	Date  time.Time
	Rate  decimal.Decimal
}

// RateSource resolves the conversion rate from base into quote on a given
// date. Entries in a foreign currency must carry a rate at post time, so a
// missing rate surfaces as ErrRateNotFound rather than a default.
type RateSource interface {
	GetRate(ctx context.Context, base, quote string, date time.Time) (decimal.Decimal, error)
}
