package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/finbook/finbook/internal/fx"
)

// FXRateOptions configures a single rate lookup.
type FXRateOptions struct {
	Base       string
	Quote      string
	Date       time.Time
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXRateResult is the structured lookup outcome.
type FXRateResult struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Date  string `json:"date"`
	Rate  string `json:"rate"`
}

// FXRateCommand resolves one conversion rate through the source, usually
// the Redis-backed cache in front of the rate table, and prints it.
func FXRateCommand(ctx context.Context, source fx.RateSource, opts FXRateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if source == nil {
		fmt.Fprintln(opts.Stderr, "fx rate: rate source not configured")
		return 1
	}
	base := strings.ToUpper(strings.TrimSpace(opts.Base))
	quote := strings.ToUpper(strings.TrimSpace(opts.Quote))
	if len(base) != 3 || len(quote) != 3 {
		fmt.Fprintln(opts.Stderr, "fx rate: base and quote must be 3-letter currency codes")
		return 1
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	rate, err := source.GetRate(ctx, base, quote, date)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx rate: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		result := FXRateResult{Base: base, Quote: quote, Date: date.Format("2006-01-02"), Rate: rate.String()}
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			fmt.Fprintf(opts.Stderr, "fx rate: encode result: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "%s/%s %s = %s\n", base, quote, date.Format("2006-01-02"), rate.String())
	return 0
}
