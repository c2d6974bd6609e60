package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/fx"
)

// RateStore persists imported rates.
type RateStore interface {
	UpsertRate(ctx context.Context, rate fx.Rate) error
}

// FXImportMode enumerates supported execution strategies.
type FXImportMode string

const (
	// FXImportModeDry parses and reports without applying changes.
	FXImportModeDry FXImportMode = "dry"
	// FXImportModeApply persists the parsed rates.
	FXImportModeApply FXImportMode = "apply"
)

// FXImportOptions configures the import command execution.
type FXImportOptions struct {
	Mode       FXImportMode
	Source     io.Reader
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXImportSummary captures the structured reporting outcome.
type FXImportSummary struct {
	Mode    FXImportMode `json:"mode"`
	Parsed  int          `json:"parsed"`
	Applied int          `json:"applied"`
	Skipped []string     `json:"skipped,omitempty"`
}

// FXOpsCLI offers operational helpers to manage the FX rate table.
type FXOpsCLI struct {
	store RateStore
}

// NewFXOpsCLI constructs a new helper instance.
func NewFXOpsCLI(store RateStore) *FXOpsCLI {
	return &FXOpsCLI{store: store}
}

// ImportCommand reads daily rates from CSV and loads them into the rate
// table. Expected columns: date,base,quote,rate with date as YYYY-MM-DD.
func (c *FXOpsCLI) ImportCommand(ctx context.Context, opts FXImportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Mode == "" {
		opts.Mode = FXImportModeDry
	}
	mode := FXImportMode(strings.ToLower(string(opts.Mode)))
	switch mode {
	case FXImportModeDry, FXImportModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "fx import: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return 1
	}
	if opts.Source == nil {
		fmt.Fprintln(opts.Stderr, "fx import: a CSV source is required")
		return 1
	}

	rates, skipped, err := parseRates(opts.Source)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return 1
	}

	summary := FXImportSummary{Mode: mode, Parsed: len(rates), Skipped: skipped}
	if mode == FXImportModeApply {
		if c == nil || c.store == nil {
			fmt.Fprintln(opts.Stderr, "fx import: rate store not configured")
			return 1
		}
		for _, rate := range rates {
			if err := c.store.UpsertRate(ctx, rate); err != nil {
				fmt.Fprintf(opts.Stderr, "fx import: upsert %s/%s %s: %v\n",
					rate.Base, rate.Quote, rate.Date.Format("2006-01-02"), err)
				return 1
			}
			summary.Applied++
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "fx import: encode summary: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "parsed %d rates", summary.Parsed)
	if mode == FXImportModeApply {
		fmt.Fprintf(opts.Stdout, ", applied %d", summary.Applied)
	}
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(opts.Stdout, ", skipped %d bad rows", len(summary.Skipped))
	}
	fmt.Fprintln(opts.Stdout)
	return 0
}

func parseRates(source io.Reader) ([]fx.Rate, []string, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	var rates []fx.Rate
	var skipped []string
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(record[0], "date") {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: bad date %q", line, record[0]))
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil || !value.IsPositive() {
			skipped = append(skipped, fmt.Sprintf("line %d: bad rate %q", line, record[3]))
			continue
		}
		base := strings.ToUpper(strings.TrimSpace(record[1]))
		quote := strings.ToUpper(strings.TrimSpace(record[2]))
		if len(base) != 3 || len(quote) != 3 || base == quote {
			skipped = append(skipped, fmt.Sprintf("line %d: bad pair %s/%s", line, base, quote))
			continue
		}
		rates = append(rates, fx.Rate{Base: base, Quote: quote, Date: date, Rate: value})
	}
	return rates, skipped, nil
}
