package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/finbook/finbook/internal/fx"
)

type memoryRateStore struct {
	rates []fx.Rate
}

func (s *memoryRateStore) UpsertRate(ctx context.Context, rate fx.Rate) error {
	s.rates = append(s.rates, rate)
	return nil
}

const sampleCSV = `date,base,quote,rate
2026-01-15,USD,SGD,1.3456
2026-01-16,USD,SGD,1.3460
2026-01-16,usd,sgd,not-a-number
bad-date,USD,SGD,1.34
2026-01-17,US,SGD,1.34
`

func TestImportCommandDryRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := NewFXOpsCLI(nil).ImportCommand(context.Background(), FXImportOptions{
		Mode:   FXImportModeDry,
		Source: strings.NewReader(sampleCSV),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "parsed 2 rates")
	require.Contains(t, stdout.String(), "skipped 3 bad rows")
}

func TestImportCommandApply(t *testing.T) {
	store := &memoryRateStore{}
	var stdout bytes.Buffer
	code := NewFXOpsCLI(store).ImportCommand(context.Background(), FXImportOptions{
		Mode:       FXImportModeApply,
		Source:     strings.NewReader(sampleCSV),
		JSONOutput: true,
		Stdout:     &stdout,
	})
	require.Equal(t, 0, code)
	require.Len(t, store.rates, 2)
	require.Equal(t, "USD", store.rates[0].Base)
	require.Equal(t, "SGD", store.rates[0].Quote)
	require.Contains(t, stdout.String(), `"applied":2`)
}

func TestImportCommandInvalidMode(t *testing.T) {
	var stderr bytes.Buffer
	code := NewFXOpsCLI(nil).ImportCommand(context.Background(), FXImportOptions{
		Mode:   FXImportMode("wet"),
		Source: strings.NewReader(sampleCSV),
		Stderr: &stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "invalid mode")
}

func TestImportCommandApplyWithoutStore(t *testing.T) {
	var stderr bytes.Buffer
	code := NewFXOpsCLI(nil).ImportCommand(context.Background(), FXImportOptions{
		Mode:   FXImportModeApply,
		Source: strings.NewReader(sampleCSV),
		Stderr: &stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "rate store not configured")
}

type memoryRateSource struct {
	rates map[string]decimal.Decimal
}

func (s *memoryRateSource) GetRate(ctx context.Context, base, quote string, date time.Time) (decimal.Decimal, error) {
	rate, ok := s.rates[base+quote+date.Format("2006-01-02")]
	if !ok {
		return decimal.Decimal{}, fx.ErrRateNotFound
	}
	return rate, nil
}

func TestFXRateCommand(t *testing.T) {
	source := &memoryRateSource{rates: map[string]decimal.Decimal{
		"USDSGD2026-01-15": decimal.RequireFromString("1.3456"),
	}}
	var stdout bytes.Buffer
	code := FXRateCommand(context.Background(), source, FXRateOptions{
		Base:   "usd",
		Quote:  "sgd",
		Date:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Stdout: &stdout,
	})
	require.Equal(t, 0, code)
	require.Equal(t, "USD/SGD 2026-01-15 = 1.3456\n", stdout.String())
}

func TestFXRateCommandMissingRate(t *testing.T) {
	source := &memoryRateSource{rates: map[string]decimal.Decimal{}}
	var stderr bytes.Buffer
	code := FXRateCommand(context.Background(), source, FXRateOptions{
		Base:   "USD",
		Quote:  "SGD",
		Date:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Stderr: &stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "rate not found")
}

func TestFXRateCommandBadCurrency(t *testing.T) {
	var stderr bytes.Buffer
	code := FXRateCommand(context.Background(), &memoryRateSource{}, FXRateOptions{
		Base:   "US",
		Quote:  "SGD",
		Stderr: &stderr,
	})
	require.Equal(t, 1, code)
}
