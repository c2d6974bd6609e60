package checks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/ingest"
)

// Anomaly detector parameters. The multipliers come from the product's
// original rules and are intentionally not derived from data.
const (
	// LargeAmountMultiplier flags amounts above this multiple of the
	// trailing average.
	LargeAmountMultiplier = 10
	// WeekendLargeMultiplier is the lower bar applied to weekend spend.
	WeekendLargeMultiplier = 5
	// FrequencySpikeCount is the same-day same-merchant count above which
	// a spike fires.
	FrequencySpikeCount = 5
	// AverageLookbackDays is the window for trailing averages.
	AverageLookbackDays = 30
	// MerchantLookbackDays is the window consulted for known merchants.
	MerchantLookbackDays = 90
)

// DetectAnomalies evaluates one transaction against the owner's history for
// the same direction. History must not contain the transaction itself.
// Detectors that cannot compute their baseline (no usable history) degrade
// to no finding of that kind rather than failing.
func DetectAnomalies(tx TxnView, history []TxnView) []Finding {
	var findings []Finding

	avg, ok := trailingAverage(tx, history, AverageLookbackDays)
	if ok && avg.IsPositive() {
		ratio := tx.Amount.Div(avg)
		if ratio.GreaterThanOrEqual(decimal.NewFromInt(LargeAmountMultiplier)) {
			findings = append(findings, anomalyFinding(tx, AnomalyLargeAmount, SeverityHigh, map[string]any{
				"amount":           tx.Amount.StringFixed(2),
				"trailing_average": avg.StringFixed(2),
			}))
		}
		if isWeekend(tx.Date) && ratio.GreaterThan(decimal.NewFromInt(WeekendLargeMultiplier)) {
			findings = append(findings, anomalyFinding(tx, AnomalyWeekendLarge, SeverityMedium, map[string]any{
				"amount":           tx.Amount.StringFixed(2),
				"trailing_average": avg.StringFixed(2),
				"weekday":          tx.Date.Weekday().String(),
			}))
		}
	}

	token := ingest.LeadingToken(tx.Description)
	if token != "" {
		sameDay := 0
		seenToken := false
		anyRecent := false
		for _, h := range history {
			if h.Direction != tx.Direction {
				continue
			}
			age := tx.Date.Sub(h.Date)
			if age < 0 {
				continue
			}
			if age <= time.Duration(MerchantLookbackDays)*24*time.Hour {
				anyRecent = true
				if ingest.LeadingToken(h.Description) == token {
					seenToken = true
					if sameCalendarDay(h.Date, tx.Date) {
						sameDay++
					}
				}
			}
		}
		if sameDay+1 > FrequencySpikeCount {
			findings = append(findings, anomalyFinding(tx, AnomalyFrequencySpike, SeverityMedium, map[string]any{
				"token":          token,
				"same_day_count": sameDay + 1,
			}))
		}
		// A brand-new ledger would flag every transaction; only report new
		// merchants once some history exists to compare against.
		if anyRecent && !seenToken {
			findings = append(findings, anomalyFinding(tx, AnomalyNewMerchant, SeverityLow, map[string]any{
				"token": token,
			}))
		}
	}

	return findings
}

func anomalyFinding(tx TxnView, kind AnomalyKind, severity Severity, details map[string]any) Finding {
	details["kind"] = string(kind)
	return Finding{
		Type:           CheckTypeAnomaly,
		Severity:       severity,
		TransactionIDs: []int64{tx.ID},
		Details:        details,
	}
}

// trailingAverage computes the mean amount of same-direction history inside
// the lookback window ending at the transaction date. ok is false when the
// window holds no usable transactions.
func trailingAverage(tx TxnView, history []TxnView, lookbackDays int) (decimal.Decimal, bool) {
	cutoff := tx.Date.AddDate(0, 0, -lookbackDays)
	sum := decimal.Zero
	count := 0
	for _, h := range history {
		if h.Direction != tx.Direction {
			continue
		}
		if h.Date.Before(cutoff) || h.Date.After(tx.Date) {
			continue
		}
		sum = sum.Add(h.Amount)
		count++
	}
	if count == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(count))), true
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
