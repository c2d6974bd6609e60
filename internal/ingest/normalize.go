package ingest

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// NormalizeDescription canonicalises free-text descriptions before hashing
// or matching: unicode NFKC, case folding, whitespace collapsed to single
// spaces. Two statements rendering the same transaction with different
// spacing or case produce identical normalized text.
func NormalizeDescription(s string) string {
	s = norm.NFKC.String(s)
	s = foldCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalAmount renders an amount at fixed two-decimal precision.
func CanonicalAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// canonicalDate is the date layout used inside fingerprints.
const canonicalDate = "2006-01-02"

// LeadingToken returns the first token of a normalized description, used by
// the anomaly detectors to bucket merchants.
func LeadingToken(description string) string {
	fields := strings.Fields(NormalizeDescription(description))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
