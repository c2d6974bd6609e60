package recon

import (
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/ingest"
)

// Matching thresholds and weights. The 90/60 routing values come from the
// product's original rules; treat them as configuration constants, not
// tunables to infer from.
const (
	// AutoAcceptThreshold routes a candidate straight to AUTO_ACCEPTED.
	AutoAcceptThreshold = 90
	// ReviewThreshold routes a candidate to PENDING_REVIEW. Below it no
	// match is recorded at all.
	ReviewThreshold = 60

	// DateWindowDays bounds the candidate search around the transaction date.
	DateWindowDays = 3

	dateWeight        = 40
	amountWeight      = 50
	descriptionWeight = 10
)

// AmountTolerance is the permitted deviation between a transaction amount
// and a candidate entry's net amount.
var AmountTolerance = decimal.New(1, -2) // 0.01

// Candidate is a posted journal entry considered for one transaction.
type Candidate struct {
	EntryID   int64
	EntryDate time.Time
	NetAmount decimal.Decimal
	Memo      string
}

// scoreCandidate rates a candidate on independent axes and sums them into a
// 0-100 composite. The breakdown is persisted for auditability.
func scoreCandidate(txDate time.Time, txAmount decimal.Decimal, txDescription string, cand Candidate) (int, map[string]int) {
	breakdown := map[string]int{
		"date":        dateScore(txDate, cand.EntryDate),
		"amount":      amountScore(txAmount, cand.NetAmount),
		"description": descriptionScore(txDescription, cand.Memo),
	}
	total := 0
	for _, v := range breakdown {
		total += v
	}
	return total, breakdown
}

// dateScore awards the full weight for a same-day match and decays by ten
// points per day of distance inside the window.
func dateScore(txDate, entryDate time.Time) int {
	days := daysApart(txDate, entryDate)
	if days > DateWindowDays {
		return 0
	}
	score := dateWeight - days*10
	if score < 0 {
		return 0
	}
	return score
}

// amountScore distinguishes exact equality from tolerance-level closeness.
func amountScore(txAmount, netAmount decimal.Decimal) int {
	if txAmount.Equal(netAmount) {
		return amountWeight
	}
	if txAmount.Sub(netAmount).Abs().LessThanOrEqual(AmountTolerance) {
		return amountWeight - 15
	}
	return 0
}

// descriptionScore scales the weight by normalized levenshtein similarity.
func descriptionScore(txDescription, memo string) int {
	a := ingest.NormalizeDescription(txDescription)
	b := ingest.NormalizeDescription(memo)
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	similarity := 1 - float64(dist)/float64(longest)
	if similarity < 0 {
		similarity = 0
	}
	return int(similarity * descriptionWeight)
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
