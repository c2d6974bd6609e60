package checks

import (
	"sort"
	"time"

	"github.com/finbook/finbook/internal/ingest"
)

// TransferWindowDays bounds how far apart the two legs of a transfer may be.
const TransferWindowDays = 2

// DetectTransferPairs pairs an OUT transaction in one account with an IN
// transaction of equal amount in a different account within the window.
// Each transaction participates in at most one pair.
func DetectTransferPairs(txs []TxnView) []Finding {
	var outs, ins []TxnView
	for _, tx := range txs {
		switch tx.Direction {
		case ingest.DirectionOut:
			outs = append(outs, tx)
		case ingest.DirectionIn:
			ins = append(ins, tx)
		}
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].Date.Before(outs[j].Date) })
	sort.Slice(ins, func(i, j int) bool { return ins[i].Date.Before(ins[j].Date) })

	used := make(map[int64]bool)
	var findings []Finding
	for _, out := range outs {
		for _, in := range ins {
			if used[in.ID] || in.AccountID == out.AccountID {
				continue
			}
			if !in.Amount.Equal(out.Amount) {
				continue
			}
			if daysApart(out.Date, in.Date) > TransferWindowDays {
				continue
			}
			used[in.ID] = true
			findings = append(findings, Finding{
				Type:           CheckTypeTransferPair,
				Severity:       SeverityLow,
				TransactionIDs: []int64{out.ID, in.ID},
				Details: map[string]any{
					"amount":          out.Amount.StringFixed(2),
					"out_account_id":  out.AccountID,
					"in_account_id":   in.AccountID,
					"days_apart":      daysApart(out.Date, in.Date),
					"out_description": out.Description,
					"in_description":  in.Description,
				},
			})
			break
		}
	}
	return findings
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
