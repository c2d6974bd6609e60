package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finbook/finbook/internal/ingest"
)

// Finding is a detector result not yet persisted as a Check.
type Finding struct {
	Type           CheckType
	Severity       Severity
	TransactionIDs []int64
	Details        map[string]any
}

// DetectDuplicates groups transactions by exact business identity and emits
// one finding per group larger than one. Pure function over its input.
func DetectDuplicates(txs []TxnView) []Finding {
	groups := make(map[string][]int64)
	for _, tx := range txs {
		key := strings.Join([]string{
			tx.Date.Format("2006-01-02"),
			ingest.NormalizeDescription(tx.Description),
			tx.Amount.StringFixed(2),
			string(tx.Direction),
		}, "|")
		groups[key] = append(groups[key], tx.ID)
	}

	keys := make([]string, 0, len(groups))
	for key, ids := range groups {
		if len(ids) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	findings := make([]Finding, 0, len(keys))
	for _, key := range keys {
		ids := groups[key]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		findings = append(findings, Finding{
			Type:           CheckTypeDuplicate,
			Severity:       SeverityMedium,
			TransactionIDs: ids,
			Details: map[string]any{
				"group_key": key,
				"count":     fmt.Sprintf("%d", len(ids)),
			},
		})
	}
	return findings
}
