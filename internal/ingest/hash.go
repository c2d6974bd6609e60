package ingest

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// TransactionFingerprint computes the dedup hash over the normalized business
// fields of a transaction. Formatting differences in the source document must
// not change the fingerprint, so every field passes through canonical form.
func TransactionFingerprint(ownerID int64, date time.Time, amount decimal.Decimal, direction Direction, description, reference string) string {
	parts := []string{
		strconv.FormatInt(ownerID, 10),
		date.Format(canonicalDate),
		CanonicalAmount(amount),
		string(direction),
		NormalizeDescription(description),
		strings.TrimSpace(reference),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// PositionFingerprint computes the dedup hash for a position snapshot.
func PositionFingerprint(ownerID int64, snapshotDate time.Time, assetIdentifier, broker string) string {
	parts := []string{
		strconv.FormatInt(ownerID, 10),
		snapshotDate.Format(canonicalDate),
		NormalizeDescription(assetIdentifier),
		NormalizeDescription(broker),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
