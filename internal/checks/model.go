package checks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/ingest"
)

// CheckType enumerates detector families.
type CheckType string

const (
	CheckTypeDuplicate    CheckType = "DUPLICATE"
	CheckTypeTransferPair CheckType = "TRANSFER_PAIR"
	CheckTypeAnomaly      CheckType = "ANOMALY"
)

// CheckStatus enumerates the review lifecycle. Resolution is terminal.
type CheckStatus string

const (
	CheckStatusPending  CheckStatus = "PENDING"
	CheckStatusApproved CheckStatus = "APPROVED"
	CheckStatusRejected CheckStatus = "REJECTED"
	CheckStatusFlagged  CheckStatus = "FLAGGED"
)

// Severity ranks a finding for the review queue.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// AnomalyKind names the individual anomaly detectors.
type AnomalyKind string

const (
	AnomalyLargeAmount    AnomalyKind = "LARGE_AMOUNT"
	AnomalyFrequencySpike AnomalyKind = "FREQUENCY_SPIKE"
	AnomalyNewMerchant    AnomalyKind = "NEW_MERCHANT"
	AnomalyWeekendLarge   AnomalyKind = "WEEKEND_LARGE"
)

// Check is one reviewable finding. Detectors only ever create these rows;
// they never mutate the transactions they inspect.
type Check struct {
	ID             int64
	OwnerID        int64
	Type           CheckType
	Status         CheckStatus
	TransactionIDs []int64
	Details        map[string]any
	Severity       Severity
	ResolutionNote *string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

// TxnView is the read-only projection of a bank transaction the detectors
// work over.
type TxnView struct {
	ID          int64
	OwnerID     int64
	AccountID   int64
	StatementID int64
	Date        time.Time
	Amount      decimal.Decimal
	Direction   ingest.Direction
	Description string
}

// Decision is a human resolution of a check.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)
