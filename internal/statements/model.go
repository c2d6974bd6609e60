package statements

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbook/finbook/internal/ingest"
)

// StatementStatus enumerates the upload/parse lifecycle.
type StatementStatus string

const (
	StatementStatusUploaded StatementStatus = "UPLOADED"
	StatementStatusParsing  StatementStatus = "PARSING"
	StatementStatusParsed   StatementStatus = "PARSED"
	StatementStatusFailed   StatementStatus = "FAILED"
)

// Statement is one uploaded bank or brokerage statement.
type Statement struct {
	ID             int64
	OwnerID        int64
	AccountID      int64
	Institution    string
	Currency       string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Status         StatementStatus
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TxStatus enumerates the matching state of a bank transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "PENDING"
	TxStatusMatched   TxStatus = "MATCHED"
	TxStatusUnmatched TxStatus = "UNMATCHED"
)

// BankTransaction is the statement-scoped transaction row the matcher and
// the consistency detectors operate on.
type BankTransaction struct {
	ID          int64
	StatementID int64
	OwnerID     int64
	AccountID   int64
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Direction   ingest.Direction
	Status      TxStatus
	Confidence  *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
