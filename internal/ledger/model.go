package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node owned by a single user.
type Account struct {
	ID        int64
	OwnerID   int64
	Name      string
	Type      AccountType
	Currency  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft      EntryStatus = "DRAFT"
	EntryStatusPosted     EntryStatus = "POSTED"
	EntryStatusReconciled EntryStatus = "RECONCILED"
	EntryStatusVoid       EntryStatus = "VOID"
)

// SourceType records where a journal entry originated.
type SourceType string

const (
	SourceManual        SourceType = "MANUAL"
	SourceBankStatement SourceType = "BANK_STATEMENT"
	SourceSystem        SourceType = "SYSTEM"
)

// LineDirection is the posting side of a journal line.
type LineDirection string

const (
	DirectionDebit  LineDirection = "DEBIT"
	DirectionCredit LineDirection = "CREDIT"
)

// JournalEntry captures posting metadata. Entries start as DRAFT and become
// immutable once POSTED; voiding marks the entry and links a reversal rather
// than rewriting history.
type JournalEntry struct {
	ID              int64
	OwnerID         int64
	Date            time.Time
	Memo            string
	Source          SourceType
	Status          EntryStatus
	VoidReason      *string
	ReversalEntryID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Amount is
// always strictly positive; the direction carries the sign.
type JournalLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Direction LineDirection
	Amount    decimal.Decimal
	Currency  string
	FxRate    *decimal.Decimal
	CreatedAt time.Time
}
