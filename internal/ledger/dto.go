package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput describes a journal line for entry construction.
type LineInput struct {
	AccountID int64
	Direction LineDirection
	Amount    decimal.Decimal
	Currency  string
	FxRate    *decimal.Decimal
}

// EntryInput groups fields required to create a draft journal entry.
// Drafts may start with no lines; posting enforces the full invariants.
type EntryInput struct {
	OwnerID int64
	Date    time.Time
	Memo    string
	Source  SourceType
	Lines   []LineInput
}

// Validate ensures entry input meets minimum criteria for a draft.
func (in EntryInput) Validate() error {
	if in.OwnerID == 0 {
		return errors.New("ledger: owner required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	switch in.Source {
	case SourceManual, SourceBankStatement, SourceSystem:
	default:
		return errors.New("ledger: unknown source type")
	}
	return nil
}

// VoidInput wraps parameters for voiding a posted entry.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

func (in LineInput) toLine(entryID int64, ts time.Time) JournalLine {
	return JournalLine{
		EntryID:   entryID,
		AccountID: in.AccountID,
		Direction: in.Direction,
		Amount:    in.Amount,
		Currency:  in.Currency,
		FxRate:    in.FxRate,
		CreatedAt: ts,
	}
}
