package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the maximum permitted debit/credit discrepancy on a
// posted entry, in currency units.
var BalanceTolerance = decimal.New(1, -2) // 0.01

// ValidateBalance checks the double-entry invariant over a set of lines.
// It is a pure function; callers decide when to enforce it.
func ValidateBalance(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("ledger: line %d amount must be positive", idx)
		}
		switch line.Direction {
		case DirectionDebit:
			debit = debit.Add(line.Amount)
		case DirectionCredit:
			credit = credit.Add(line.Amount)
		default:
			return fmt.Errorf("ledger: line %d has unknown direction %q", idx, line.Direction)
		}
	}
	if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
		return ErrUnbalanced
	}
	return nil
}

// ValidateFx ensures every line in a currency other than base carries a rate.
func ValidateFx(lines []JournalLine, baseCurrency string) error {
	for idx, line := range lines {
		if line.Currency == "" || line.Currency == baseCurrency {
			continue
		}
		if line.FxRate == nil || !line.FxRate.IsPositive() {
			return fmt.Errorf("ledger: line %d (%s): %w", idx, line.Currency, ErrMissingFxRate)
		}
	}
	return nil
}

// signedNet nets a debit/credit pair onto the account's natural balance
// sign. ASSET and EXPENSE accounts grow with debits, the rest with credits.
func signedNet(accType AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if accType == AccountTypeAsset || accType == AccountTypeExpense {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
