package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/finbook/finbook/internal/shared"
)

// AuditPort records ledger mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service owns the journal entry lifecycle and the double-entry invariants.
type Service struct {
	repo         Repository
	audit        AuditPort
	baseCurrency string
	now          func() time.Time
}

// NewService wires the ledger service.
func NewService(repo Repository, audit AuditPort, baseCurrency string) *Service {
	return &Service{repo: repo, audit: audit, baseCurrency: baseCurrency, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListEntries returns the owner's journal entries.
func (s *Service) ListEntries(ctx context.Context, ownerID int64) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, ownerID)
}

// CreateDraft stores a new DRAFT entry. Line invariants are not enforced yet;
// a draft may be built up incrementally and is only checked on Post.
func (s *Service) CreateDraft(ctx context.Context, input EntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertEntry(ctx, input, EntryStatusDraft)
		if err != nil {
			return err
		}
		lines := make([]JournalLine, 0, len(input.Lines))
		for _, in := range input.Lines {
			lines = append(lines, in.toLine(inserted.ID, s.now()))
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Post transitions a DRAFT entry to POSTED after enforcing the balance and
// FX invariants. The entry row is locked for the duration of the transition.
func (s *Service) Post(ctx context.Context, ownerID, entryID, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryForUpdate(ctx, ownerID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrNotDraft
		}
		if err := ValidateBalance(lines); err != nil {
			return err
		}
		if err := ValidateFx(lines, s.baseCurrency); err != nil {
			return err
		}
		if err := tx.UpdateEntryStatus(ctx, current.ID, EntryStatusPosted); err != nil {
			return err
		}
		current.Status = EntryStatusPosted
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, actorID, "journal.post", entry.ID, map[string]any{"source": string(entry.Source)})
	return entry, nil
}

// Void marks a POSTED entry VOID and posts a mirrored reversal entry in the
// same transaction, preserving the audit trail instead of mutating history.
// The reversal is returned alongside the voided entry.
func (s *Service) Void(ctx context.Context, ownerID int64, input VoidInput) (JournalEntry, JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, JournalEntry{}, errors.New("ledger: entry id required")
	}
	var voided, reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryForUpdate(ctx, ownerID, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusPosted {
			return ErrNotPosted
		}
		posting := EntryInput{
			OwnerID: current.OwnerID,
			Date:    current.Date,
			Memo:    reversalMemo(current.Memo, current.ID),
			Source:  SourceSystem,
		}
		inserted, err := tx.InsertEntry(ctx, posting, EntryStatusPosted)
		if err != nil {
			return err
		}
		revLines := reverseLines(inserted.ID, lines, s.now())
		if err := tx.InsertLines(ctx, inserted.ID, revLines); err != nil {
			return err
		}
		if err := tx.SetVoid(ctx, current.ID, input.Reason, inserted.ID); err != nil {
			return err
		}
		current.Status = EntryStatusVoid
		current.VoidReason = &input.Reason
		current.ReversalEntryID = &inserted.ID
		current.Lines = lines
		inserted.Lines = revLines
		voided = current
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, JournalEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "journal.void", voided.ID, map[string]any{
		"reason":      input.Reason,
		"reversal_id": reversal.ID,
	})
	return voided, reversal, nil
}

// Delete removes an entry that never left DRAFT.
func (s *Service) Delete(ctx context.Context, ownerID, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, _, err := tx.GetEntryForUpdate(ctx, ownerID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrNotDraft
		}
		return tx.DeleteEntry(ctx, current.ID)
	})
}

// CreateAccount stores a new chart-of-accounts node.
func (s *Service) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	if acc.OwnerID == 0 || acc.Name == "" {
		return Account{}, errors.New("ledger: account owner and name required")
	}
	switch acc.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
	default:
		return Account{}, fmt.Errorf("ledger: unknown account type %q", acc.Type)
	}
	acc.IsActive = true
	return s.repo.InsertAccount(ctx, acc)
}

// DeleteAccount removes an account only while no journal lines reference
// it. Accounts with history are refused; retire those with
// DeactivateAccount.
func (s *Service) DeleteAccount(ctx context.Context, ownerID, accountID int64) error {
	n, err := s.repo.AccountLineCount(ctx, accountID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAccountHasLines
	}
	return s.repo.DeleteAccount(ctx, ownerID, accountID)
}

// DeactivateAccount retires an account while keeping its lines queryable
// for balances and history.
func (s *Service) DeactivateAccount(ctx context.Context, ownerID, accountID int64) error {
	return s.repo.DeactivateAccount(ctx, ownerID, accountID)
}

// CalculateAccountBalances aggregates signed posted line amounts for the
// given accounts. An empty account list yields an empty map without touching
// the ledger.
func (s *Service) CalculateAccountBalances(ctx context.Context, ownerID int64, accounts []Account) (map[int64]decimal.Decimal, error) {
	balances := make(map[int64]decimal.Decimal, len(accounts))
	if len(accounts) == 0 {
		return balances, nil
	}
	ids := make([]int64, 0, len(accounts))
	types := make(map[int64]AccountType, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
		types[acc.ID] = acc.Type
		balances[acc.ID] = decimal.Zero
	}
	sums, err := s.repo.SumPostedLinesByAccount(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	for _, sum := range sums {
		balances[sum.AccountID] = signedNet(types[sum.AccountID], sum.Debit, sum.Credit)
	}
	return balances, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func reverseLines(entryID int64, lines []JournalLine, ts time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		dir := DirectionDebit
		if line.Direction == DirectionDebit {
			dir = DirectionCredit
		}
		out = append(out, JournalLine{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Direction: dir,
			Amount:    line.Amount,
			Currency:  line.Currency,
			FxRate:    line.FxRate,
			CreatedAt: ts,
		})
	}
	return out
}

func reversalMemo(memo string, entryID int64) string {
	if memo != "" {
		return fmt.Sprintf("Reversal of: %s", memo)
	}
	return fmt.Sprintf("Reversal of JE %d", entryID)
}
