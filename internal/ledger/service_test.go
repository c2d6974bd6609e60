package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	internalShared "github.com/finbook/finbook/internal/shared"
)

type memoryLedgerRepo struct {
	accounts   map[int64]Account
	entries    map[int64]JournalEntry
	lines      map[int64][]JournalLine
	nextID     int64
	nextLineID int64
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		accounts: make(map[int64]Account),
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]JournalLine),
	}
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryLedgerTx{repo: r})
}

func (r *memoryLedgerRepo) GetAccount(ctx context.Context, ownerID, accountID int64) (Account, error) {
	acc, ok := r.accounts[accountID]
	if !ok || acc.OwnerID != ownerID {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (r *memoryLedgerRepo) ListAccounts(ctx context.Context, ownerID int64) ([]Account, error) {
	var out []Account
	for _, acc := range r.accounts {
		if acc.OwnerID == ownerID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	r.nextID++
	acc.ID = r.nextID
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = acc.CreatedAt
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *memoryLedgerRepo) DeactivateAccount(ctx context.Context, ownerID, accountID int64) error {
	acc, ok := r.accounts[accountID]
	if !ok || acc.OwnerID != ownerID {
		return ErrAccountNotFound
	}
	acc.IsActive = false
	r.accounts[accountID] = acc
	return nil
}

func (r *memoryLedgerRepo) AccountLineCount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	for _, lines := range r.lines {
		for _, line := range lines {
			if line.AccountID == accountID {
				n++
			}
		}
	}
	return n, nil
}

func (r *memoryLedgerRepo) DeleteAccount(ctx context.Context, ownerID, accountID int64) error {
	acc, ok := r.accounts[accountID]
	if !ok || acc.OwnerID != ownerID {
		return ErrAccountNotFound
	}
	delete(r.accounts, accountID)
	return nil
}

func (r *memoryLedgerRepo) GetEntry(ctx context.Context, ownerID, entryID int64) (JournalEntry, error) {
	entry, ok := r.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return JournalEntry{}, ErrEntryNotFound
	}
	entry.Lines = append([]JournalLine(nil), r.lines[entryID]...)
	return entry, nil
}

func (r *memoryLedgerRepo) ListEntries(ctx context.Context, ownerID int64) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, entry := range r.entries {
		if entry.OwnerID == ownerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) SumPostedLinesByAccount(ctx context.Context, ownerID int64, accountIDs []int64) ([]AccountLineSum, error) {
	wanted := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}
	sums := make(map[int64]*AccountLineSum)
	for entryID, lines := range r.lines {
		entry := r.entries[entryID]
		if entry.OwnerID != ownerID {
			continue
		}
		if entry.Status != EntryStatusPosted && entry.Status != EntryStatusReconciled {
			continue
		}
		for _, line := range lines {
			if !wanted[line.AccountID] {
				continue
			}
			sum, ok := sums[line.AccountID]
			if !ok {
				sum = &AccountLineSum{AccountID: line.AccountID}
				sums[line.AccountID] = sum
			}
			if line.Direction == DirectionDebit {
				sum.Debit = sum.Debit.Add(line.Amount)
			} else {
				sum.Credit = sum.Credit.Add(line.Amount)
			}
		}
	}
	var out []AccountLineSum
	for _, sum := range sums {
		out = append(out, *sum)
	}
	return out, nil
}

func (t *memoryLedgerTx) InsertEntry(ctx context.Context, in EntryInput, status EntryStatus) (JournalEntry, error) {
	t.repo.nextID++
	entry := JournalEntry{
		ID:        t.repo.nextID,
		OwnerID:   in.OwnerID,
		Date:      in.Date,
		Memo:      in.Memo,
		Source:    in.Source,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	t.repo.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryLedgerTx) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		t.repo.nextLineID++
		line.ID = t.repo.nextLineID
		line.EntryID = entryID
		t.repo.lines[entryID] = append(t.repo.lines[entryID], line)
	}
	return nil
}

func (t *memoryLedgerTx) GetEntryForUpdate(ctx context.Context, ownerID, entryID int64) (JournalEntry, []JournalLine, error) {
	entry, ok := t.repo.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return JournalEntry{}, nil, ErrEntryNotFound
	}
	return entry, append([]JournalLine(nil), t.repo.lines[entryID]...), nil
}

func (t *memoryLedgerTx) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error {
	entry, ok := t.repo.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = status
	t.repo.entries[entryID] = entry
	return nil
}

func (t *memoryLedgerTx) SetVoid(ctx context.Context, entryID int64, reason string, reversalEntryID int64) error {
	entry, ok := t.repo.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = EntryStatusVoid
	entry.VoidReason = &reason
	entry.ReversalEntryID = &reversalEntryID
	t.repo.entries[entryID] = entry
	return nil
}

func (t *memoryLedgerTx) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, ok := t.repo.entries[entryID]; !ok {
		return ErrEntryNotFound
	}
	delete(t.repo.entries, entryID)
	delete(t.repo.lines, entryID)
	return nil
}

type recordingAudit struct {
	logs []internalShared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func balancedInput(ownerID int64) EntryInput {
	return EntryInput{
		OwnerID: ownerID,
		Date:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Memo:    "Groceries",
		Source:  SourceManual,
		Lines: []LineInput{
			{AccountID: 1, Direction: DirectionDebit, Amount: dec("100.00"), Currency: "SGD"},
			{AccountID: 2, Direction: DirectionCredit, Amount: dec("100.00"), Currency: "SGD"},
		},
	}
}

func TestPostBalancedEntry(t *testing.T) {
	repo := newMemoryLedgerRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit, "SGD")

	draft, err := svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, draft.Status)

	posted, err := svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, EntryStatusPosted, posted.Status)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "journal.post", audit.logs[0].Action)
}

func TestPostUnbalancedEntryFails(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	input := balancedInput(7)
	input.Lines[1].Amount = dec("90.00")
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.ErrorIs(t, err, ErrUnbalanced)

	stored, err := repo.GetEntry(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, stored.Status)
}

func TestPostWithinTolerance(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	input := balancedInput(7)
	input.Lines[1].Amount = dec("99.99")
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)
}

func TestPostSingleLineFails(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	input := balancedInput(7)
	input.Lines = input.Lines[:1]
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestPostForeignCurrencyRequiresRate(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	input := balancedInput(7)
	input.Lines[0].Currency = "USD"
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.ErrorIs(t, err, ErrMissingFxRate)

	rate := dec("1.35")
	input = balancedInput(7)
	input.Lines[0].Currency = "USD"
	input.Lines[0].FxRate = &rate
	draft, err = svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)
}

func TestPostNonDraftFails(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	draft, err := svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestVoidPostsReversal(t *testing.T) {
	repo := newMemoryLedgerRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit, "SGD")

	draft, err := svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)

	voided, reversal, err := svc.Void(context.Background(), 7, VoidInput{EntryID: posted.ID, ActorID: 7, Reason: "duplicate"})
	require.NoError(t, err)
	require.Equal(t, EntryStatusVoid, voided.Status)
	require.NotNil(t, voided.ReversalEntryID)
	require.Equal(t, reversal.ID, *voided.ReversalEntryID)

	require.Equal(t, EntryStatusPosted, reversal.Status)
	require.Equal(t, SourceSystem, reversal.Source)
	require.Len(t, reversal.Lines, 2)
	for i, line := range reversal.Lines {
		orig := voided.Lines[i]
		require.True(t, line.Amount.Equal(orig.Amount))
		require.NotEqual(t, orig.Direction, line.Direction)
		require.Equal(t, orig.AccountID, line.AccountID)
	}
}

func TestVoidTwiceFails(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	draft, err := svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)
	_, _, err = svc.Void(context.Background(), 7, VoidInput{EntryID: posted.ID, ActorID: 7, Reason: "duplicate"})
	require.NoError(t, err)

	_, _, err = svc.Void(context.Background(), 7, VoidInput{EntryID: posted.ID, ActorID: 7, Reason: "again"})
	require.ErrorIs(t, err, ErrNotPosted)
}

func TestDeleteDraftOnly(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	draft, err := svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), 7, draft.ID))
	_, err = repo.GetEntry(context.Background(), 7, draft.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)

	draft, err = svc.CreateDraft(context.Background(), balancedInput(7))
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(context.Background(), 7, draft.ID), ErrNotDraft)
}

func TestDeleteAccountWithLines(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	acc, err := svc.CreateAccount(context.Background(), Account{OwnerID: 7, Name: "Cash", Type: AccountTypeAsset, Currency: "SGD"})
	require.NoError(t, err)

	input := balancedInput(7)
	input.Lines[0].AccountID = acc.ID
	_, err = svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteAccount(context.Background(), 7, acc.ID), ErrAccountHasLines)
}

func TestDeactivateAccountKeepsHistory(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	acc, err := svc.CreateAccount(context.Background(), Account{OwnerID: 7, Name: "Cash", Type: AccountTypeAsset, Currency: "SGD"})
	require.NoError(t, err)

	input := balancedInput(7)
	input.Lines[0].AccountID = acc.ID
	_, err = svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAccount(context.Background(), 7, acc.ID))

	retired, err := repo.GetAccount(context.Background(), 7, acc.ID)
	require.NoError(t, err)
	require.False(t, retired.IsActive)

	n, err := repo.AccountLineCount(context.Background(), acc.ID)
	require.NoError(t, err)
	require.Positive(t, n)

	require.ErrorIs(t, svc.DeactivateAccount(context.Background(), 9, acc.ID), ErrAccountNotFound)
}

func TestCalculateAccountBalances(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	cash, err := svc.CreateAccount(context.Background(), Account{OwnerID: 7, Name: "Cash", Type: AccountTypeAsset, Currency: "SGD"})
	require.NoError(t, err)
	income, err := svc.CreateAccount(context.Background(), Account{OwnerID: 7, Name: "Salary", Type: AccountTypeIncome, Currency: "SGD"})
	require.NoError(t, err)

	input := EntryInput{
		OwnerID: 7,
		Date:    time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Memo:    "Salary",
		Source:  SourceManual,
		Lines: []LineInput{
			{AccountID: cash.ID, Direction: DirectionDebit, Amount: dec("5000.00"), Currency: "SGD"},
			{AccountID: income.ID, Direction: DirectionCredit, Amount: dec("5000.00"), Currency: "SGD"},
		},
	}
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), 7, draft.ID, 7)
	require.NoError(t, err)

	// Drafts never contribute to balances.
	_, err = svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	balances, err := svc.CalculateAccountBalances(context.Background(), 7, []Account{cash, income})
	require.NoError(t, err)
	require.True(t, balances[cash.ID].Equal(dec("5000.00")), "got %s", balances[cash.ID])
	require.True(t, balances[income.ID].Equal(dec("5000.00")), "got %s", balances[income.ID])
}

func TestCalculateAccountBalancesEmptyInput(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, "SGD")

	balances, err := svc.CalculateAccountBalances(context.Background(), 7, nil)
	require.NoError(t, err)
	require.Empty(t, balances)
}
