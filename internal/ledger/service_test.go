package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microearn/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountStore and EntryStore.
// ---------------------------------------------------------------------------

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMockAccounts(accs ...*models.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccounts) DeductCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	if a.Coins < amount {
		return 0, pgx.ErrNoRows
	}
	a.Coins -= amount
	return a.Coins, nil
}

func (m *mockAccounts) AddCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	a.Coins += amount
	return a.Coins, nil
}

func (m *mockAccounts) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Coins
}

type mockEntries struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (m *mockEntries) CreateTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockEntries) all() []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func acct(id uuid.UUID, coins int) *models.Account {
	return &models.Account{ID: id, Coins: coins}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreditAppendsEntry(t *testing.T) {
	worker := uuid.New()
	ref := uuid.New()
	accounts := newMockAccounts(acct(worker, 100))
	entries := &mockEntries{}
	svc := NewService(accounts, entries)

	newBalance, err := svc.Credit(context.Background(), nil, worker, 10, models.LedgerEntrySubmissionReward, &ref)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if newBalance != 110 {
		t.Errorf("new balance: got %d, want 110", newBalance)
	}
	if got := accounts.balance(worker); got != 110 {
		t.Errorf("stored balance: got %d, want 110", got)
	}

	all := entries.all()
	if len(all) != 1 {
		t.Fatalf("entries: got %d, want 1", len(all))
	}
	e := all[0]
	if e.EntryType != models.LedgerEntrySubmissionReward {
		t.Errorf("entry type: got %q", e.EntryType)
	}
	if e.Amount != 10 {
		t.Errorf("amount: got %d, want 10", e.Amount)
	}
	if e.BalanceAfter == nil || *e.BalanceAfter != 110 {
		t.Error("entry should record balance_after = 110")
	}
	if e.RefID == nil || *e.RefID != ref {
		t.Error("entry should reference the originating entity")
	}
}

func TestDebitInsufficientCoins(t *testing.T) {
	buyer := uuid.New()
	accounts := newMockAccounts(acct(buyer, 30))
	entries := &mockEntries{}
	svc := NewService(accounts, entries)

	_, err := svc.Debit(context.Background(), nil, buyer, 50, models.LedgerEntryTaskEscrow, nil)
	var insufficient *InsufficientCoinsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCoinsError, got: %v", err)
	}
	if insufficient.Required != 50 || insufficient.Available != 30 {
		t.Errorf("error fields: got required=%d available=%d, want 50/30", insufficient.Required, insufficient.Available)
	}

	// Nothing observable: balance untouched, no audit entry.
	if got := accounts.balance(buyer); got != 30 {
		t.Errorf("balance after failed debit: got %d, want 30", got)
	}
	if n := len(entries.all()); n != 0 {
		t.Errorf("entries after failed debit: got %d, want 0", n)
	}
}

func TestDebitSucceedsAtExactBalance(t *testing.T) {
	buyer := uuid.New()
	accounts := newMockAccounts(acct(buyer, 50))
	entries := &mockEntries{}
	svc := NewService(accounts, entries)

	newBalance, err := svc.Debit(context.Background(), nil, buyer, 50, models.LedgerEntryTaskEscrow, nil)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if newBalance != 0 {
		t.Errorf("new balance: got %d, want 0", newBalance)
	}
}

func TestInvalidAmounts(t *testing.T) {
	id := uuid.New()
	svc := NewService(newMockAccounts(acct(id, 100)), &mockEntries{})
	ctx := context.Background()

	for _, amount := range []int{0, -5} {
		if _, err := svc.Credit(ctx, nil, id, amount, models.LedgerEntryTaskRefund, nil); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Credit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := svc.Debit(ctx, nil, id, amount, models.LedgerEntryTaskEscrow, nil); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Debit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

// TestBalanceNeverNegative drives a mixed sequence of credits and debits and
// asserts the balance is non-negative at every observation point.
func TestBalanceNeverNegative(t *testing.T) {
	id := uuid.New()
	accounts := newMockAccounts(acct(id, 25))
	svc := NewService(accounts, &mockEntries{})
	ctx := context.Background()

	ops := []struct {
		debit  bool
		amount int
	}{
		{true, 10}, {true, 20}, {false, 5}, {true, 20}, {true, 1}, {false, 100}, {true, 99},
	}
	for i, op := range ops {
		if op.debit {
			_, err := svc.Debit(ctx, nil, id, op.amount, models.LedgerEntryWithdrawalDebit, nil)
			var insufficient *InsufficientCoinsError
			if err != nil && !errors.As(err, &insufficient) {
				t.Fatalf("op %d: unexpected error: %v", i, err)
			}
		} else {
			if _, err := svc.Credit(ctx, nil, id, op.amount, models.LedgerEntryTaskRefund, nil); err != nil {
				t.Fatalf("op %d: %v", i, err)
			}
		}
		if got := accounts.balance(id); got < 0 {
			t.Fatalf("op %d: balance went negative: %d", i, got)
		}
	}
}

// TestLedgerIntegrity checks initial + SUM(signed entries) == final balance.
func TestLedgerIntegrity(t *testing.T) {
	id := uuid.New()
	const initial = 500
	accounts := newMockAccounts(acct(id, initial))
	entries := &mockEntries{}
	svc := NewService(accounts, entries)
	ctx := context.Background()

	if _, err := svc.Debit(ctx, nil, id, 200, models.LedgerEntryTaskEscrow, nil); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if _, err := svc.Credit(ctx, nil, id, 80, models.LedgerEntryTaskRefund, nil); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := svc.Debit(ctx, nil, id, 300, models.LedgerEntryWithdrawalDebit, nil); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	sum := 0
	for _, e := range entries.all() {
		if models.DebitEntry(e.EntryType) {
			sum -= e.Amount
		} else {
			sum += e.Amount
		}
	}
	if got := accounts.balance(id); got != initial+sum {
		t.Errorf("initial(%d) + ledger_sum(%d) = %d, but balance is %d", initial, sum, initial+sum, got)
	}
}
