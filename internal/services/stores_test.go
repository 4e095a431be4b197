package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/models"
)

// noopTx satisfies pgx.Tx for service flows under test; only Commit and
// Rollback are ever called.
type noopTx struct{ pgx.Tx }

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// Accounts + ledger
// ---------------------------------------------------------------------------

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMemAccounts(accs ...*models.Account) *memAccounts {
	m := &memAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Coins
}

// memLedger implements ledger.Service over a memAccounts, recording entries.
type memLedger struct {
	accounts *memAccounts
	mu       sync.Mutex
	entries  []*models.LedgerEntry
}

var _ ledger.Service = (*memLedger)(nil)

func newMemLedger(accounts *memAccounts) *memLedger {
	return &memLedger{accounts: accounts}
}

func (m *memLedger) Credit(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}
	m.accounts.mu.Lock()
	a, ok := m.accounts.accounts[accountID]
	if !ok {
		m.accounts.mu.Unlock()
		return 0, pgx.ErrNoRows
	}
	a.Coins += amount
	after := a.Coins
	m.accounts.mu.Unlock()
	m.record(accountID, amount, after, entryType, refID)
	return after, nil
}

func (m *memLedger) Debit(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}
	m.accounts.mu.Lock()
	a, ok := m.accounts.accounts[accountID]
	if !ok {
		m.accounts.mu.Unlock()
		return 0, pgx.ErrNoRows
	}
	if a.Coins < amount {
		available := a.Coins
		m.accounts.mu.Unlock()
		return 0, &ledger.InsufficientCoinsError{Required: amount, Available: available}
	}
	a.Coins -= amount
	after := a.Coins
	m.accounts.mu.Unlock()
	m.record(accountID, amount, after, entryType, refID)
	return after, nil
}

func (m *memLedger) record(accountID uuid.UUID, amount, after int, entryType string, refID *uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &models.LedgerEntry{
		ID: uuid.New(), AccountID: accountID, EntryType: entryType,
		Amount: amount, BalanceAfter: &after, RefID: refID, CreatedAt: time.Now(),
	})
}

func (m *memLedger) entriesOfType(entryType string) []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range m.entries {
		if e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

type memTasks struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMemTasks(ts ...*models.Task) *memTasks {
	m := &memTasks{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range ts {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	return m
}

func (m *memTasks) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memTasks) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	return m.get(id)
}

func (m *memTasks) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return m.get(id)
}

func (m *memTasks) get(id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) UpdateContent(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Title = t.Title
	stored.Detail = t.Detail
	stored.SubmissionInfo = t.SubmissionInfo
	stored.ImageURL = t.ImageURL
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *memTasks) ConsumeSlotTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.CompletedCount >= t.RequiredWorkers {
		return 0, 0, pgx.ErrNoRows
	}
	t.CompletedCount++
	if t.CompletedCount >= t.RequiredWorkers {
		t.Status = models.TaskStatusCompleted
	}
	return t.CompletedCount, t.RequiredWorkers, nil
}

func (m *memTasks) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) List(context.Context) ([]*models.Task, error) {
	return m.filter(func(*models.Task) bool { return true }), nil
}

func (m *memTasks) ListByBuyerID(_ context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	return m.filter(func(t *models.Task) bool { return t.BuyerID == buyerID }), nil
}

func (m *memTasks) ListAvailable(context.Context) ([]*models.Task, error) {
	now := time.Now()
	return m.filter(func(t *models.Task) bool {
		return t.Status == models.TaskStatusActive && t.RemainingSlots() > 0 && !t.Expired(now)
	}), nil
}

func (m *memTasks) filter(keep func(*models.Task) bool) []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memTasks) stored(id uuid.UUID) *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// ---------------------------------------------------------------------------
// Submissions
// ---------------------------------------------------------------------------

type memSubmissions struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*models.Submission
}

func newMemSubmissions() *memSubmissions {
	return &memSubmissions{subs: make(map[uuid.UUID]*models.Submission)}
}

func (m *memSubmissions) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memSubmissions) CreateTx(_ context.Context, _ pgx.Tx, s *models.Submission) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subs {
		if existing.TaskID == s.TaskID && existing.WorkerID == s.WorkerID &&
			existing.Status != models.SubmissionStatusRejected {
			return false, nil
		}
	}
	s.SubmittedAt = time.Now()
	cp := *s
	m.subs[s.ID] = &cp
	return true, nil
}

func (m *memSubmissions) GetByID(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSubmissions) ResolveTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string, rewardPaid *int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != models.SubmissionStatusPending {
		return false, nil
	}
	now := time.Now()
	s.Status = status
	s.RewardPaid = rewardPaid
	s.ResolvedAt = &now
	return true, nil
}

func (m *memSubmissions) DeletePendingByTaskTx(_ context.Context, _ pgx.Tx, taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.subs {
		if s.TaskID == taskID && s.Status == models.SubmissionStatusPending {
			delete(m.subs, id)
		}
	}
	return nil
}

func (m *memSubmissions) ListByWorkerID(_ context.Context, workerID uuid.UUID, status string) ([]*models.Submission, error) {
	return m.filter(func(s *models.Submission) bool {
		return s.WorkerID == workerID && (status == "" || s.Status == status)
	}), nil
}

func (m *memSubmissions) ListPendingByBuyerID(_ context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return m.filter(func(s *models.Submission) bool {
		return s.BuyerID == buyerID && s.Status == models.SubmissionStatusPending
	}), nil
}

func (m *memSubmissions) filter(keep func(*models.Submission) bool) []*models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.subs {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Withdrawals
// ---------------------------------------------------------------------------

type memWithdrawals struct {
	mu          sync.Mutex
	withdrawals map[uuid.UUID]*models.Withdrawal
}

func newMemWithdrawals() *memWithdrawals {
	return &memWithdrawals{withdrawals: make(map[uuid.UUID]*models.Withdrawal)}
}

func (m *memWithdrawals) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memWithdrawals) CreatePendingTx(_ context.Context, _ pgx.Tx, w *models.Withdrawal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.withdrawals {
		if existing.WorkerID == w.WorkerID && existing.Status == models.WithdrawalStatusPending {
			return false, nil
		}
	}
	w.RequestedAt = time.Now()
	cp := *w
	m.withdrawals[w.ID] = &cp
	return true, nil
}

func (m *memWithdrawals) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (m *memWithdrawals) ResolveTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok || w.Status != models.WithdrawalStatusPending {
		return false, nil
	}
	now := time.Now()
	w.Status = status
	w.ResolvedAt = &now
	return true, nil
}

func (m *memWithdrawals) ListByWorkerID(_ context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return m.filter(func(w *models.Withdrawal) bool { return w.WorkerID == workerID }), nil
}

func (m *memWithdrawals) ListPending(context.Context) ([]*models.Withdrawal, error) {
	return m.filter(func(w *models.Withdrawal) bool { return w.Status == models.WithdrawalStatusPending }), nil
}

func (m *memWithdrawals) List(context.Context) ([]*models.Withdrawal, error) {
	return m.filter(func(*models.Withdrawal) bool { return true }), nil
}

func (m *memWithdrawals) filter(keep func(*models.Withdrawal) bool) []*models.Withdrawal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Withdrawal
	for _, w := range m.withdrawals {
		if keep(w) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out
}
