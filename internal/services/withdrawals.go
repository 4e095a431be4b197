package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/models"
)

var (
	// ErrBelowMinimum is returned when the requested amount is under the
	// configured withdrawal floor.
	ErrBelowMinimum = errors.New("amount below withdrawal minimum")
	// ErrInvalidPaymentSystem is returned for a payment system the platform
	// cannot settle to.
	ErrInvalidPaymentSystem = errors.New("unsupported payment system")
	// ErrInvalidAccountNumber is returned when the payout account number is
	// too short to be real.
	ErrInvalidAccountNumber = errors.New("account number too short")
	// ErrPendingExists is returned when the worker already has an unsettled
	// withdrawal request.
	ErrPendingExists = errors.New("a pending withdrawal already exists")
)

// WithdrawalStore is the withdrawal repository surface the service needs.
type WithdrawalStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreatePendingTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) (inserted bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ResolveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (resolved bool, err error)
	ListByWorkerID(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error)
	ListPending(ctx context.Context) ([]*models.Withdrawal, error)
	List(ctx context.Context) ([]*models.Withdrawal, error)
}

// WithdrawalAccountStore re-reads the worker's balance at request time.
type WithdrawalAccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// PayoutEnqueuer schedules the external payout for an approved withdrawal,
// inside the approval transaction so the job exists iff the debit committed.
type PayoutEnqueuer func(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error

type RequestWithdrawalInput struct {
	Coins         int    `json:"coins"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

// WithdrawalService owns withdrawal settlement. A request holds no coins:
// the balance is only debited when an admin approves, so the coins stay
// spendable until settlement and the approval re-checks the balance.
type WithdrawalService struct {
	withdrawals WithdrawalStore
	accounts    WithdrawalAccountStore
	ledger      ledger.Service
	minCoins    int
	logger      *slog.Logger

	mu      sync.Mutex
	enqueue PayoutEnqueuer
}

func NewWithdrawalService(withdrawals WithdrawalStore, accounts WithdrawalAccountStore, l ledger.Service, minCoins int, logger *slog.Logger) *WithdrawalService {
	return &WithdrawalService{withdrawals: withdrawals, accounts: accounts, ledger: l, minCoins: minCoins, logger: logger}
}

// SetPayoutEnqueuer installs the payout job scheduler. Set after the job
// client is built, which itself needs the service constructed first.
func (s *WithdrawalService) SetPayoutEnqueuer(fn PayoutEnqueuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue = fn
}

func (s *WithdrawalService) payoutEnqueuer() PayoutEnqueuer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue
}

// Request records a pending withdrawal for the worker. At most one pending
// request per worker may exist. The balance check here is advisory; the
// authoritative check happens at approval time.
func (s *WithdrawalService) Request(ctx context.Context, actor *models.Account, in RequestWithdrawalInput) (*models.Withdrawal, error) {
	if err := Authorize(actor, ActionCreateWithdrawal, Resource{OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	if in.Coins < s.minCoins {
		return nil, fmt.Errorf("%w: minimum is %d coins", ErrBelowMinimum, s.minCoins)
	}
	if !models.AllowedPaymentSystems[in.PaymentSystem] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentSystem, in.PaymentSystem)
	}
	if len(in.AccountNumber) < 3 {
		return nil, ErrInvalidAccountNumber
	}

	acc, err := s.accounts.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.Coins < in.Coins {
		return nil, &ledger.InsufficientCoinsError{Required: in.Coins, Available: acc.Coins}
	}

	w := &models.Withdrawal{
		ID:            uuid.New(),
		WorkerID:      actor.ID,
		Coins:         in.Coins,
		PaymentSystem: in.PaymentSystem,
		AccountNumber: in.AccountNumber,
		Status:        models.WithdrawalStatusPending,
	}

	tx, err := s.withdrawals.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted, err := s.withdrawals.CreatePendingTx(ctx, tx, w)
	if err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	if !inserted {
		return nil, ErrPendingExists
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("withdrawal requested",
		"withdrawal_id", w.ID, "worker_id", actor.ID, "coins", w.Coins, "payment_system", w.PaymentSystem)
	return w, nil
}

// Resolve settles a pending withdrawal. Approval debits the worker's balance
// and marks the request completed in one transaction; if the balance has
// dropped below the requested amount since the request was made, the debit
// fails with *ledger.InsufficientCoinsError and the request stays pending.
// Rejection flips the status and touches no coins.
func (s *WithdrawalService) Resolve(ctx context.Context, actor *models.Account, withdrawalID uuid.UUID, approve bool) (*models.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	if err := Authorize(actor, ActionResolveWithdrawal, Resource{OwnerID: w.WorkerID}); err != nil {
		return nil, err
	}

	tx, err := s.withdrawals.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if !approve {
		resolved, err := s.withdrawals.ResolveTx(ctx, tx, w.ID, models.WithdrawalStatusRejected)
		if err != nil {
			return nil, fmt.Errorf("reject withdrawal: %w", err)
		}
		if !resolved {
			return nil, ErrAlreadyResolved
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		w.Status = models.WithdrawalStatusRejected
		s.logger.Info("withdrawal rejected", "withdrawal_id", w.ID, "worker_id", w.WorkerID)
		return w, nil
	}

	resolved, err := s.withdrawals.ResolveTx(ctx, tx, w.ID, models.WithdrawalStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("approve withdrawal: %w", err)
	}
	if !resolved {
		return nil, ErrAlreadyResolved
	}
	if _, err := s.ledger.Debit(ctx, tx, w.WorkerID, w.Coins, models.LedgerEntryWithdrawalDebit, &w.ID); err != nil {
		return nil, err
	}
	if enqueue := s.payoutEnqueuer(); enqueue != nil {
		if err := enqueue(ctx, tx, w); err != nil {
			return nil, fmt.Errorf("enqueue payout: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	w.Status = models.WithdrawalStatusCompleted
	s.logger.Info("withdrawal completed",
		"withdrawal_id", w.ID, "worker_id", w.WorkerID, "coins", w.Coins,
		"payment_system", w.PaymentSystem, "admin_id", actor.ID)
	return w, nil
}

// ListForWorker returns the worker's own withdrawal history.
func (s *WithdrawalService) ListForWorker(ctx context.Context, actor *models.Account) ([]*models.Withdrawal, error) {
	return s.withdrawals.ListByWorkerID(ctx, actor.ID)
}

// ListForAdmin returns pending requests by default, or the full history when
// all is set.
func (s *WithdrawalService) ListForAdmin(ctx context.Context, actor *models.Account, all bool) ([]*models.Withdrawal, error) {
	if err := Authorize(actor, ActionResolveWithdrawal, Resource{}); err != nil {
		return nil, err
	}
	if all {
		return s.withdrawals.List(ctx)
	}
	return s.withdrawals.ListPending(ctx)
}
