// Package ledger is the single point of balance mutation. Every coin that
// moves on the platform moves through Credit or Debit; no other component
// writes account balances, and every call leaves exactly one audit entry that
// commits atomically with the balance change.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microearn/backend/internal/models"
)

// ErrInvalidAmount is returned when a credit or debit amount is not positive.
var ErrInvalidAmount = errors.New("ledger amount must be > 0")

// InsufficientCoinsError carries the amounts the API layer needs to prompt a
// top-up: how much the operation required and how much was available.
type InsufficientCoinsError struct {
	Required  int
	Available int
}

func (e *InsufficientCoinsError) Error() string {
	return fmt.Sprintf("insufficient coins: required %d, available %d", e.Required, e.Available)
}

// AccountStore is the minimal account repository interface the ledger needs.
type AccountStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// EntryStore appends audit entries.
type EntryStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

type Service interface {
	// Credit adds amount coins to the account and records an audit entry.
	// Returns the new balance.
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error)
	// Debit removes amount coins if the balance covers it, recording an
	// audit entry. Returns *InsufficientCoinsError when it does not.
	Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error)
}

type service struct {
	accounts AccountStore
	entries  EntryStore
}

func NewService(accounts AccountStore, entries EntryStore) Service {
	return &service{accounts: accounts, entries: entries}
}

var _ Service = (*service)(nil)

func (s *service) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.accounts.AddCoins(ctx, tx, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("add coins: %w", err)
	}
	if err := s.appendEntry(ctx, tx, accountID, amount, newBalance, entryType, refID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, entryType string, refID *uuid.UUID) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	// Lock the row first so the available amount reported on failure is the
	// serialized truth, not a stale read.
	acc, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return 0, fmt.Errorf("lock account: %w", err)
	}
	if acc.Coins < amount {
		return 0, &InsufficientCoinsError{Required: amount, Available: acc.Coins}
	}
	newBalance, err := s.accounts.DeductCoins(ctx, tx, accountID, amount)
	if err != nil {
		// The conditional UPDATE found the balance short after all; report
		// with the locked read's balance.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &InsufficientCoinsError{Required: amount, Available: acc.Coins}
		}
		return 0, fmt.Errorf("deduct coins: %w", err)
	}
	if err := s.appendEntry(ctx, tx, accountID, amount, newBalance, entryType, refID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) appendEntry(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount, balanceAfter int, entryType string, refID *uuid.UUID) error {
	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		EntryType:    entryType,
		Amount:       amount,
		BalanceAfter: &balanceAfter,
		RefID:        refID,
	}
	if err := s.entries.CreateTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
