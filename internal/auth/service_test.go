package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/microearn/backend/internal/models"
)

type noopTx struct{ pgx.Tx }

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[uuid.UUID]*models.Account)}
}

func (m *memAccounts) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memAccounts) CreateTx(_ context.Context, _ pgx.Tx, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == strings.ToLower(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// memLedger only needs Credit for the signup bonus.
type memLedger struct {
	accounts *memAccounts
	credits  []int
}

func (m *memLedger) Credit(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int, entryType string, _ *uuid.UUID) (int, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	a, ok := m.accounts.accounts[accountID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.Coins += amount
	m.credits = append(m.credits, amount)
	return a.Coins, nil
}

func (m *memLedger) Debit(context.Context, pgx.Tx, uuid.UUID, int, string, *uuid.UUID) (int, error) {
	return 0, errors.New("not used")
}

func newTestService() (Service, *memAccounts, *memLedger) {
	accounts := newMemAccounts()
	led := &memLedger{accounts: accounts}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(accounts, led, "test-secret", 10, 50, logger), accounts, led
}

func validInput() RegisterInput {
	return RegisterInput{Name: "Rahim Uddin", Email: "Rahim@Example.com", Password: "hunter22", Role: models.RoleWorker}
}

func TestRegisterWorkerBonus(t *testing.T) {
	svc, _, led := newTestService()

	acc, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Email != "rahim@example.com" {
		t.Errorf("email should be lowercased, got %q", acc.Email)
	}
	if acc.Coins != 10 {
		t.Errorf("worker signup bonus: got %d coins, want 10", acc.Coins)
	}
	if len(led.credits) != 1 || led.credits[0] != 10 {
		t.Errorf("bonus credits: got %v, want [10]", led.credits)
	}
}

func TestRegisterBuyerBonus(t *testing.T) {
	svc, _, _ := newTestService()

	in := validInput()
	in.Role = models.RoleBuyer
	acc, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Coins != 50 {
		t.Errorf("buyer signup bonus: got %d coins, want 50", acc.Coins)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"name too short", func(in *RegisterInput) { in.Name = "A" }},
		{"name too long", func(in *RegisterInput) { in.Name = strings.Repeat("a", 51) }},
		{"name with digits", func(in *RegisterInput) { in.Name = "Agent 47" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"password too short", func(in *RegisterInput) { in.Password = "short" }},
		{"password too long", func(in *RegisterInput) { in.Password = strings.Repeat("x", 129) }},
		{"admin self-registration", func(in *RegisterInput) { in.Role = models.RoleAdmin }},
		{"unknown role", func(in *RegisterInput) { in.Role = "Moderator" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, validInput()); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("second register: expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	acc, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, got, err := svc.Login(ctx, "rahim@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != acc.ID {
		t.Errorf("login account: got %s, want %s", got.ID, acc.ID)
	}

	id, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != acc.ID {
		t.Errorf("token subject: got %s, want %s", id, acc.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "rahim@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService()

	for _, tok := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := svc.ValidateToken(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	otherAccounts := newMemAccounts()
	other := NewService(otherAccounts, &memLedger{accounts: otherAccounts}, "other-secret", 10, 50,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := other.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := other.Login(ctx, "rahim@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign-secret token: expected ErrInvalidToken, got %v", err)
	}
}
