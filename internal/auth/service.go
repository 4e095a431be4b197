package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that
	// already has an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for expired, malformed or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrValidation wraps registration input failures.
	ErrValidation = errors.New("validation failed")
)

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// AccountStore is the account repository surface auth needs.
type AccountStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	ImageURL string `json:"image_url,omitempty"`
}

type Service interface {
	// Register creates the account and credits the role's signup bonus in
	// one transaction.
	Register(ctx context.Context, in RegisterInput) (*models.Account, error)
	// Login verifies the password and returns a signed token plus the
	// account.
	Login(ctx context.Context, email, password string) (string, *models.Account, error)
	// ValidateToken returns the account ID a valid token was issued for.
	// Tokens carry only the subject; role and balance are always read back
	// from the store so a token outlives neither.
	ValidateToken(token string) (uuid.UUID, error)
}

type service struct {
	accounts    AccountStore
	ledger      ledger.Service
	secret      []byte
	tokenTTL    time.Duration
	workerBonus int
	buyerBonus  int
	logger      *slog.Logger
}

func NewService(accounts AccountStore, l ledger.Service, secret string, workerBonus, buyerBonus int, logger *slog.Logger) Service {
	return &service{
		accounts:    accounts,
		ledger:      l,
		secret:      []byte(secret),
		tokenTTL:    24 * time.Hour,
		workerBonus: workerBonus,
		buyerBonus:  buyerBonus,
		logger:      logger,
	}
}

var _ Service = (*service)(nil)

func validateRegister(in RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	switch {
	case len(name) < 2 || len(name) > 50:
		return fmt.Errorf("%w: name must be 2-50 characters", ErrValidation)
	case !nameRe.MatchString(name):
		return fmt.Errorf("%w: name may only contain letters, spaces, apostrophes and hyphens", ErrValidation)
	case !emailRe.MatchString(strings.TrimSpace(in.Email)):
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	case len(in.Password) < 6 || len(in.Password) > 128:
		return fmt.Errorf("%w: password must be 6-128 characters", ErrValidation)
	case in.Role != models.RoleWorker && in.Role != models.RoleBuyer:
		return fmt.Errorf("%w: role must be %s or %s", ErrValidation, models.RoleWorker, models.RoleBuyer)
	}
	return nil
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	if err := validateRegister(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &models.Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		ImageURL:     in.ImageURL,
		PasswordHash: string(hash),
	}
	bonus := s.buyerBonus
	if acc.Role == models.RoleWorker {
		bonus = s.workerBonus
	}

	tx, err := s.accounts.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.accounts.CreateTx(ctx, tx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	if bonus > 0 {
		newBalance, err := s.ledger.Credit(ctx, tx, acc.ID, bonus, models.LedgerEntryRegistrationBonus, nil)
		if err != nil {
			return nil, err
		}
		acc.Coins = newBalance
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("account registered",
		"account_id", acc.ID, "role", acc.Role, "signup_bonus", bonus)
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	acc, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(acc.ID)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *service) issueToken(accountID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(token string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
