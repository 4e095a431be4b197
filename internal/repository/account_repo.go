package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microearn/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AccountRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error {
	return tx.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name, role, coins, image_url, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.Name, a.Role, a.Coins, a.ImageURL, a.PasswordHash).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, role, coins, image_url, password_hash, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.Coins, &a.ImageURL, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail matches case-insensitively; emails are stored lowercased.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, role, coins, image_url, password_hash, created_at, updated_at
		FROM accounts WHERE email = lower($1)
	`, email).Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.Coins, &a.ImageURL, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, role, coins, image_url, password_hash, created_at, updated_at
		FROM accounts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.Coins, &a.ImageURL, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// UpdateProfile changes the mutable profile fields only. Role and coins are
// never written here: role changes go through UpdateRole, balances through
// the ledger.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, imageURL string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET name = $2, image_url = $3, updated_at = now() WHERE id = $1
	`, id, name, imageURL)
	return err
}

func (r *AccountRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1
	`, id, role)
	return err
}

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	return err
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := tx.QueryRow(ctx, `
		SELECT id, email, name, role, coins, image_url, password_hash, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.Coins, &a.ImageURL, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeductCoins atomically deducts amount from the account if coins >= amount.
// Returns pgx.ErrNoRows when the balance is insufficient, so two concurrent
// debits against one balance can never both succeed.
func (r *AccountRepo) DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coins = coins - $1, updated_at = now()
		WHERE id = $2 AND coins >= $1
		RETURNING coins
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddCoins adds amount to the account and returns the new balance.
func (r *AccountRepo) AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coins = coins + $1, updated_at = now()
		WHERE id = $2
		RETURNING coins
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}
