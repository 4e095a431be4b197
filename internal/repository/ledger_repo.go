package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microearn/backend/internal/models"
)

// LedgerRepo persists coin_ledger audit entries. The table is append-only:
// there is no update or delete method on purpose.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction, so the entry
// commits or rolls back together with the balance mutation it records.
func (r *LedgerRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coin_ledger (id, account_id, entry_type, amount, balance_after, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountID, e.EntryType, e.Amount, e.BalanceAfter, e.RefID).Scan(&e.CreatedAt)
}

func (r *LedgerRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, entry_type, amount, balance_after, ref_id, created_at
		FROM coin_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (r *LedgerRepo) ListByRefID(ctx context.Context, refID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, entry_type, amount, balance_after, ref_id, created_at
		FROM coin_ledger WHERE ref_id = $1 ORDER BY created_at DESC
	`, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
