package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microearn/backend/internal/models"
)

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func (r *WithdrawalRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreatePendingTx inserts a pending withdrawal unless the worker already has
// one outstanding. The existence check and the insert are a single statement,
// backed by a partial unique index on (worker_id) WHERE status = 'pending',
// so concurrent requests from one worker cannot both land. Returns
// inserted=false when a pending request already exists.
func (r *WithdrawalRepo) CreatePendingTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) (inserted bool, err error) {
	err = tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, worker_id, coins, payment_system, account_number, status)
		SELECT $1, $2, $3, $4, $5, 'pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM withdrawals WHERE worker_id = $2 AND status = 'pending'
		)
		RETURNING requested_at
	`, w.ID, w.WorkerID, w.Coins, w.PaymentSystem, w.AccountNumber).Scan(&w.RequestedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.pool.QueryRow(ctx, `
		SELECT id, worker_id, coins, payment_system, account_number, status, requested_at, resolved_at
		FROM withdrawals WHERE id = $1
	`, id).Scan(&w.ID, &w.WorkerID, &w.Coins, &w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt, &w.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ResolveTx flips the withdrawal from pending to the given terminal status,
// compare-and-set style. Returns resolved=false when it was not pending.
func (r *WithdrawalRepo) ResolveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (resolved bool, err error) {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawals SET status = $2, resolved_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WithdrawalRepo) ListByWorkerID(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return r.list(ctx, `
		SELECT id, worker_id, coins, payment_system, account_number, status, requested_at, resolved_at
		FROM withdrawals WHERE worker_id = $1 ORDER BY requested_at DESC
	`, workerID)
}

func (r *WithdrawalRepo) ListPending(ctx context.Context) ([]*models.Withdrawal, error) {
	return r.list(ctx, `
		SELECT id, worker_id, coins, payment_system, account_number, status, requested_at, resolved_at
		FROM withdrawals WHERE status = 'pending' ORDER BY requested_at ASC
	`)
}

func (r *WithdrawalRepo) List(ctx context.Context) ([]*models.Withdrawal, error) {
	return r.list(ctx, `
		SELECT id, worker_id, coins, payment_system, account_number, status, requested_at, resolved_at
		FROM withdrawals ORDER BY requested_at DESC
	`)
}

// HasPendingByWorkerID is used by admin account deletion to refuse deleting a
// worker with an unsettled request.
func (r *WithdrawalRepo) HasPendingByWorkerID(ctx context.Context, workerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM withdrawals WHERE worker_id = $1 AND status = 'pending')
	`, workerID).Scan(&exists)
	return exists, err
}

func (r *WithdrawalRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.WorkerID, &w.Coins, &w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt, &w.ResolvedAt); err != nil {
			return nil, err
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}
