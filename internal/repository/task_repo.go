package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microearn/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx persists the task inside the given transaction, after the escrow
// debit has already succeeded in the same transaction.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, buyer_id, title, detail, submission_info, reward, required_workers, completed_count, deadline, status, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, t.ID, t.BuyerID, t.Title, t.Detail, t.SubmissionInfo, t.Reward, t.RequiredWorkers, t.CompletedCount, t.Deadline, t.Status, t.ImageURL).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetByIDForUpdate locks the task row for update. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return r.get(ctx, tx, id, true)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *TaskRepo) get(ctx context.Context, q queryRower, id uuid.UUID, forUpdate bool) (*models.Task, error) {
	sql := `
		SELECT id, buyer_id, title, detail, submission_info, reward, required_workers, completed_count, deadline, status, image_url, created_at, updated_at
		FROM tasks WHERE id = $1`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var t models.Task
	err := q.QueryRow(ctx, sql, id).Scan(&t.ID, &t.BuyerID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.Reward, &t.RequiredWorkers, &t.CompletedCount, &t.Deadline, &t.Status, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateContent writes the buyer-editable fields. Reward, required_workers,
// completed_count and status are never touched here.
func (r *TaskRepo) UpdateContent(ctx context.Context, t *models.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET title = $2, detail = $3, submission_info = $4, image_url = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Title, t.Detail, t.SubmissionInfo, t.ImageURL)
	return err
}

// ConsumeSlotTx atomically increments completed_count, bounded by
// required_workers, and flips status to completed when the last slot is
// consumed. Returns pgx.ErrNoRows when no slot remains, so two concurrent
// approvals cannot overfill the task.
func (r *TaskRepo) ConsumeSlotTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (completedCount, requiredWorkers int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE tasks
		SET completed_count = completed_count + 1,
		    status = CASE WHEN completed_count + 1 >= required_workers THEN 'completed' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND completed_count < required_workers
		RETURNING completed_count, required_workers
	`, id).Scan(&completedCount, &requiredWorkers)
	return completedCount, requiredWorkers, err
}

func (r *TaskRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}

func (r *TaskRepo) List(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT id, buyer_id, title, detail, submission_info, reward, required_workers, completed_count, deadline, status, image_url, created_at, updated_at
		FROM tasks ORDER BY created_at DESC
	`)
}

func (r *TaskRepo) ListByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT id, buyer_id, title, detail, submission_info, reward, required_workers, completed_count, deadline, status, image_url, created_at, updated_at
		FROM tasks WHERE buyer_id = $1 ORDER BY created_at DESC
	`, buyerID)
}

// ListAvailable returns active tasks a worker could still submit to: slots
// remaining and deadline absent or in the future.
func (r *TaskRepo) ListAvailable(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT id, buyer_id, title, detail, submission_info, reward, required_workers, completed_count, deadline, status, image_url, created_at, updated_at
		FROM tasks
		WHERE status = 'active' AND completed_count < required_workers
		  AND (deadline IS NULL OR deadline > now())
		ORDER BY created_at DESC
	`)
}

// CountActiveByBuyer is used by admin account deletion to refuse deleting a
// buyer who still has active tasks holding escrow.
func (r *TaskRepo) CountActiveByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE buyer_id = $1 AND status = 'active'
	`, buyerID).Scan(&n)
	return n, err
}

func (r *TaskRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.BuyerID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.Reward, &t.RequiredWorkers, &t.CompletedCount, &t.Deadline, &t.Status, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
