package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microearn/backend/internal/models"
)

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the submission unless the worker already has a pending or
// approved submission for the task. Rejected submissions do not block:
// a rejected worker may resubmit. Returns inserted=false when the duplicate
// guard blocked the insert; the guard and the insert are one statement so two
// concurrent submissions from the same worker serialize.
func (r *SubmissionRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) (inserted bool, err error) {
	err = tx.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, worker_id, buyer_id, details, status)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM submissions
			WHERE task_id = $2 AND worker_id = $3 AND status <> 'rejected'
		)
		RETURNING submitted_at
	`, s.ID, s.TaskID, s.WorkerID, s.BuyerID, s.Details, s.Status).Scan(&s.SubmittedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var s models.Submission
	err := r.pool.QueryRow(ctx, `
		SELECT id, task_id, worker_id, buyer_id, details, status, reward_paid, submitted_at, resolved_at
		FROM submissions WHERE id = $1
	`, id).Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.BuyerID, &s.Details, &s.Status, &s.RewardPaid, &s.SubmittedAt, &s.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResolveTx flips the submission from pending to the given terminal status,
// compare-and-set style. Returns resolved=false when the submission was not
// pending (already resolved or missing), so two concurrent reviews result in
// exactly one state change.
func (r *SubmissionRepo) ResolveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, rewardPaid *int) (resolved bool, err error) {
	tag, err := tx.Exec(ctx, `
		UPDATE submissions SET status = $2, reward_paid = $3, resolved_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status, rewardPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePendingByTaskTx removes unresolved submissions for a task being
// deleted. Approved and rejected submissions are kept as history so
// reward_paid entries in the ledger stay auditable.
func (r *SubmissionRepo) DeletePendingByTaskTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM submissions WHERE task_id = $1 AND status = 'pending'
	`, taskID)
	return err
}

func (r *SubmissionRepo) ListByWorkerID(ctx context.Context, workerID uuid.UUID, status string) ([]*models.Submission, error) {
	sql := `
		SELECT id, task_id, worker_id, buyer_id, details, status, reward_paid, submitted_at, resolved_at
		FROM submissions WHERE worker_id = $1`
	args := []any{workerID}
	if status != "" {
		sql += " AND status = $2"
		args = append(args, status)
	}
	sql += " ORDER BY submitted_at DESC"
	return r.list(ctx, sql, args...)
}

// ListPendingByBuyerID returns submissions awaiting review across all of the
// buyer's tasks.
func (r *SubmissionRepo) ListPendingByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return r.list(ctx, `
		SELECT id, task_id, worker_id, buyer_id, details, status, reward_paid, submitted_at, resolved_at
		FROM submissions WHERE buyer_id = $1 AND status = 'pending'
		ORDER BY submitted_at ASC
	`, buyerID)
}

func (r *SubmissionRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.BuyerID, &s.Details, &s.Status, &s.RewardPaid, &s.SubmittedAt, &s.ResolvedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
