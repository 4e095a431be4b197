package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/models"
)

var (
	// ErrTaskNotActive is returned when submitting to or editing a task that
	// is completed or cancelled.
	ErrTaskNotActive = errors.New("task is not active")
	// ErrDeadlinePassed is returned when submitting to an expired task.
	ErrDeadlinePassed = errors.New("task deadline has passed")
	// ErrSlotsFull is returned when every worker slot is already consumed.
	ErrSlotsFull = errors.New("no worker slots remaining")
	// ErrDuplicateSubmission is returned when the worker already has a
	// pending or approved submission for the task.
	ErrDuplicateSubmission = errors.New("submission already exists for this task")
	// ErrAlreadyResolved is returned when reviewing a submission (or
	// resolving a withdrawal) that has already left the pending state.
	ErrAlreadyResolved = errors.New("already resolved")
)

// SubmissionStore is the submission repository surface the service needs.
type SubmissionStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) (inserted bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ResolveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, rewardPaid *int) (resolved bool, err error)
	ListByWorkerID(ctx context.Context, workerID uuid.UUID, status string) ([]*models.Submission, error)
	ListPendingByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error)
}

// SubmissionTaskStore is the slice of the task repository submission flows
// need. ConsumeSlotTx is the bounded slot increment that makes concurrent
// approvals safe.
type SubmissionTaskStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ConsumeSlotTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (completedCount, requiredWorkers int, err error)
}

// SubmissionService owns the submission workflow: workers submit proof of
// work, buyers approve (paying the reward and consuming a slot) or reject
// (freeing the worker to resubmit).
type SubmissionService struct {
	submissions SubmissionStore
	tasks       SubmissionTaskStore
	ledger      ledger.Service
	logger      *slog.Logger
	now         func() time.Time
}

func NewSubmissionService(submissions SubmissionStore, tasks SubmissionTaskStore, l ledger.Service, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{submissions: submissions, tasks: tasks, ledger: l, logger: logger, now: time.Now}
}

// Create records a worker's submission against a task. The task row is
// locked while the eligibility checks run so a concurrent deletion or the
// final approval cannot slip between check and insert.
func (s *SubmissionService) Create(ctx context.Context, actor *models.Account, taskID uuid.UUID, details string) (*models.Submission, error) {
	if err := Authorize(actor, ActionCreateSubmission, Resource{OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	if details == "" {
		return nil, fmt.Errorf("%w: details are required", ErrValidation)
	}

	tx, err := s.submissions.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	if task.Status != models.TaskStatusActive {
		return nil, ErrTaskNotActive
	}
	if task.Expired(s.now()) {
		return nil, ErrDeadlinePassed
	}
	if task.RemainingSlots() <= 0 {
		return nil, ErrSlotsFull
	}

	sub := &models.Submission{
		ID:       uuid.New(),
		TaskID:   task.ID,
		WorkerID: actor.ID,
		BuyerID:  task.BuyerID,
		Details:  details,
		Status:   models.SubmissionStatusPending,
	}
	inserted, err := s.submissions.CreateTx(ctx, tx, sub)
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateSubmission
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("submission created",
		"submission_id", sub.ID, "task_id", task.ID, "worker_id", actor.ID)
	return sub, nil
}

// Review resolves a pending submission. Approval pays the task reward to the
// worker and consumes a slot; the status flip, the slot consumption and the
// reward credit commit atomically, and the pending-state compare-and-set
// guarantees a submission is paid at most once. Rejection flips the status
// and nothing else; the slot stays open and the worker may resubmit.
func (s *SubmissionService) Review(ctx context.Context, actor *models.Account, submissionID uuid.UUID, approve bool) (*models.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if err := Authorize(actor, ActionReviewSubmission, Resource{OwnerID: sub.BuyerID}); err != nil {
		return nil, err
	}

	tx, err := s.submissions.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if !approve {
		resolved, err := s.submissions.ResolveTx(ctx, tx, sub.ID, models.SubmissionStatusRejected, nil)
		if err != nil {
			return nil, fmt.Errorf("reject submission: %w", err)
		}
		if !resolved {
			return nil, ErrAlreadyResolved
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		sub.Status = models.SubmissionStatusRejected
		s.logger.Info("submission rejected", "submission_id", sub.ID, "task_id", sub.TaskID)
		return sub, nil
	}

	// Lock the task first to serialize concurrent approvals on the same
	// task; the slot increment below is still bounded as a second guard.
	task, err := s.tasks.GetByIDForUpdate(ctx, tx, sub.TaskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}

	reward := task.Reward
	resolved, err := s.submissions.ResolveTx(ctx, tx, sub.ID, models.SubmissionStatusApproved, &reward)
	if err != nil {
		return nil, fmt.Errorf("approve submission: %w", err)
	}
	if !resolved {
		return nil, ErrAlreadyResolved
	}

	completed, required, err := s.tasks.ConsumeSlotTx(ctx, tx, task.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotsFull
		}
		return nil, fmt.Errorf("consume slot: %w", err)
	}

	if _, err := s.ledger.Credit(ctx, tx, sub.WorkerID, reward, models.LedgerEntrySubmissionReward, &sub.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	sub.Status = models.SubmissionStatusApproved
	sub.RewardPaid = &reward
	s.logger.Info("submission approved",
		"submission_id", sub.ID, "task_id", task.ID, "worker_id", sub.WorkerID,
		"reward", reward, "completed_count", completed, "required_workers", required)
	return sub, nil
}

// ListForWorker returns the worker's own submissions, optionally filtered by
// status.
func (s *SubmissionService) ListForWorker(ctx context.Context, actor *models.Account, status string) ([]*models.Submission, error) {
	if status != "" && status != models.SubmissionStatusPending &&
		status != models.SubmissionStatusApproved && status != models.SubmissionStatusRejected {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.submissions.ListByWorkerID(ctx, actor.ID, status)
}

// ListPendingForBuyer returns submissions awaiting the buyer's review across
// all of their tasks.
func (s *SubmissionService) ListPendingForBuyer(ctx context.Context, actor *models.Account) ([]*models.Submission, error) {
	return s.submissions.ListPendingByBuyerID(ctx, actor.ID)
}
