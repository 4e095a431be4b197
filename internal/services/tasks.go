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
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation wraps all input validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrTaskStarted is returned when a task with approved submissions is
	// edited; escrow maths depend on the creation-time reward.
	ErrTaskStarted = errors.New("task already has completed submissions")
)

// TaskStore is the task repository surface the task service needs.
type TaskStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	UpdateContent(ctx context.Context, t *models.Task) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Task, error)
	ListByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error)
	ListAvailable(ctx context.Context) ([]*models.Task, error)
}

// TaskSubmissionStore is the slice of the submission repository task deletion
// needs: pending submissions are discarded with the task, resolved ones stay.
type TaskSubmissionStore interface {
	DeletePendingByTaskTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) error
}

type CreateTaskInput struct {
	Title           string     `json:"title"`
	Detail          string     `json:"detail"`
	SubmissionInfo  string     `json:"submission_info"`
	Reward          int        `json:"reward"`
	RequiredWorkers int        `json:"required_workers"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
}

// UpdateTaskInput carries the buyer-editable content fields. Nil means leave
// unchanged. Reward, slots and deadline are frozen at creation.
type UpdateTaskInput struct {
	Title          *string `json:"title,omitempty"`
	Detail         *string `json:"detail,omitempty"`
	SubmissionInfo *string `json:"submission_info,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
}

// TaskService owns the task lifecycle: creation escrows the full cost from
// the buyer, deletion refunds whatever escrow the unfilled slots still hold.
type TaskService struct {
	tasks       TaskStore
	submissions TaskSubmissionStore
	ledger      ledger.Service
	logger      *slog.Logger
}

func NewTaskService(tasks TaskStore, submissions TaskSubmissionStore, l ledger.Service, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, submissions: submissions, ledger: l, logger: logger}
}

func (s *TaskService) validateCreate(in CreateTaskInput, now time.Time) error {
	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case in.Detail == "":
		return fmt.Errorf("%w: detail is required", ErrValidation)
	case in.SubmissionInfo == "":
		return fmt.Errorf("%w: submission_info is required", ErrValidation)
	case in.Reward <= 0:
		return fmt.Errorf("%w: reward must be positive", ErrValidation)
	case in.RequiredWorkers <= 0:
		return fmt.Errorf("%w: required_workers must be positive", ErrValidation)
	case in.Deadline != nil && !in.Deadline.After(now):
		return fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}
	return nil
}

// Create validates the input, escrows reward × required_workers from the
// buyer and persists the task, all in one transaction. A buyer who cannot
// cover the escrow gets *ledger.InsufficientCoinsError and no task.
func (s *TaskService) Create(ctx context.Context, actor *models.Account, in CreateTaskInput) (*models.Task, error) {
	if err := Authorize(actor, ActionCreateTask, Resource{OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	if err := s.validateCreate(in, time.Now()); err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:              uuid.New(),
		BuyerID:         actor.ID,
		Title:           in.Title,
		Detail:          in.Detail,
		SubmissionInfo:  in.SubmissionInfo,
		Reward:          in.Reward,
		RequiredWorkers: in.RequiredWorkers,
		Deadline:        in.Deadline,
		Status:          models.TaskStatusActive,
		ImageURL:        in.ImageURL,
	}

	tx, err := s.tasks.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.ledger.Debit(ctx, tx, actor.ID, task.TotalCost(), models.LedgerEntryTaskEscrow, &task.ID); err != nil {
		return nil, err
	}
	if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID, "buyer_id", actor.ID,
		"reward", task.Reward, "required_workers", task.RequiredWorkers,
		"escrow", task.TotalCost())
	return task, nil
}

// Update edits content fields only, and only while the task is active and no
// submission has been approved yet.
func (s *TaskService) Update(ctx context.Context, actor *models.Account, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionUpdateTask, Resource{OwnerID: task.BuyerID}); err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusActive {
		return nil, ErrTaskNotActive
	}
	if task.CompletedCount > 0 {
		return nil, ErrTaskStarted
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		task.Title = *in.Title
	}
	if in.Detail != nil {
		if *in.Detail == "" {
			return nil, fmt.Errorf("%w: detail cannot be empty", ErrValidation)
		}
		task.Detail = *in.Detail
	}
	if in.SubmissionInfo != nil {
		if *in.SubmissionInfo == "" {
			return nil, fmt.Errorf("%w: submission_info cannot be empty", ErrValidation)
		}
		task.SubmissionInfo = *in.SubmissionInfo
	}
	if in.ImageURL != nil {
		task.ImageURL = *in.ImageURL
	}

	if err := s.tasks.UpdateContent(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Delete removes the task, its pending submissions, and refunds the escrow
// still held by unfilled slots to the buyer. When an admin deletes someone
// else's task the deletion is punitive: no refund is issued and the escrow
// for unfilled slots is forfeited.
func (s *TaskService) Delete(ctx context.Context, actor *models.Account, taskID uuid.UUID) error {
	tx, err := s.tasks.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock task: %w", err)
	}
	if err := Authorize(actor, ActionDeleteTask, Resource{OwnerID: task.BuyerID}); err != nil {
		return err
	}

	refund := task.RemainingSlots() * task.Reward
	skipRefund := actor.Role == models.RoleAdmin && actor.ID != task.BuyerID
	if refund > 0 && !skipRefund {
		if _, err := s.ledger.Credit(ctx, tx, task.BuyerID, refund, models.LedgerEntryTaskRefund, &task.ID); err != nil {
			return err
		}
	}

	if err := s.submissions.DeletePendingByTaskTx(ctx, tx, task.ID); err != nil {
		return fmt.Errorf("delete pending submissions: %w", err)
	}
	if err := s.tasks.DeleteTx(ctx, tx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if skipRefund && refund > 0 {
		s.logger.Warn("task removed by admin, escrow forfeited",
			"task_id", task.ID, "buyer_id", task.BuyerID, "admin_id", actor.ID, "forfeited", refund)
	} else {
		s.logger.Info("task deleted",
			"task_id", task.ID, "buyer_id", task.BuyerID, "refund", refund)
	}
	return nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.get(ctx, id)
}

// ListFor returns the task view for the actor's role: workers see tasks they
// can still submit to, buyers see their own, admins see everything.
func (s *TaskService) ListFor(ctx context.Context, actor *models.Account) ([]*models.Task, error) {
	switch actor.Role {
	case models.RoleWorker:
		return s.tasks.ListAvailable(ctx)
	case models.RoleBuyer:
		return s.tasks.ListByBuyerID(ctx, actor.ID)
	case models.RoleAdmin:
		return s.tasks.List(ctx)
	}
	return nil, ErrForbidden
}

func (s *TaskService) get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}
