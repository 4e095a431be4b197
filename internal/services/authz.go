package services

import (
	"errors"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/models"
)

// ErrForbidden is returned when the authorization gate denies an operation.
// Denials have no partial effects: the gate runs before any mutation.
var ErrForbidden = errors.New("forbidden")

// Action names a mutating or privileged operation on the platform.
type Action string

const (
	ActionCreateTask        Action = "create_task"
	ActionUpdateTask        Action = "update_task"
	ActionDeleteTask        Action = "delete_task"
	ActionCreateSubmission  Action = "create_submission"
	ActionReviewSubmission  Action = "review_submission"
	ActionCreateWithdrawal  Action = "create_withdrawal"
	ActionResolveWithdrawal Action = "resolve_withdrawal"
	ActionChangeRole        Action = "change_role"
	ActionDeleteAccount     Action = "delete_account"
)

// Resource identifies what the action targets. OwnerID is the account that
// owns the resource: the buyer for tasks and submissions under review, the
// worker for submissions and withdrawals, the targeted account itself for
// role changes and deletions.
type Resource struct {
	OwnerID uuid.UUID
}

// Authorize is the stateless authorization gate. It maps a principal and role
// to the operations they may perform and returns ErrForbidden on denial.
// Consulted before every mutating operation; read endpoints scope their
// queries to the principal instead.
//
// No role may change its own role or delete its own account, admins included.
func Authorize(principal *models.Account, action Action, res Resource) error {
	if principal == nil {
		return ErrForbidden
	}
	own := res.OwnerID == principal.ID

	switch action {
	case ActionCreateTask, ActionUpdateTask:
		if principal.Role == models.RoleBuyer && own {
			return nil
		}
	case ActionDeleteTask:
		// Buyers delete their own tasks (with refund); admins delete any.
		if principal.Role == models.RoleBuyer && own {
			return nil
		}
		if principal.Role == models.RoleAdmin {
			return nil
		}
	case ActionReviewSubmission:
		// res.OwnerID is the task's buyer.
		if principal.Role == models.RoleBuyer && own {
			return nil
		}
	case ActionCreateSubmission, ActionCreateWithdrawal:
		if principal.Role == models.RoleWorker && own {
			return nil
		}
	case ActionResolveWithdrawal:
		if principal.Role == models.RoleAdmin {
			return nil
		}
	case ActionChangeRole, ActionDeleteAccount:
		if principal.Role == models.RoleAdmin && !own {
			return nil
		}
	}
	return ErrForbidden
}
