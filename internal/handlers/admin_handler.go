package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
	"github.com/microearn/backend/internal/services"
)

// AdminAccountStore is the account repository surface the admin endpoints
// need.
type AdminAccountStore interface {
	List(ctx context.Context) ([]*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ActiveTaskCounter reports how many active tasks a buyer still has.
type ActiveTaskCounter interface {
	CountActiveByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error)
}

// PendingWithdrawalChecker reports whether a worker has an unsettled request.
type PendingWithdrawalChecker interface {
	HasPendingByWorkerID(ctx context.Context, workerID uuid.UUID) (bool, error)
}

// AdminHandler serves the /admin endpoints.
type AdminHandler struct {
	Accounts    AdminAccountStore
	Tasks       ActiveTaskCounter
	Withdrawals PendingWithdrawalChecker
	Logger      *slog.Logger
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.List(r.Context())
	if err != nil {
		h.Logger.Error("list users", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole handles PATCH /admin/users/{id}/role. Admins cannot change
// their own role.
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := services.Authorize(acc, services.ActionChangeRole, services.Resource{OwnerID: id}); err != nil {
		respondError(w, h.Logger, err)
		return
	}
	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !models.ValidRole(req.Role) {
		fail(w, http.StatusBadRequest, "invalid role")
		return
	}
	target, err := h.Accounts.GetByID(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.Accounts.UpdateRole(r.Context(), target.ID, req.Role); err != nil {
		h.Logger.Error("change role", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.Logger.Info("role changed", "account_id", target.ID, "from", target.Role, "to", req.Role, "admin_id", acc.ID)
	target.Role = req.Role
	writeJSON(w, http.StatusOK, target)
}

// DeleteUser handles DELETE /admin/users/{id}. Deletion is refused while the
// account still has money in motion: a buyer with active tasks holds escrow,
// a worker with a pending withdrawal has an unsettled claim.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := services.Authorize(acc, services.ActionDeleteAccount, services.Resource{OwnerID: id}); err != nil {
		respondError(w, h.Logger, err)
		return
	}
	target, err := h.Accounts.GetByID(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, "not found")
		return
	}

	switch target.Role {
	case models.RoleBuyer:
		n, err := h.Tasks.CountActiveByBuyer(r.Context(), target.ID)
		if err != nil {
			h.Logger.Error("count active tasks", "error", err)
			fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		if n > 0 {
			fail(w, http.StatusConflict, "account has active tasks holding escrow")
			return
		}
	case models.RoleWorker:
		pending, err := h.Withdrawals.HasPendingByWorkerID(r.Context(), target.ID)
		if err != nil {
			h.Logger.Error("check pending withdrawal", "error", err)
			fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		if pending {
			fail(w, http.StatusConflict, "account has a pending withdrawal")
			return
		}
	}

	if err := h.Accounts.Delete(r.Context(), target.ID); err != nil {
		h.Logger.Error("delete user", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.Logger.Info("account deleted", "account_id", target.ID, "role", target.Role, "admin_id", acc.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
