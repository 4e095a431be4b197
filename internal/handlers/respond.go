package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/services"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Required  int    `json:"required,omitempty"`
	Available int    `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}

// respondError maps service errors to HTTP statuses. Insufficient balances
// are 402 and carry the required/available amounts so clients can prompt a
// top-up; conflicts on already-settled state are 409.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var insufficient *ledger.InsufficientCoinsError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Success:   false,
			Message:   "insufficient coins",
			Required:  insufficient.Required,
			Available: insufficient.Available,
		})
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrBelowMinimum),
		errors.Is(err, services.ErrInvalidPaymentSystem),
		errors.Is(err, services.ErrInvalidAccountNumber):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		fail(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrDuplicateSubmission),
		errors.Is(err, services.ErrPendingExists),
		errors.Is(err, services.ErrAlreadyResolved),
		errors.Is(err, services.ErrTaskNotActive),
		errors.Is(err, services.ErrTaskStarted),
		errors.Is(err, services.ErrDeadlinePassed),
		errors.Is(err, services.ErrSlotsFull):
		fail(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
	}
}
