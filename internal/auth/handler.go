package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/microearn/backend/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	acc, err := h.svc.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.fail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateEmail):
			h.fail(w, http.StatusConflict, "email already registered")
		default:
			h.log.Error("register failed", "error", err)
			h.fail(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, acc)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.fail(w, http.StatusBadRequest, "missing email or password")
		return
	}
	token, acc, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.fail(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("login failed", "error", err)
		h.fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: token, Account: acc})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Success: false, Message: msg})
}
