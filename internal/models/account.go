package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles. Role is immutable except by admin action, and an admin can
// never change their own role.
const (
	RoleWorker = "Worker"
	RoleBuyer  = "Buyer"
	RoleAdmin  = "Admin"
)

// ValidRole reports whether role is one of the three platform roles.
func ValidRole(role string) bool {
	return role == RoleWorker || role == RoleBuyer || role == RoleAdmin
}

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Coins        int       `json:"coins"`
	ImageURL     string    `json:"image_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
