package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal status enums. Approval performs the debit and marks the request
// completed in one step, so "approved" never persists; it exists for API
// compatibility with clients that send it as the resolve decision.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

// Payment systems the platform can settle to.
var AllowedPaymentSystems = map[string]bool{
	"stripe": true,
	"bkash":  true,
	"rocket": true,
	"nagad":  true,
}

type Withdrawal struct {
	ID            uuid.UUID  `json:"id"`
	WorkerID      uuid.UUID  `json:"worker_id"`
	Coins         int        `json:"coins"`
	PaymentSystem string     `json:"payment_system"`
	AccountNumber string     `json:"account_number"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}
