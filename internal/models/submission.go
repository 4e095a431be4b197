package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission status enums. pending → approved | rejected; resolved states are
// terminal.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

type Submission struct {
	ID          uuid.UUID  `json:"id"`
	TaskID      uuid.UUID  `json:"task_id"`
	WorkerID    uuid.UUID  `json:"worker_id"`
	BuyerID     uuid.UUID  `json:"buyer_id"`
	Details     string     `json:"details"`
	Status      string     `json:"status"`
	RewardPaid  *int       `json:"reward_paid,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
