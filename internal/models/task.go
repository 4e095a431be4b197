package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status enums. A task becomes completed when completed_count reaches
// required_workers; cancelled is reserved for soft-cancel flows.
const (
	TaskStatusActive    = "active"
	TaskStatusCompleted = "completed"
	TaskStatusCancelled = "cancelled"
)

type Task struct {
	ID              uuid.UUID  `json:"id"`
	BuyerID         uuid.UUID  `json:"buyer_id"`
	Title           string     `json:"title"`
	Detail          string     `json:"detail"`
	SubmissionInfo  string     `json:"submission_info"`
	Reward          int        `json:"reward"`
	RequiredWorkers int        `json:"required_workers"`
	CompletedCount  int        `json:"completed_count"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Status          string     `json:"status"`
	ImageURL        string     `json:"image_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TotalCost is the escrow debited from the buyer at creation.
func (t *Task) TotalCost() int {
	return t.Reward * t.RequiredWorkers
}

// RemainingSlots is the number of unconsumed worker slots; the refund on
// deletion is RemainingSlots × Reward.
func (t *Task) RemainingSlots() int {
	return t.RequiredWorkers - t.CompletedCount
}

// Expired reports whether the task's deadline has passed. Expiry is passive:
// an expired task stops accepting submissions but is never auto-refunded.
func (t *Task) Expired(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now)
}
