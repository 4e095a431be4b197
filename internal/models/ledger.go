package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin ledger entry_type enums. Entries are append-only; Amount is always
// positive and the entry type determines the sign of the balance change.
const (
	LedgerEntryTaskEscrow        = "task_escrow"
	LedgerEntryTaskRefund        = "task_refund"
	LedgerEntrySubmissionReward  = "submission_reward"
	LedgerEntryWithdrawalDebit   = "withdrawal_debit"
	LedgerEntryRegistrationBonus = "registration_bonus"
)

// DebitEntry reports whether entryType reduces the account balance.
func DebitEntry(entryType string) bool {
	return entryType == LedgerEntryTaskEscrow || entryType == LedgerEntryWithdrawalDebit
}

type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	RefID        *uuid.UUID `json:"ref_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
