package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TxTypeTopup            = "topup"
	TxTypePostingFee       = "posting_fee"
	TxTypePostingFeeAdjust = "posting_fee_adjust"
	TxTypeWithdrawRequest  = "withdraw_request"
	TxTypeEscrowHold       = "escrow_hold"
	TxTypeProjectCompleted = "project_completed"
	TxTypeEscrowRefund     = "escrow_refund"
)

// Transaction directions, relative to the owning user.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Transaction statuses.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusExpired   = "expired"
	TxStatusFailed    = "failed"
)

// Transaction is an append-only ledger entry. PreviousBalance and NewBalance
// snapshot the balance the entry moved (credit, total_earned, or their sum
// for withdrawals drawing on both).
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
	Type            string     `json:"type"`
	Amount          int64      `json:"amount"`
	Direction       string     `json:"direction"`
	PreviousBalance int64      `json:"previous_balance"`
	NewBalance      int64      `json:"new_balance"`
	Status          string     `json:"status"`
	Source          string     `json:"source,omitempty"`
	ExternalRef     *string    `json:"external_ref,omitempty"`
	Description     string     `json:"description,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
