package domain

import (
	"time"

	"github.com/google/uuid"
)

type WithdrawalStatus string

const (
	WithdrawalStatusQueued    WithdrawalStatus = "queued"
	WithdrawalStatusSubmitted WithdrawalStatus = "submitted"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal is the queued payout backing a withdrawal ledger entry. The
// balance is already debited when this row is written; the payout worker
// only moves the reserved funds out through the gateway.
type Withdrawal struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Receiver    string
	Amount      int64
	Status      WithdrawalStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}
