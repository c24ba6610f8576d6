package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryKindDeposit    EntryKind = "deposit"
	EntryKindSend       EntryKind = "send"
	EntryKindWithdrawal EntryKind = "withdrawal"
)

// LedgerEntry is one immutable, signed movement against an account's balance.
// Amount is positive for credits and negative for debits. GatewayTxID carries
// the gateway's settled transaction identifier for entries that originate in
// a capture; its system-wide uniqueness is what makes settlement replays
// harmless. Withdrawal entries have no gateway transaction.
type LedgerEntry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Kind        EntryKind
	Amount      int64
	Fee         int64
	GatewayTxID *string
	CreatedAt   time.Time
}
