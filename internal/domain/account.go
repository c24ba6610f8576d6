package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the per-tenant ledger root. Identity is the opaque external
// identity (an email in practice) that the session layer resolves before any
// core operation runs. Balance is in minor units and is mutated only through
// the engine's settlement transactions.
type Account struct {
	ID        uuid.UUID
	Identity  string
	Balance   int64
	Version   int64
	Verified  bool
	CreatedAt time.Time
}
