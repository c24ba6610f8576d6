package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "created"
	OrderStatusCaptured OrderStatus = "captured"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusExpired  OrderStatus = "expired"
)

// PendingOrder is the ephemeral record bridging the gateway's two-phase
// order/capture protocol. It is keyed by the gateway-assigned order id,
// carries the fee quote computed once at creation time, and transitions at
// most once from created to a terminal status. EntryID points at the ledger
// entry written when the order was captured.
type PendingOrder struct {
	ID                 string
	AccountID          uuid.UUID
	RecipientAccountID *uuid.UUID
	Requested          int64
	Gross              int64
	Fee                int64
	Net                int64
	Status             OrderStatus
	EntryID            *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCaptured || s == OrderStatusFailed || s == OrderStatusExpired
}
