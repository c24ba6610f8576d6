package gateway

import "github.com/aurapay/aurapay/internal/domain"

// OrderRequest asks the gateway to reserve an intended payment for the gross
// amount. RecipientHint, when set, routes the eventual funds to a third party
// instead of the platform account.
type OrderRequest struct {
	Gross         int64
	Currency      domain.Currency
	RecipientHint string
}

// CaptureResult is the gateway's confirmation for a capture call. Settled is
// false when the gateway processed the request but declined to move funds.
// GatewayTxID is the settled transaction identifier the ledger keys
// idempotency on; Gross is the amount the gateway reports as captured.
type CaptureResult struct {
	Settled     bool
	GatewayTxID string
	Gross       int64
}

// PayoutRequest submits one queued withdrawal for asynchronous processing.
// BatchID doubles as the gateway-side idempotency key.
type PayoutRequest struct {
	BatchID  string
	Receiver string
	Amount   int64
	Currency domain.Currency
}
