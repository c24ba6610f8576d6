package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBelowMinimum        = errors.New("amount below withdrawal minimum")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrGatewayTimeout      = errors.New("payment gateway timed out")
	ErrCaptureFailed       = errors.New("gateway declined the capture")
	ErrDuplicateSettlement = errors.New("gateway transaction already settled")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderClosed         = errors.New("order already in terminal state")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
)
