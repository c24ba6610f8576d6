package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount      = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive amount with at most two decimal places"}
	ErrBelowMinimum       = &AppError{http.StatusUnprocessableEntity, "BELOW_MINIMUM", "Amount is below the withdrawal minimum"}
	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrOrderNotFound      = &AppError{http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found"}
	ErrOrderClosed        = &AppError{http.StatusConflict, "ORDER_CLOSED", "Order is no longer open for capture"}
	ErrCaptureFailed      = &AppError{http.StatusUnprocessableEntity, "CAPTURE_FAILED", "The gateway declined to capture this order"}
	ErrGatewayUnavailable = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway is unavailable"}
	ErrGatewayTimeout     = &AppError{http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment gateway timed out"}
	ErrVersionConflict    = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
)
