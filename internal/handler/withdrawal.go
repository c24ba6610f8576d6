package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aurapay/aurapay/internal/auth"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/logging"
)

type withdrawalService interface {
	RequestWithdrawal(ctx context.Context, identity, amount string) (*domain.Withdrawal, error)
}

type WithdrawalHandler struct {
	withdrawals withdrawalService
}

func NewWithdrawalHandler(withdrawals withdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

type createWithdrawalRequest struct {
	Amount string `json:"amount"`
}

func (r createWithdrawalRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	return errs
}

type withdrawalDTO struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toWithdrawalDTO(w *domain.Withdrawal) withdrawalDTO {
	return withdrawalDTO{
		ID:        w.ID.String(),
		Amount:    domain.FormatAmount(w.Amount),
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt,
	}
}

func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wd, err := h.withdrawals.RequestWithdrawal(r.Context(), identity, req.Amount)
	if err != nil {
		log.Warn("withdrawal request failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, toWithdrawalDTO(wd))
}
