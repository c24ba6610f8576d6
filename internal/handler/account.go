package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aurapay/aurapay/internal/auth"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/engine"
	"github.com/aurapay/aurapay/internal/logging"
)

type accountService interface {
	Summary(ctx context.Context, identity string) (*engine.AccountSummary, error)
	History(ctx context.Context, identity string, limit int) ([]domain.LedgerEntry, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type accountDTO struct {
	Identity      string    `json:"identity"`
	Balance       string    `json:"balance"`
	TotalReceived string    `json:"total_received"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type entryDTO struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Fee         string    `json:"fee"`
	GatewayTxID *string   `json:"gateway_tx_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toEntryDTO(e domain.LedgerEntry) entryDTO {
	return entryDTO{
		ID:          e.ID.String(),
		Kind:        string(e.Kind),
		Amount:      domain.FormatAmount(e.Amount),
		Fee:         domain.FormatAmount(e.Fee),
		GatewayTxID: e.GatewayTxID,
		CreatedAt:   e.CreatedAt,
	}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	summary, err := h.accounts.Summary(r.Context(), identity)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account summary failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, accountDTO{
		Identity:      summary.Account.Identity,
		Balance:       domain.FormatAmount(summary.Account.Balance),
		TotalReceived: domain.FormatAmount(summary.TotalReceived),
		Verified:      summary.Account.Verified,
		CreatedAt:     summary.Account.CreatedAt,
	})
}

func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a non-negative integer"}})
			return
		}
		limit = n
	}

	entries, err := h.accounts.History(r.Context(), identity, limit)
	if err != nil {
		logging.FromContext(r.Context()).Warn("history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
