package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aurapay/aurapay/internal/auth"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/engine"
	"github.com/aurapay/aurapay/internal/logging"
)

type orderService interface {
	CreateOrder(ctx context.Context, identity, amount, recipient string) (*domain.PendingOrder, error)
	SettleOrder(ctx context.Context, orderID string) (*engine.SettleResult, error)
}

type OrderHandler struct {
	orders orderService
}

func NewOrderHandler(orders orderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (r createOrderRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	return errs
}

type orderDTO struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Requested string    `json:"requested"`
	Gross     string    `json:"gross"`
	Fee       string    `json:"fee"`
	Net       string    `json:"net"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderDTO(o *domain.PendingOrder) orderDTO {
	return orderDTO{
		OrderID:   o.ID,
		Status:    string(o.Status),
		Requested: domain.FormatAmount(o.Requested),
		Gross:     domain.FormatAmount(o.Gross),
		Fee:       domain.FormatAmount(o.Fee),
		Net:       domain.FormatAmount(o.Net),
		CreatedAt: o.CreatedAt,
	}
}

type settlementDTO struct {
	OrderID     string    `json:"order_id"`
	EntryID     string    `json:"entry_id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Fee         string    `json:"fee"`
	GatewayTxID string    `json:"gateway_tx_id"`
	Balance     string    `json:"balance"`
	SettledAt   time.Time `json:"settled_at"`
}

func toSettlementDTO(orderID string, res *engine.SettleResult) settlementDTO {
	dto := settlementDTO{
		OrderID:   orderID,
		EntryID:   res.Entry.ID.String(),
		Kind:      string(res.Entry.Kind),
		Amount:    domain.FormatAmount(res.Entry.Amount),
		Fee:       domain.FormatAmount(res.Entry.Fee),
		Balance:   domain.FormatAmount(res.Balance),
		SettledAt: res.Entry.CreatedAt,
	}
	if res.Entry.GatewayTxID != nil {
		dto.GatewayTxID = *res.Entry.GatewayTxID
	}
	return dto
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), identity, req.Amount, req.Recipient)
	if err != nil {
		log.Warn("order creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/orders/%s", order.ID))
	RespondSuccess(w, http.StatusCreated, toOrderDTO(order))
}

func (h *OrderHandler) Capture(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	res, err := h.orders.SettleOrder(r.Context(), orderID)
	if err != nil {
		log.Warn("order capture failed", "order_id", orderID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSettlementDTO(orderID, res))
}
