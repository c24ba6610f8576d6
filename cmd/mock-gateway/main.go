package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/logging"
)

// In-memory stand-in for the payment gateway, for local development. Orders
// whose gross amount ends in ".99" are declined at capture so failure paths
// can be exercised.

type mockOrder struct {
	ID       string
	Value    string
	Currency string
	Status   string
}

type mockGateway struct {
	mu     sync.Mutex
	token  string
	orders map[string]*mockOrder
	seq    int
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	g := &mockGateway{
		token:  uuid.NewString(),
		orders: make(map[string]*mockOrder),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /v1/oauth2/token", g.handleToken)
	mux.HandleFunc("POST /v2/checkout/orders", g.handleCreateOrder)
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", g.handleCapture)
	mux.HandleFunc("POST /v1/payments/payouts", g.handlePayout)

	addr := ":8081"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	slog.Info("mock gateway started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (g *mockGateway) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": g.token,
		"expires_in":   3600,
	})
}

func (g *mockGateway) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+g.token
}

func (g *mockGateway) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	var req struct {
		Intent        string `json:"intent"`
		PurchaseUnits []struct {
			Amount struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PurchaseUnits) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed order"})
		return
	}

	g.mu.Lock()
	g.seq++
	order := &mockOrder{
		ID:       fmt.Sprintf("MOCK-ORD-%06d", g.seq),
		Value:    req.PurchaseUnits[0].Amount.Value,
		Currency: req.PurchaseUnits[0].Amount.CurrencyCode,
		Status:   "CREATED",
	}
	g.orders[order.ID] = order
	g.mu.Unlock()

	slog.Info("order created", "order_id", order.ID, "value", order.Value)
	writeJSON(w, http.StatusCreated, map[string]string{"id": order.ID, "status": order.Status})
}

func (g *mockGateway) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	if order.Status == "COMPLETED" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "order already captured"})
		return
	}

	if strings.HasSuffix(order.Value, ".99") {
		order.Status = "DECLINED"
		slog.Info("capture declined", "order_id", order.ID, "value", order.Value)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "instrument declined"})
		return
	}

	order.Status = "COMPLETED"
	txID := "MOCK-TX-" + uuid.NewString()
	slog.Info("capture completed", "order_id", order.ID, "gateway_tx_id", txID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     order.ID,
		"status": "COMPLETED",
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]any{{
					"id":     txID,
					"status": "COMPLETED",
					"amount": map[string]string{
						"currency_code": order.Currency,
						"value":         order.Value,
					},
				}},
			},
		}},
	})
}

func (g *mockGateway) handlePayout(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	var req struct {
		SenderBatchHeader struct {
			SenderBatchID string `json:"sender_batch_id"`
		} `json:"sender_batch_header"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderBatchHeader.SenderBatchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payout"})
		return
	}

	slog.Info("payout accepted", "sender_batch_id", req.SenderBatchHeader.SenderBatchID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"batch_header": map[string]string{
			"payout_batch_id": "MOCK-BATCH-" + req.SenderBatchHeader.SenderBatchID,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
