package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/logging"
)

// Client talks to the external payment gateway over its REST surface: OAuth2
// client-credentials authentication, order creation, capture, and payouts.
// It holds no business state beyond the cached access token.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate returns a bearer token, reusing the cached one while it has at
// least a minute of life left.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("Authenticate: build request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Authenticate: %w", mapTransportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Authenticate: status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("Authenticate: decode: %w", domain.ErrGatewayUnavailable)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("Authenticate: empty token: %w", domain.ErrGatewayUnavailable)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

type amountPayload struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount amountPayload `json:"amount"`
	Payee  *payeePayload `json:"payee,omitempty"`
}

type payeePayload struct {
	EmailAddress string `json:"email_address"`
}

type createOrderPayload struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder reserves an intended payment for the gross amount and returns
// the gateway-assigned order id.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	log := logging.FromContext(ctx)

	payload := createOrderPayload{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: amountPayload{
				CurrencyCode: string(req.Currency),
				Value:        domain.FormatAmount(req.Gross),
			},
		}},
	}
	if req.RecipientHint != "" {
		payload.PurchaseUnits[0].Payee = &payeePayload{EmailAddress: req.RecipientHint}
	}

	var out orderResponse
	if err := c.postJSON(ctx, "/v2/checkout/orders", payload, &out); err != nil {
		if errors.Is(err, errGatewayDeclined) {
			return "", fmt.Errorf("CreateOrder: %v: %w", err, domain.ErrGatewayUnavailable)
		}
		return "", fmt.Errorf("CreateOrder: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("CreateOrder: gateway returned no order id: %w", domain.ErrGatewayUnavailable)
	}

	log.Info("gateway order created", "order_id", out.ID, "gross", req.Gross)
	return out.ID, nil
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string        `json:"id"`
				Status string        `json:"status"`
				Amount amountPayload `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder finalizes a gateway order. A declined capture is not an error
// at this layer: the result comes back with Settled false and the engine
// decides how to record it.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	log := logging.FromContext(ctx)

	var out captureResponse
	err := c.postJSON(ctx, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, &out)
	if err != nil {
		if errors.Is(err, errGatewayDeclined) {
			log.Info("gateway declined capture", "order_id", orderID)
			return &CaptureResult{Settled: false}, nil
		}
		return nil, fmt.Errorf("CaptureOrder: %w", err)
	}

	if out.Status != "COMPLETED" {
		log.Info("gateway capture not completed", "order_id", orderID, "status", out.Status)
		return &CaptureResult{Settled: false}, nil
	}

	txID, gross, err := extractCapture(&out)
	if err != nil {
		return nil, fmt.Errorf("CaptureOrder: %w", err)
	}

	log.Info("gateway capture completed", "order_id", orderID, "gateway_tx_id", txID, "gross", gross)
	return &CaptureResult{Settled: true, GatewayTxID: txID, Gross: gross}, nil
}

func extractCapture(resp *captureResponse) (string, int64, error) {
	for _, pu := range resp.PurchaseUnits {
		for _, cap := range pu.Payments.Captures {
			if cap.Status != "COMPLETED" {
				continue
			}
			gross, err := domain.ParseAmount(cap.Amount.Value)
			if err != nil {
				return "", 0, fmt.Errorf("extractCapture: bad amount %q: %w", cap.Amount.Value, domain.ErrGatewayUnavailable)
			}
			return cap.ID, gross, nil
		}
	}
	return "", 0, fmt.Errorf("extractCapture: no completed capture in response: %w", domain.ErrGatewayUnavailable)
}

type payoutPayload struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
	} `json:"sender_batch_header"`
	Items []struct {
		RecipientType string        `json:"recipient_type"`
		Receiver      string        `json:"receiver"`
		Amount        amountPayload `json:"amount"`
	} `json:"items"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
	} `json:"batch_header"`
}

// SubmitPayout hands one withdrawal to the gateway's payout endpoint and
// returns the gateway batch id.
func (c *Client) SubmitPayout(ctx context.Context, req PayoutRequest) (string, error) {
	var payload payoutPayload
	payload.SenderBatchHeader.SenderBatchID = req.BatchID
	payload.Items = make([]struct {
		RecipientType string        `json:"recipient_type"`
		Receiver      string        `json:"receiver"`
		Amount        amountPayload `json:"amount"`
	}, 1)
	payload.Items[0].RecipientType = "EMAIL"
	payload.Items[0].Receiver = req.Receiver
	payload.Items[0].Amount = amountPayload{
		CurrencyCode: string(req.Currency),
		Value:        domain.FormatAmount(req.Amount),
	}

	var out payoutResponse
	if err := c.postJSON(ctx, "/v1/payments/payouts", payload, &out); err != nil {
		return "", fmt.Errorf("SubmitPayout: %w", err)
	}
	return out.BatchHeader.PayoutBatchID, nil
}

// errGatewayDeclined marks a 4xx from the gateway on a capture: the gateway
// is reachable but refused the operation.
var errGatewayDeclined = errors.New("gateway declined")

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postJSON: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("postJSON: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("postJSON: decode: %w", domain.ErrGatewayUnavailable)
		}
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("postJSON: status %d: %s: %w", resp.StatusCode, string(respBody), errGatewayDeclined)
	default:
		return fmt.Errorf("postJSON: status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}
}

func mapTransportErr(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%v: %w", err, domain.ErrGatewayTimeout)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrGatewayUnavailable)
}
