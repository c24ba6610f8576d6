package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/gateway"
	"github.com/aurapay/aurapay/internal/logging"
)

// CreateOrder opens the first phase: it parses and validates the requested
// amount, quotes the fee once, reserves the gross amount at the gateway, and
// records the pending order under the gateway-assigned id. Nothing is
// persisted when the gateway call fails, so the whole operation is safe to
// retry. An empty recipient routes the eventual credit to the caller's own
// account.
func (e *Engine) CreateOrder(ctx context.Context, identity, amount, recipient string) (*domain.PendingOrder, error) {
	log := logging.FromContext(ctx)

	requested, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	acct, err := e.accounts.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	var recipientID *uuid.UUID
	if recipient != "" && recipient != identity {
		racct, err := e.accounts.GetOrCreate(ctx, recipient)
		if err != nil {
			return nil, fmt.Errorf("CreateOrder: recipient: %w", err)
		}
		recipientID = &racct.ID
	}

	quote := e.fees.Compute(requested)

	orderID, err := e.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Gross:         quote.Gross,
		Currency:      e.currency,
		RecipientHint: recipient,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	ts := now()
	order := &domain.PendingOrder{
		ID:                 orderID,
		AccountID:          acct.ID,
		RecipientAccountID: recipientID,
		Requested:          requested,
		Gross:              quote.Gross,
		Fee:                quote.Fee,
		Net:                quote.Net,
		Status:             domain.OrderStatusCreated,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := e.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("CreateOrder: store: %w", err)
	}

	log.Info("order created",
		"order_id", orderID,
		"account_id", acct.ID,
		"requested", requested,
		"gross", quote.Gross,
		"fee", quote.Fee,
		"has_recipient", recipientID != nil,
	)

	return order, nil
}

// SettleResult is what the capture phase returns: the ledger entry that
// settled the order and the beneficiary's balance after it.
type SettleResult struct {
	Entry   *domain.LedgerEntry
	Balance int64
}

// SettleOrder runs the capture phase. It is idempotent: replaying it for an
// already-captured order returns the original entry without another gateway
// call or ledger write, and two settlements racing on the same order resolve
// through the gateway_tx_id uniqueness constraint to a single entry. The
// credited amount derives from the fee quote stored at order creation (or
// the gateway's own confirmed gross), never from caller input.
func (e *Engine) SettleOrder(ctx context.Context, orderID string) (*SettleResult, error) {
	log := logging.FromContext(ctx)

	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("SettleOrder: %w", err)
	}

	if order.Status == domain.OrderStatusCaptured {
		log.Info("settle replay, order already captured", "order_id", orderID)
		return e.settledResult(ctx, order)
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("SettleOrder: order %s is %s: %w", orderID, order.Status, domain.ErrOrderClosed)
	}

	capture, err := e.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("SettleOrder: %w", err)
	}

	if !capture.Settled {
		if err := e.orders.MarkFailed(ctx, orderID); err != nil && !errors.Is(err, domain.ErrOrderClosed) {
			log.Error("failed to mark order failed", "order_id", orderID, "error", err)
		}
		return nil, fmt.Errorf("SettleOrder: order %s: %w", orderID, domain.ErrCaptureFailed)
	}

	// The fee was rounded once at creation; reuse it verbatim. When the
	// gateway confirms a different gross than we ordered, its figure wins.
	net := order.Net
	if capture.Gross != order.Gross {
		log.Warn("gateway gross differs from order",
			"order_id", orderID, "order_gross", order.Gross, "captured_gross", capture.Gross)
		net = capture.Gross - order.Fee
	}
	if net <= 0 {
		if err := e.orders.MarkFailed(ctx, orderID); err != nil && !errors.Is(err, domain.ErrOrderClosed) {
			log.Error("failed to mark order failed", "order_id", orderID, "error", err)
		}
		return nil, fmt.Errorf("SettleOrder: captured gross %d below fee %d: %w", capture.Gross, order.Fee, domain.ErrCaptureFailed)
	}

	beneficiaryID := order.AccountID
	kind := domain.EntryKindDeposit
	if order.RecipientAccountID != nil {
		beneficiaryID = *order.RecipientAccountID
		kind = domain.EntryKindSend
	}

	res, err := e.credit(ctx, order, beneficiaryID, kind, net, capture.GatewayTxID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSettlement) {
			// A concurrent settle or a redelivered confirmation won the
			// race; its entry is the settlement.
			log.Info("duplicate settlement absorbed", "order_id", orderID, "gateway_tx_id", capture.GatewayTxID)
			return e.replayedResult(ctx, capture.GatewayTxID)
		}
		if errors.Is(err, domain.ErrOrderClosed) {
			order, rerr := e.orders.GetByID(ctx, orderID)
			if rerr == nil && order.Status == domain.OrderStatusCaptured {
				return e.settledResult(ctx, order)
			}
			return nil, fmt.Errorf("SettleOrder: %w", domain.ErrOrderClosed)
		}
		return nil, fmt.Errorf("SettleOrder: %w", err)
	}

	log.Info("order settled",
		"order_id", orderID,
		"gateway_tx_id", capture.GatewayTxID,
		"account_id", beneficiaryID,
		"net", net,
		"kind", kind,
	)

	return res, nil
}

// credit applies the settlement atomically: entry insert, order transition,
// and balance update commit together or not at all.
func (e *Engine) credit(ctx context.Context, order *domain.PendingOrder, beneficiaryID uuid.UUID, kind domain.EntryKind, net int64, gatewayTxID string) (*SettleResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("credit: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := e.accounts.GetForUpdate(ctx, tx, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		Kind:        kind,
		Amount:      net,
		Fee:         order.Fee,
		GatewayTxID: &gatewayTxID,
		CreatedAt:   now(),
	}
	if err := e.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}

	if err := e.orders.MarkCaptured(ctx, tx, order.ID, entry.ID); err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}

	newBalance := acct.Balance + net
	if err := e.accounts.UpdateBalance(ctx, tx, acct.ID, newBalance, acct.Version+1); err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}

	if !acct.Verified {
		if err := e.accounts.SetVerified(ctx, tx, acct.ID); err != nil {
			return nil, fmt.Errorf("credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("credit: commit: %w", err)
	}

	return &SettleResult{Entry: entry, Balance: newBalance}, nil
}

func (e *Engine) settledResult(ctx context.Context, order *domain.PendingOrder) (*SettleResult, error) {
	if order.EntryID == nil {
		return nil, fmt.Errorf("settledResult: captured order %s has no entry", order.ID)
	}
	entry, err := e.ledger.GetByID(ctx, *order.EntryID)
	if err != nil {
		return nil, fmt.Errorf("settledResult: %w", err)
	}
	return e.resultWithBalance(ctx, entry)
}

func (e *Engine) replayedResult(ctx context.Context, gatewayTxID string) (*SettleResult, error) {
	entry, err := e.ledger.GetByGatewayTxID(ctx, gatewayTxID)
	if err != nil {
		return nil, fmt.Errorf("replayedResult: %w", err)
	}
	return e.resultWithBalance(ctx, entry)
}

func (e *Engine) resultWithBalance(ctx context.Context, entry *domain.LedgerEntry) (*SettleResult, error) {
	acct, err := e.accounts.GetByID(ctx, entry.AccountID)
	if err != nil {
		return nil, fmt.Errorf("resultWithBalance: %w", err)
	}
	return &SettleResult{Entry: entry, Balance: acct.Balance}, nil
}
