package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/logging"
)

// RequestWithdrawal debits the caller's balance immediately and queues the
// payout for asynchronous submission. The debit and the queued payout commit
// in one transaction, so a crash never leaves money deducted without a
// payout on record. Requests below the configured floor are rejected before
// any account is touched.
func (e *Engine) RequestWithdrawal(ctx context.Context, identity, amount string) (*domain.Withdrawal, error) {
	log := logging.FromContext(ctx)

	requested, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}
	if requested < e.withdrawalMin {
		return nil, fmt.Errorf("RequestWithdrawal: amount %d below minimum %d: %w", requested, e.withdrawalMin, domain.ErrBelowMinimum)
	}

	acct, err := e.accounts.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := e.accounts.GetForUpdate(ctx, tx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}
	if locked.Balance < requested {
		return nil, fmt.Errorf("RequestWithdrawal: balance %d, requested %d: %w", locked.Balance, requested, domain.ErrInsufficientFunds)
	}

	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: locked.ID,
		Kind:      domain.EntryKindWithdrawal,
		Amount:    -requested,
		CreatedAt: now(),
	}
	if err := e.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	w := &domain.Withdrawal{
		ID:        uuid.New(),
		EntryID:   entry.ID,
		AccountID: locked.ID,
		Receiver:  identity,
		Amount:    requested,
		Status:    domain.WithdrawalStatusQueued,
		CreatedAt: entry.CreatedAt,
	}
	if err := e.withdrawals.Create(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	if err := e.accounts.UpdateBalance(ctx, tx, locked.ID, locked.Balance-requested, locked.Version+1); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: commit: %w", err)
	}

	log.Info("withdrawal queued",
		"withdrawal_id", w.ID,
		"account_id", locked.ID,
		"amount", requested,
	)

	return w, nil
}
