package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/gateway"
)

const maxPayoutAttempts = 3

type payoutQueue interface {
	GetQueued(ctx context.Context, limit int) ([]domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error
}

type payoutSubmitter interface {
	SubmitPayout(ctx context.Context, req gateway.PayoutRequest) (string, error)
}

// PayoutWorker drains the queued withdrawals and submits them to the
// gateway's payouts endpoint. The withdrawal row's own id is the batch id,
// so a resubmission after a crash lands on the same gateway-side key.
type PayoutWorker struct {
	queue    payoutQueue
	gateway  payoutSubmitter
	logger   *slog.Logger
	currency domain.Currency
	interval time.Duration
}

func NewPayoutWorker(queue payoutQueue, gw payoutSubmitter, logger *slog.Logger, currency domain.Currency, interval time.Duration) *PayoutWorker {
	return &PayoutWorker{
		queue:    queue,
		gateway:  gw,
		logger:   logger,
		currency: currency,
		interval: interval,
	}
}

func (p *PayoutWorker) Start(ctx context.Context) {
	p.logger.Info("payout worker started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("payout worker stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *PayoutWorker) poll(ctx context.Context) {
	ws, err := p.queue.GetQueued(ctx, 10)
	if err != nil {
		p.logger.Error("failed to fetch queued withdrawals", "error", err)
		return
	}

	for _, w := range ws {
		if err := p.submit(ctx, w); err != nil {
			p.logger.Error("failed to submit payout",
				"withdrawal_id", w.ID,
				"error", err,
			)
		}
	}
}

func (p *PayoutWorker) submit(ctx context.Context, w domain.Withdrawal) error {
	batchRef, err := p.gateway.SubmitPayout(ctx, gateway.PayoutRequest{
		BatchID:  w.ID.String(),
		Receiver: w.Receiver,
		Amount:   w.Amount,
		Currency: p.currency,
	})
	if err != nil {
		if w.Attempts+1 >= maxPayoutAttempts {
			p.logger.Error("payout exhausted retries",
				"withdrawal_id", w.ID,
				"attempts", w.Attempts+1,
				"error", err,
			)
			return p.queue.UpdateStatus(ctx, w.ID, domain.WithdrawalStatusFailed)
		}
		// Leave it queued; the next poll retries with the same batch id.
		return p.queue.UpdateStatus(ctx, w.ID, domain.WithdrawalStatusQueued)
	}

	p.logger.Info("payout submitted",
		"withdrawal_id", w.ID,
		"batch_ref", batchRef,
		"amount", w.Amount,
	)
	return p.queue.UpdateStatus(ctx, w.ID, domain.WithdrawalStatusSubmitted)
}
