package engine

import (
	"context"
	"log/slog"
	"time"
)

type expirableOrders interface {
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderSweeper expires pending orders whose reservation was never captured.
// Expiry only closes the order; no balance was touched during the reserve
// phase, so there is nothing to reverse.
type OrderSweeper struct {
	orders   expirableOrders
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration
}

func NewOrderSweeper(orders expirableOrders, logger *slog.Logger, ttl, interval time.Duration) *OrderSweeper {
	return &OrderSweeper{
		orders:   orders,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
	}
}

func (s *OrderSweeper) Start(ctx context.Context) {
	s.logger.Info("order sweeper started", "ttl", s.ttl, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("order sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OrderSweeper) sweep(ctx context.Context) {
	expired, err := s.orders.ExpireBefore(ctx, now().Add(-s.ttl))
	if err != nil {
		s.logger.Error("failed to expire stale orders", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Info("expired stale orders", "count", expired)
	}
}
