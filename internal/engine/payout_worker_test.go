package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/gateway"
)

type stubQueue struct {
	queued   []domain.Withdrawal
	statuses map[uuid.UUID]domain.WithdrawalStatus
}

func (q *stubQueue) GetQueued(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	return q.queued, nil
}

func (q *stubQueue) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error {
	if q.statuses == nil {
		q.statuses = make(map[uuid.UUID]domain.WithdrawalStatus)
	}
	q.statuses[id] = status
	return nil
}

type stubSubmitter struct {
	err      error
	requests []gateway.PayoutRequest
}

func (s *stubSubmitter) SubmitPayout(ctx context.Context, req gateway.PayoutRequest) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return "BATCH-" + req.BatchID, nil
}

func newTestWorker(q *stubQueue, s *stubSubmitter) *PayoutWorker {
	return NewPayoutWorker(q, s, slog.Default(), domain.CurrencyUSD, time.Second)
}

func TestPayoutWorker_SubmitsQueued(t *testing.T) {
	w := domain.Withdrawal{
		ID:       uuid.New(),
		Receiver: "alice@test.com",
		Amount:   1500,
		Status:   domain.WithdrawalStatusQueued,
	}
	q := &stubQueue{queued: []domain.Withdrawal{w}}
	s := &stubSubmitter{}

	newTestWorker(q, s).poll(context.Background())

	require.Len(t, s.requests, 1)
	assert.Equal(t, w.ID.String(), s.requests[0].BatchID)
	assert.Equal(t, "alice@test.com", s.requests[0].Receiver)
	assert.Equal(t, int64(1500), s.requests[0].Amount)
	assert.Equal(t, domain.WithdrawalStatusSubmitted, q.statuses[w.ID])
}

func TestPayoutWorker_RetriesOnError(t *testing.T) {
	w := domain.Withdrawal{
		ID:       uuid.New(),
		Receiver: "bob@test.com",
		Amount:   700,
		Status:   domain.WithdrawalStatusQueued,
		Attempts: 0,
	}
	q := &stubQueue{queued: []domain.Withdrawal{w}}
	s := &stubSubmitter{err: domain.ErrGatewayUnavailable}

	newTestWorker(q, s).poll(context.Background())

	assert.Equal(t, domain.WithdrawalStatusQueued, q.statuses[w.ID])
}

func TestPayoutWorker_FailsAfterMaxAttempts(t *testing.T) {
	w := domain.Withdrawal{
		ID:       uuid.New(),
		Receiver: "carol@test.com",
		Amount:   700,
		Status:   domain.WithdrawalStatusQueued,
		Attempts: maxPayoutAttempts - 1,
	}
	q := &stubQueue{queued: []domain.Withdrawal{w}}
	s := &stubSubmitter{err: errors.New("payout rejected")}

	newTestWorker(q, s).poll(context.Background())

	assert.Equal(t, domain.WithdrawalStatusFailed, q.statuses[w.ID])
}
