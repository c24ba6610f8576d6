package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/config"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/fee"
	"github.com/aurapay/aurapay/internal/gateway"
)

type accountRepo interface {
	GetOrCreate(ctx context.Context, identity string) (*domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance, newVersion int64) error
	SetVerified(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByGatewayTxID(ctx context.Context, gatewayTxID string) (*domain.LedgerEntry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	SumCredits(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type orderRepo interface {
	Create(ctx context.Context, order *domain.PendingOrder) error
	GetByID(ctx context.Context, id string) (*domain.PendingOrder, error)
	MarkCaptured(ctx context.Context, tx *sql.Tx, id string, entryID uuid.UUID) error
	MarkFailed(ctx context.Context, id string) error
}

type withdrawalRepo interface {
	Create(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.CaptureResult, error)
}

// Engine reconciles the gateway's two-phase order/capture protocol into the
// ledger. All balance mutations flow through its settlement transactions;
// every operation takes the acting identity explicitly.
type Engine struct {
	accounts    accountRepo
	ledger      ledgerRepo
	orders      orderRepo
	withdrawals withdrawalRepo
	gateway     gatewayClient
	fees        *fee.Policy
	db          *sql.DB

	currency      domain.Currency
	withdrawalMin int64
}

func New(
	accounts accountRepo,
	ledger ledgerRepo,
	orders orderRepo,
	withdrawals withdrawalRepo,
	gw gatewayClient,
	fees *fee.Policy,
	db *sql.DB,
	cfg *config.Config,
) *Engine {
	return &Engine{
		accounts:      accounts,
		ledger:        ledger,
		orders:        orders,
		withdrawals:   withdrawals,
		gateway:       gw,
		fees:          fees,
		db:            db,
		currency:      domain.Currency(cfg.Currency),
		withdrawalMin: cfg.WithdrawalMin,
	}
}

// AccountSummary is the dashboard read model: current balance plus lifetime
// credits received.
type AccountSummary struct {
	Account       *domain.Account
	TotalReceived int64
}

func (e *Engine) Summary(ctx context.Context, identity string) (*AccountSummary, error) {
	acct, err := e.accounts.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	received, err := e.ledger.SumCredits(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	return &AccountSummary{Account: acct, TotalReceived: received}, nil
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func (e *Engine) History(ctx context.Context, identity string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	acct, err := e.accounts.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}

	entries, err := e.ledger.GetByAccountID(ctx, acct.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return entries, nil
}

func now() time.Time { return time.Now().UTC() }
