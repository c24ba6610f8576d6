package engine_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapay/aurapay/internal/config"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/engine"
	"github.com/aurapay/aurapay/internal/fee"
	"github.com/aurapay/aurapay/internal/gateway"
	"github.com/aurapay/aurapay/internal/repository"
	"github.com/aurapay/aurapay/internal/testutil"
)

// fakeGateway reserves and captures orders in memory so settlement paths can
// be exercised against a real database without a gateway process.
type fakeGateway struct {
	mu             sync.Mutex
	seq            int
	orders         map[string]int64
	declineCapture bool
	captureGross   map[string]int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders:       make(map[string]int64),
		captureGross: make(map[string]int64),
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("ORD-%d", g.seq)
	g.orders[id] = req.Gross
	return id, nil
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (*gateway.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gross, ok := g.orders[orderID]
	if !ok {
		return nil, domain.ErrGatewayUnavailable
	}
	if g.declineCapture {
		return &gateway.CaptureResult{Settled: false}, nil
	}
	if override, ok := g.captureGross[orderID]; ok {
		gross = override
	}
	return &gateway.CaptureResult{
		Settled:     true,
		GatewayTxID: "TX-" + orderID,
		Gross:       gross,
	}, nil
}

func setupEngine(t *testing.T, db *sql.DB, gw *fakeGateway, mode string, percent float64) *engine.Engine {
	t.Helper()

	policy, err := fee.NewPolicy(mode, percent)
	require.NoError(t, err)

	return engine.New(
		repository.NewAccountRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewOrderRepository(db),
		repository.NewWithdrawalRepository(db),
		gw,
		policy,
		db,
		&config.Config{Currency: "USD", WithdrawalMin: 500},
	)
}

func TestSettleOrder_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "alice@test.com", "10.00", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, int64(1000), order.Requested)
	assert.Equal(t, int64(1000), order.Gross)
	assert.Equal(t, int64(0), order.Fee)

	res, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Balance)
	assert.Equal(t, int64(1000), res.Entry.Amount)
	assert.Equal(t, domain.EntryKindDeposit, res.Entry.Kind)
	require.NotNil(t, res.Entry.GatewayTxID)
	assert.Equal(t, "TX-"+order.ID, *res.Entry.GatewayTxID)

	acct := testutil.GetAccountByIdentity(t, db, "alice@test.com")
	assert.Equal(t, int64(1000), acct.Balance)
	assert.True(t, acct.Verified)
	assert.Equal(t, 1, testutil.CountEntries(t, db, acct.ID))
	assert.Equal(t, "captured", testutil.GetOrderStatus(t, db, order.ID))
}

func TestSettleOrder_Replay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "bob@test.com", "25.50", "")
	require.NoError(t, err)

	first, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	second, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, first.Balance, second.Balance)

	acct := testutil.GetAccountByIdentity(t, db, "bob@test.com")
	assert.Equal(t, int64(2550), acct.Balance)
	assert.Equal(t, 1, testutil.CountEntries(t, db, acct.ID))
}

func TestSettleOrder_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "carol@test.com", "10.00", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 4)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.SettleOrder(ctx, order.ID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err)
	}

	acct := testutil.GetAccountByIdentity(t, db, "carol@test.com")
	assert.Equal(t, int64(1000), acct.Balance)
	assert.Equal(t, 1, testutil.CountEntries(t, db, acct.ID))
}

func TestSettleOrder_CaptureDeclined(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "dave@test.com", "10.00", "")
	require.NoError(t, err)

	gw.declineCapture = true

	_, err = eng.SettleOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrCaptureFailed)

	acct := testutil.GetAccountByIdentity(t, db, "dave@test.com")
	assert.Equal(t, int64(0), acct.Balance)
	assert.False(t, acct.Verified)
	assert.Equal(t, 0, testutil.CountEntries(t, db, acct.ID))
	assert.Equal(t, "failed", testutil.GetOrderStatus(t, db, order.ID))

	// A failed order stays closed even when the gateway recovers.
	gw.declineCapture = false
	_, err = eng.SettleOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderClosed)
}

func TestSettleOrder_FeeAdded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 1.0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "erin@test.com", "100.00", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10100), order.Gross)
	assert.Equal(t, int64(100), order.Fee)
	assert.Equal(t, int64(10000), order.Net)

	res, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.Entry.Amount)
	assert.Equal(t, int64(100), res.Entry.Fee)
	assert.Equal(t, int64(10000), res.Balance)
}

func TestSettleOrder_FeeDeducted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "deducted", 1.0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "frank@test.com", "100.00", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), order.Gross)
	assert.Equal(t, int64(100), order.Fee)
	assert.Equal(t, int64(9900), order.Net)

	res, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), res.Entry.Amount)
	assert.Equal(t, int64(9900), res.Balance)
}

func TestSettleOrder_GatewayGrossWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "deducted", 1.0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "grace@test.com", "100.00", "")
	require.NoError(t, err)

	// Gateway settles a partial amount; the stored fee still applies.
	gw.captureGross[order.ID] = 5000

	res, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4900), res.Entry.Amount)
	assert.Equal(t, int64(4900), res.Balance)
}

func TestSettleOrder_Recipient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "payer@test.com", "30.00", "payee@test.com")
	require.NoError(t, err)

	res, err := eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindSend, res.Entry.Kind)
	assert.Equal(t, int64(3000), res.Balance)

	payer := testutil.GetAccountByIdentity(t, db, "payer@test.com")
	payee := testutil.GetAccountByIdentity(t, db, "payee@test.com")
	assert.Equal(t, int64(0), payer.Balance)
	assert.Equal(t, int64(3000), payee.Balance)
	assert.True(t, payee.Verified)
	assert.False(t, payer.Verified)
}

func TestSettleOrder_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)

	_, err := eng.SettleOrder(context.Background(), "ORD-missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRequestWithdrawal_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "henry@test.com", "20.00", "")
	require.NoError(t, err)
	_, err = eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	w, err := eng.RequestWithdrawal(ctx, "henry@test.com", "5.00")
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Amount)
	assert.Equal(t, domain.WithdrawalStatusQueued, w.Status)
	assert.Equal(t, "henry@test.com", w.Receiver)

	acct := testutil.GetAccountByIdentity(t, db, "henry@test.com")
	assert.Equal(t, int64(1500), acct.Balance)
	assert.Equal(t, 2, testutil.CountEntries(t, db, acct.ID))
	assert.Equal(t, acct.Balance, testutil.SumEntries(t, db, acct.ID))
	assert.Equal(t, "queued", testutil.GetWithdrawalStatus(t, db, w.ID))
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "iris@test.com", "20.00", "")
	require.NoError(t, err)
	_, err = eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = eng.RequestWithdrawal(ctx, "iris@test.com", "4.99")
	require.ErrorIs(t, err, domain.ErrBelowMinimum)

	acct := testutil.GetAccountByIdentity(t, db, "iris@test.com")
	assert.Equal(t, int64(2000), acct.Balance)
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "jane@test.com", 400)

	_, err := eng.RequestWithdrawal(ctx, "jane@test.com", "5.00")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	acct := testutil.GetAccountByIdentity(t, db, "jane@test.com")
	assert.Equal(t, int64(400), acct.Balance)
	assert.Equal(t, 0, testutil.CountEntries(t, db, acct.ID))
}

func TestRequestWithdrawal_ConcurrentOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	seeded := testutil.SeedAccount(t, db, "kate@test.com", 1000)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.RequestWithdrawal(ctx, "kate@test.com", "7.00")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failures++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(300), testutil.GetAccountBalance(t, db, seeded.ID))
}

func TestBalanceMatchesLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "deducted", 2.5)
	ctx := context.Background()

	for _, amount := range []string{"10.00", "42.17", "99.99"} {
		order, err := eng.CreateOrder(ctx, "leo@test.com", amount, "")
		require.NoError(t, err)
		_, err = eng.SettleOrder(ctx, order.ID)
		require.NoError(t, err)
	}

	_, err := eng.RequestWithdrawal(ctx, "leo@test.com", "25.00")
	require.NoError(t, err)

	acct := testutil.GetAccountByIdentity(t, db, "leo@test.com")
	assert.Equal(t, acct.Balance, testutil.SumEntries(t, db, acct.ID))

	audited, err := repository.NewLedgerRepository(db).SumByAccountID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.Balance, audited)

	entries, err := eng.History(ctx, "leo@test.com", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "mia@test.com", "50.00", "")
	require.NoError(t, err)
	_, err = eng.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = eng.RequestWithdrawal(ctx, "mia@test.com", "10.00")
	require.NoError(t, err)

	summary, err := eng.Summary(ctx, "mia@test.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), summary.Account.Balance)
	assert.Equal(t, int64(5000), summary.TotalReceived)
}

func TestMarkCaptured_OverridesExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "olga@test.com", "10.00", "")
	require.NoError(t, err)

	orders := repository.NewOrderRepository(db)
	expired, err := orders.ExpireBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), expired)

	// A capture the gateway confirmed while the sweeper was expiring the
	// order must still reach the ledger.
	acct := testutil.GetAccountByIdentity(t, db, "olga@test.com")
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	txID := "TX-" + order.ID
	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		Kind:        domain.EntryKindDeposit,
		Amount:      1000,
		GatewayTxID: &txID,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repository.NewLedgerRepository(db).Create(ctx, tx, entry))
	require.NoError(t, orders.MarkCaptured(ctx, tx, order.ID, entry.ID))
	require.NoError(t, tx.Commit())

	assert.Equal(t, "captured", testutil.GetOrderStatus(t, db, order.ID))
}

func TestMarkCaptured_FailedStaysFinal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "pam@test.com", "10.00", "")
	require.NoError(t, err)

	orders := repository.NewOrderRepository(db)
	require.NoError(t, orders.MarkFailed(ctx, order.ID))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = orders.MarkCaptured(ctx, tx, order.ID, uuid.New())
	require.ErrorIs(t, err, domain.ErrOrderClosed)
}

func TestSweeper_ExpiresStaleOrders(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newFakeGateway()
	eng := setupEngine(t, db, gw, "added", 0)
	ctx := context.Background()

	order, err := eng.CreateOrder(ctx, "nina@test.com", "10.00", "")
	require.NoError(t, err)

	orders := repository.NewOrderRepository(db)
	_, err = db.Exec(`UPDATE pending_orders SET created_at = now() - interval '1 hour' WHERE id = $1`, order.ID)
	require.NoError(t, err)

	expired, err := orders.ExpireBefore(ctx, time.Now().UTC().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)
	assert.Equal(t, "expired", testutil.GetOrderStatus(t, db, order.ID))

	_, err = eng.SettleOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderClosed)
}
