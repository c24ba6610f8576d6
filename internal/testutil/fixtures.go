package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
)

func SeedAccount(t *testing.T, db *sql.DB, identity string, balance int64) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:        uuid.New(),
		Identity:  identity,
		Balance:   balance,
		Version:   0,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, identity, balance, version, verified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Identity, a.Balance, a.Version, a.Verified, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", identity, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetAccountByIdentity(t *testing.T, db *sql.DB, identity string) *domain.Account {
	t.Helper()

	var a domain.Account
	err := db.QueryRow(
		`SELECT id, identity, balance, version, verified, created_at FROM accounts WHERE identity = $1`,
		identity,
	).Scan(&a.ID, &a.Identity, &a.Balance, &a.Version, &a.Verified, &a.CreatedAt)
	if err != nil {
		t.Fatalf("get account %s: %v", identity, err)
	}
	return &a
}

func CountEntries(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for account %s: %v", accountID, err)
	}
	return count
}

func SumEntries(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var sum int64
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`,
		accountID,
	).Scan(&sum)
	if err != nil {
		t.Fatalf("sum ledger entries for account %s: %v", accountID, err)
	}
	return sum
}

func GetOrderStatus(t *testing.T, db *sql.DB, orderID string) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM pending_orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		t.Fatalf("get order status %s: %v", orderID, err)
	}
	return status
}

func GetWithdrawalStatus(t *testing.T, db *sql.DB, id uuid.UUID) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM withdrawals WHERE id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("get withdrawal status %s: %v", id, err)
	}
	return status
}
