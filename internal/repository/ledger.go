package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
)

const ledgerColumns = `id, account_id, kind, amount, fee, gateway_tx_id, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends an immutable entry inside tx. The unique index on
// gateway_tx_id rejects a second entry for the same settled capture; that
// violation surfaces as ErrDuplicateSettlement and is the engine's
// idempotency backstop.
func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, account_id, kind, amount, fee, gateway_tx_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.Fee,
		entry.GatewayTxID, entry.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, "ledger_entries_gateway_tx_id_key") {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateSettlement)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) GetByGatewayTxID(ctx context.Context, gatewayTxID string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE gateway_tx_id = $1`, gatewayTxID,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByGatewayTxID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByGatewayTxID: %w", err)
	}
	return e, nil
}

// GetByAccountID returns the account's entries, most recent first.
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE account_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByAccountID: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByAccountID: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByAccountID: rows: %w", err)
	}
	return entries, nil
}

// SumByAccountID is the audit view: the signed sum of an account's entries,
// which must always equal the stored balance.
func (r *LedgerRepository) SumByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`, accountID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("SumByAccountID: %w", err)
	}
	return sum, nil
}

// SumCredits totals the credits an account has received; the dashboard
// reports it as total revenue.
func (r *LedgerRepository) SumCredits(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1 AND amount > 0`,
		accountID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("SumCredits: %w", err)
	}
	return sum, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Fee, &e.GatewayTxID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
