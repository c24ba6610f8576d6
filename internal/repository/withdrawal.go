package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
)

const withdrawalColumns = `id, entry_id, account_id, receiver, amount, status,
	attempts, last_attempt, created_at`

type WithdrawalRepository struct {
	db *sql.DB
}

func NewWithdrawalRepository(db *sql.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create writes the queued payout in the same transaction that debits the
// balance, so a withdrawal is either fully reserved or not at all.
func (r *WithdrawalRepository) Create(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO withdrawals (
			id, entry_id, account_id, receiver, amount, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.EntryID, w.AccountID, w.Receiver, w.Amount,
		w.Status, w.Attempts, w.LastAttempt, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) GetQueued(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	// FOR UPDATE SKIP LOCKED prevents multiple workers from claiming the same payout
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.WithdrawalStatusQueued, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetQueued: %w", err)
	}
	defer rows.Close()

	var ws []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("GetQueued: scan: %w", err)
		}
		ws = append(ws, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetQueued: rows: %w", err)
	}
	return ws, nil
}

func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanWithdrawal(s scanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := s.Scan(
		&w.ID, &w.EntryID, &w.AccountID, &w.Receiver, &w.Amount,
		&w.Status, &w.Attempts, &w.LastAttempt, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
