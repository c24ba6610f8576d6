package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurapay/aurapay/internal/domain"
)

const accountColumns = `id, identity, balance, version, verified, created_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate returns the account for identity, creating it with a zero
// balance on first reference. The insert is a no-op when the identity already
// exists, so an existing balance is never overwritten.
func (r *AccountRepository) GetOrCreate(ctx context.Context, identity string) (*domain.Account, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, identity, balance, version, verified, created_at)
		VALUES ($1, $2, 0, 1, false, $3)
		ON CONFLICT (identity) DO NOTHING`,
		uuid.New(), identity, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: insert: %w", err)
	}

	a, err := r.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identity = $1`, identity,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdentity: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdentity: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetForUpdate row-locks the account for the duration of tx. All balance
// mutations go through this lock, which serializes settlements and
// withdrawals racing on the same account.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = $2 WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *AccountRepository) SetVerified(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET verified = true WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("SetVerified: %w", err)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.ID, &a.Identity, &a.Balance, &a.Version, &a.Verified, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
