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

const orderColumns = `id, account_id, recipient_account_id, requested, gross, fee, net,
	status, entry_id, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.PendingOrder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_orders (
			id, account_id, recipient_account_id, requested, gross, fee, net,
			status, entry_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.AccountID, order.RecipientAccountID,
		order.Requested, order.Gross, order.Fee, order.Net,
		order.Status, order.EntryID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.PendingOrder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM pending_orders WHERE id = $1`, id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return o, nil
}

// MarkCaptured transitions the order to captured inside tx, binding it to
// the ledger entry that settled it. The status guard makes the transition
// single-shot: a second caller sees zero rows and backs off. Expired is
// allowed as a source state so that a capture the gateway confirmed while
// the sweeper was expiring the order still lands in the ledger instead of
// stranding settled funds; captured and failed stay final.
func (r *OrderRepository) MarkCaptured(ctx context.Context, tx *sql.Tx, id string, entryID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE pending_orders SET status = $1, entry_id = $2, updated_at = now()
		WHERE id = $3 AND status IN ($4, $5)`,
		domain.OrderStatusCaptured, entryID, id, domain.OrderStatusCreated, domain.OrderStatusExpired,
	)
	if err != nil {
		return fmt.Errorf("MarkCaptured: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkCaptured: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkCaptured: %w", domain.ErrOrderClosed)
	}
	return nil
}

func (r *OrderRepository) MarkFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.OrderStatusFailed, id, domain.OrderStatusCreated,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkFailed: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkFailed: %w", domain.ErrOrderClosed)
	}
	return nil
}

// ExpireBefore garbage-collects orders still in created state past the
// capture window. Expired orders never touched the ledger.
func (r *OrderRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_orders SET status = $1, updated_at = now()
		WHERE status = $2 AND created_at < $3`,
		domain.OrderStatusExpired, domain.OrderStatusCreated, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("ExpireBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ExpireBefore: rows affected: %w", err)
	}
	return n, nil
}

func scanOrder(s scanner) (*domain.PendingOrder, error) {
	var o domain.PendingOrder
	var recipient uuid.NullUUID
	var entryID uuid.NullUUID

	err := s.Scan(
		&o.ID, &o.AccountID, &recipient, &o.Requested, &o.Gross, &o.Fee, &o.Net,
		&o.Status, &entryID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if recipient.Valid {
		o.RecipientAccountID = &recipient.UUID
	}
	if entryID.Valid {
		o.EntryID = &entryID.UUID
	}
	return &o, nil
}
