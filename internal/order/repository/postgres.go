package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/order"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) order.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := sqlx.GetContext(ctx, r.DB, &o,
		`SELECT id, user_id, total_amount, status, created_at FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	query := `
        SELECT id, order_id, product_id, color_name, size, quantity
        FROM order_items
        WHERE order_id = $1
        ORDER BY id
    `
	if err := sqlx.SelectContext(ctx, r.DB, &o.Items, query, id); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &o, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("failed to update order status: %d rows affected", n)
	}
	return nil
}
