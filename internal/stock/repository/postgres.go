package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) stock.Repository {
	return &PGRepository{DB: tx}
}

const variantColumns = `id, product_id, color_name, size, stock, min_stock, updated_at`

func (r *PGRepository) GetVariant(ctx context.Context, id string) (*model.VariantStock, error) {
	return r.getVariant(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, id)
}

// GetVariantForUpdate locks the row until the surrounding transaction ends.
func (r *PGRepository) GetVariantForUpdate(ctx context.Context, id string) (*model.VariantStock, error) {
	return r.getVariant(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) ResolveVariant(ctx context.Context, productID, colorName, size string) (*model.VariantStock, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants
        WHERE product_id = $1 AND color_name = $2 AND size = $3
        LIMIT 1`
	return r.getVariant(ctx, query, productID, colorName, size)
}

func (r *PGRepository) getVariant(ctx context.Context, query string, args ...interface{}) (*model.VariantStock, error) {
	var v model.VariantStock
	err := sqlx.GetContext(ctx, r.DB, &v, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *PGRepository) UpdateStock(ctx context.Context, variantID string, stock int, updatedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE product_variants SET stock = $1, updated_at = $2 WHERE id = $3`,
		stock, updatedAt, variantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("failed to update stock: %d rows affected", n)
	}
	return nil
}

func (r *PGRepository) ListLowStock(ctx context.Context, page, pageSize int) ([]model.VariantStock, int, error) {
	var count int
	where := ` WHERE stock = 0 OR stock < min_stock`

	if err := sqlx.GetContext(ctx, r.DB, &count, `SELECT count(*) FROM product_variants`+where); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + variantColumns + ` FROM product_variants` + where + ` ORDER BY stock ASC, updated_at DESC`
	if pageSize > 0 {
		offset := (page - 1) * pageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, offset)
	}

	var items []model.VariantStock
	if err := sqlx.SelectContext(ctx, r.DB, &items, query); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) InsertMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, variant_id, movement_type, reason,
            qty_change, old_stock, new_stock,
            reference_type, reference_id, note, performed_by, created_at
        )
        VALUES (
            :id, :variant_id, :movement_type, :reason,
            :qty_change, :old_stock, :new_stock,
            :reference_type, :reference_id, :note, :performed_by, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.DB, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.VariantID != "" {
		conditions = append(conditions, "sm.variant_id = :variant_id")
		args["variant_id"] = f.VariantID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "pv.product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "sm.movement_type = :movement_type")
		args["movement_type"] = string(f.MovementType)
	}
	if f.Reason != "" {
		conditions = append(conditions, "sm.reason = :reason")
		args["reason"] = string(f.Reason)
	}
	if f.StartDate != nil {
		conditions = append(conditions, "sm.created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "sm.created_at < :end_date")
		args["end_date"] = *f.EndDate
	}

	from := " FROM stock_movements sm JOIN product_variants pv ON pv.id = sm.variant_id"
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*)"+from+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT sm.*" + from + whereClause + " ORDER BY sm.created_at DESC, sm.id DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}

	var items []model.StockMovement
	if err := sqlx.SelectContext(ctx, r.DB, &items, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
