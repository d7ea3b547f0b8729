package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/promotion"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) promotion.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) ListRedeemedTargeted(ctx context.Context, userID string) ([]model.PromotionUser, error) {
	query := `
        SELECT pu.promotion_id, pu.user_id, pu.is_redeemed, pu.redeemed_at
        FROM promotion_users pu
        JOIN promotions p ON p.id = pu.promotion_id
        WHERE pu.user_id = $1
          AND pu.is_redeemed = TRUE
          AND p.promotion_type = $2
        ORDER BY pu.promotion_id
    `
	var redemptions []model.PromotionUser
	if err := sqlx.SelectContext(ctx, r.DB, &redemptions, query, userID, model.PromotionTargeted); err != nil {
		return nil, fmt.Errorf("failed to list redeemed targeted promotions: %w", err)
	}
	return redemptions, nil
}

func (r *PGRepository) ResetUserRedemption(ctx context.Context, promotionID, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE promotion_users
           SET is_redeemed = FALSE,
               redeemed_at = NULL
         WHERE user_id = $1
           AND promotion_id = $2
    `, userID, promotionID)
	if err != nil {
		return fmt.Errorf("failed to reset promotion redemption: %w", err)
	}
	return nil
}

func (r *PGRepository) ListCampaignsForOrder(ctx context.Context, orderID string) ([]string, error) {
	query := `
        SELECT DISTINCT pp.promotion_id
        FROM promotion_products pp
        JOIN order_items oi ON oi.product_id = pp.product_id
        JOIN promotions p ON p.id = pp.promotion_id
        WHERE oi.order_id = $1
          AND p.promotion_type = $2
        ORDER BY pp.promotion_id
    `
	var ids []string
	if err := sqlx.SelectContext(ctx, r.DB, &ids, query, orderID, model.PromotionCampaign); err != nil {
		return nil, fmt.Errorf("failed to list campaign promotions: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) DecrementRedemption(ctx context.Context, promotionID string) (*model.Promotion, error) {
	query := `
        UPDATE promotions
           SET redemption_count = GREATEST(redemption_count - 1, 0)
         WHERE id = $1
        RETURNING id, name, promotion_type, redemption_count
    `
	var p model.Promotion
	if err := sqlx.GetContext(ctx, r.DB, &p, query, promotionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decrement promotion redemption: %w", err)
	}
	return &p, nil
}
