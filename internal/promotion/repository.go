package promotion

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	// ListRedeemedTargeted returns the Targeted redemptions the user currently holds.
	ListRedeemedTargeted(ctx context.Context, userID string) ([]model.PromotionUser, error)
	ResetUserRedemption(ctx context.Context, promotionID, userID string) error
	// ListCampaignsForOrder returns distinct Campaign promotion ids covering any product of the order.
	ListCampaignsForOrder(ctx context.Context, orderID string) ([]string, error)
	// DecrementRedemption lowers redemption_count by one, never below zero, and
	// returns the updated promotion. A missing promotion yields nil, nil.
	DecrementRedemption(ctx context.Context, promotionID string) (*model.Promotion, error)
}
