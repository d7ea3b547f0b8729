package usecase

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/promotion"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type promotionUseCase struct {
	repo   promotion.Repository
	logger logger.ZapLogger
}

func NewPromotionUseCase(repo promotion.Repository, log logger.ZapLogger) promotion.UseCase {
	return &promotionUseCase{
		repo:   repo,
		logger: log,
	}
}

// ReverseTargetedTx clears every Targeted redemption flag the user holds and gives the slot back.
func (uc *promotionUseCase) ReverseTargetedTx(ctx context.Context, tx *sqlx.Tx, userID string) ([]string, error) {
	repo := uc.repo.WithTx(tx)

	redemptions, err := repo.ListRedeemedTargeted(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load targeted promotions")
	}

	ids := make([]string, 0, len(redemptions))
	for _, pu := range redemptions {
		if err := repo.ResetUserRedemption(ctx, pu.PromotionID, userID); err != nil {
			return nil, apperror.Internal(err, "failed to reset targeted promotion %s", pu.PromotionID)
		}
		if err := uc.decrement(ctx, repo, pu.PromotionID); err != nil {
			return nil, err
		}
		ids = append(ids, pu.PromotionID)
	}
	return ids, nil
}

// ReverseCampaignTx decrements every Campaign promotion covering a product of the order.
// Campaigns keep no per-user state, so this cannot tell whether this order was the one counted.
func (uc *promotionUseCase) ReverseCampaignTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]string, error) {
	repo := uc.repo.WithTx(tx)

	ids, err := repo.ListCampaignsForOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load campaign promotions")
	}

	for _, id := range ids {
		if err := uc.decrement(ctx, repo, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (uc *promotionUseCase) decrement(ctx context.Context, repo promotion.Repository, id string) error {
	p, err := repo.DecrementRedemption(ctx, id)
	if err != nil {
		return apperror.Internal(err, "failed to decrement promotion %s", id)
	}
	if p == nil {
		uc.logger.Warn("promotion vanished before decrement", zap.String("promotion_id", id))
		return nil
	}
	uc.logger.Debug("promotion redemption released",
		zap.String("promotion_id", p.ID),
		zap.String("promotion_type", string(p.PromotionType)),
		zap.Int("redemption_count", p.RedemptionCount),
	)
	return nil
}
