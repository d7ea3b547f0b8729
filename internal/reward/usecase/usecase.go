package usecase

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/reward"
	"github.com/fekuna/omnipos-ledger-service/internal/reward/dto"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const defaultEntriesPageSize = 20

type rewardUseCase struct {
	repo   reward.Repository
	logger logger.ZapLogger
	now    func() time.Time
}

func NewRewardUseCase(repo reward.Repository, log logger.ZapLogger) reward.UseCase {
	return &rewardUseCase{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

// ReverseForOrderTx writes off points earned on the order and gives back points redeemed on it.
// Accumulated is reduced by the earned amount only; redemption never raised it.
func (uc *rewardUseCase) ReverseForOrderTx(ctx context.Context, tx *sqlx.Tx, orderID, userID string) (*dto.ReversalSummary, error) {
	repo := uc.repo.WithTx(tx)

	earned, redeemed, err := repo.SumByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to aggregate reward points for order")
	}

	summary := &dto.ReversalSummary{Earned: earned, Redeemed: redeemed}
	if summary.NoOp() {
		return summary, nil
	}

	summary.BalanceDelta = redeemed - earned
	summary.AccumulatedDelta = -earned

	now := uc.now()
	if err := repo.EnsureAccount(ctx, userID); err != nil {
		return nil, apperror.Internal(err, "failed to ensure reward account")
	}
	if err := repo.ApplyDelta(ctx, userID, summary.BalanceDelta, summary.AccumulatedDelta, now); err != nil {
		return nil, apperror.Internal(err, "failed to update reward account")
	}

	if earned > 0 {
		if err := uc.insert(ctx, repo, userID, orderID, model.RewardAutoReversalEarn, earned, now); err != nil {
			return nil, err
		}
	}
	if redeemed > 0 {
		if err := uc.insert(ctx, repo, userID, orderID, model.RewardAutoReversalRedeem, redeemed, now); err != nil {
			return nil, err
		}
	}

	uc.logger.Debug("reward points reversed",
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.Int("earned", earned),
		zap.Int("redeemed", redeemed),
		zap.Int("balance_delta", summary.BalanceDelta),
	)
	return summary, nil
}

func (uc *rewardUseCase) insert(ctx context.Context, repo reward.Repository, userID, orderID string, typ model.RewardEntryType, points int, at time.Time) error {
	ref := orderID
	err := repo.InsertEntry(ctx, &model.RewardLedgerEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       typ,
		Points:     points,
		RefOrderID: &ref,
		CreatedAt:  at,
	})
	if err != nil {
		return apperror.Internal(err, "failed to write %s entry", typ)
	}
	return nil
}

func (uc *rewardUseCase) GetAccount(ctx context.Context, userID string) (*model.RewardPointsAccount, error) {
	acc, err := uc.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to get reward account")
	}
	if acc == nil {
		// Users who never earned have no row yet.
		return &model.RewardPointsAccount{UserID: userID}, nil
	}
	return acc, nil
}

func (uc *rewardUseCase) ListEntries(ctx context.Context, userID string, page, pageSize int) ([]model.RewardLedgerEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultEntriesPageSize
	}
	items, total, err := uc.repo.ListEntries(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list reward ledger")
	}
	return items, total, nil
}
