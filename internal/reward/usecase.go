package reward

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/reward/dto"
	"github.com/jmoiron/sqlx"
)

type UseCase interface {
	// ReverseForOrderTx posts the compensating entries for orderID inside tx.
	ReverseForOrderTx(ctx context.Context, tx *sqlx.Tx, orderID, userID string) (*dto.ReversalSummary, error)
	GetAccount(ctx context.Context, userID string) (*model.RewardPointsAccount, error)
	ListEntries(ctx context.Context, userID string, page, pageSize int) ([]model.RewardLedgerEntry, int, error)
}
