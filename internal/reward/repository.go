package reward

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	// SumByOrder totals the EARN and REDEEM points posted against orderID.
	SumByOrder(ctx context.Context, orderID string) (earned int, redeemed int, err error)
	InsertEntry(ctx context.Context, entry *model.RewardLedgerEntry) error
	ListEntries(ctx context.Context, userID string, page, pageSize int) ([]model.RewardLedgerEntry, int, error)

	// Accounts
	EnsureAccount(ctx context.Context, userID string) error
	ApplyDelta(ctx context.Context, userID string, balanceDelta, accumulatedDelta int, updatedAt time.Time) error
	GetAccount(ctx context.Context, userID string) (*model.RewardPointsAccount, error)
}
