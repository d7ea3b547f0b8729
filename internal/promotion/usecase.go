package promotion

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type UseCase interface {
	ReverseTargetedTx(ctx context.Context, tx *sqlx.Tx, userID string) ([]string, error)
	ReverseCampaignTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]string, error)
}
