package stock

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/jmoiron/sqlx"
)

type UseCase interface {
	// ApplyMovement runs one movement in its own transaction.
	ApplyMovement(ctx context.Context, input *dto.MovementInput) (*model.StockMovement, error)
	// ApplyMovementTx runs one movement inside the caller's transaction.
	ApplyMovementTx(ctx context.Context, tx *sqlx.Tx, input *dto.MovementInput) (*model.StockMovement, error)
	ResolveVariantTx(ctx context.Context, tx *sqlx.Tx, productID, colorName, size string) (string, bool, error)

	StockIn(ctx context.Context, input *dto.StockInInput) (*model.StockMovement, error)
	StockOut(ctx context.Context, input *dto.StockOutInput) (*model.StockMovement, error)
	Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockMovement, error)
	RecordSale(ctx context.Context, input *dto.SaleInput) (*model.StockMovement, error)

	GetVariant(ctx context.Context, id string) (*model.VariantStock, error)
	ListLowStock(ctx context.Context, page, pageSize int) ([]model.VariantStock, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
