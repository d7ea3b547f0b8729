package stock

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// WithTx returns a repository bound to tx.
	WithTx(tx *sqlx.Tx) Repository

	// Variants
	GetVariant(ctx context.Context, id string) (*model.VariantStock, error)
	GetVariantForUpdate(ctx context.Context, id string) (*model.VariantStock, error)
	ResolveVariant(ctx context.Context, productID, colorName, size string) (*model.VariantStock, error)
	UpdateStock(ctx context.Context, variantID string, stock int, updatedAt time.Time) error
	ListLowStock(ctx context.Context, page, pageSize int) ([]model.VariantStock, int, error)

	// Movements / Audit
	InsertMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
