package cancellation

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	FindByID(ctx context.Context, id string) (*model.CancellationRequest, error)
	// FindByIDForUpdate locks the request row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*model.CancellationRequest, error)
	List(ctx context.Context, filters *dto.ListFilters) ([]model.CancellationRequest, int, error)

	// UpdateDecision applies a first-level decision only while the request is still Pending.
	// It reports whether a row was updated.
	UpdateDecision(ctx context.Context, update *dto.DecisionUpdate) (bool, error)
	// UpdateFinal applies a second-level decision only while the request is Approved and
	// its refund final status is NULL or Pending.
	UpdateFinal(ctx context.Context, update *dto.FinalUpdate) (bool, error)
}
