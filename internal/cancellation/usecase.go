package cancellation

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
)

type UseCase interface {
	// Decide records the first-level decision. Approving a plain cancellation runs the reversal.
	Decide(ctx context.Context, input *dto.DecisionInput) (*dto.DecisionResult, error)
	// Finalize records the post-inspection decision of a return. Approving runs the reversal.
	Finalize(ctx context.Context, input *dto.DecisionInput) (*dto.DecisionResult, error)

	Get(ctx context.Context, id string) (*model.CancellationRequest, error)
	List(ctx context.Context, filters *dto.ListFilters) ([]model.CancellationRequest, int, error)
}
