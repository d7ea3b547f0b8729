package dto

import (
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
)

type MovementFilters struct {
	VariantID    string
	ProductID    string
	MovementType model.MovementKind
	Reason       model.MovementReason
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
