package dto

import (
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
)

type DecisionInput struct {
	RequestID string
	Decision  model.RequestStatus
	Note      string
	ActorID   string
}

type DecisionUpdate struct {
	ID                string                  `db:"id"`
	Status            model.RequestStatus     `db:"status"`
	RefundFinalStatus model.NullRequestStatus `db:"refund_final_status"`
	AdminNote         string                  `db:"admin_note"`
	ProcessedBy       *string                 `db:"processed_by"`
	ProcessedAt       time.Time               `db:"processed_at"`
}

type FinalUpdate struct {
	ID                string              `db:"id"`
	Status            model.RequestStatus `db:"status"`
	RefundFinalStatus model.RequestStatus `db:"refund_final_status"`
	RefundFinalNote   string              `db:"refund_final_note"`
	RefundFinalAt     time.Time           `db:"refund_final_at"`
}
