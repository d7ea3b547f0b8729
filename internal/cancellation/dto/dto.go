package dto

import (
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	rewarddto "github.com/fekuna/omnipos-ledger-service/internal/reward/dto"
)

type RequestKind string

const (
	KindCancellation RequestKind = "cancellation"
	KindReturn       RequestKind = "return"
)

type ListFilters struct {
	Status            model.RequestStatus
	Kind              RequestKind
	RefundFinalStatus model.RequestStatus
	Page              int
	PageSize          int
}

// SkippedLine is an order line whose stock could not be put back.
type SkippedLine struct {
	ProductID string `json:"product_id"`
	ColorName string `json:"color_name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type ReversalResult struct {
	OrderID            string                     `json:"order_id"`
	OrderStatus        model.OrderStatus          `json:"order_status"`
	Movements          []model.StockMovement      `json:"movements"`
	SkippedLines       []SkippedLine              `json:"skipped_lines,omitempty"`
	Rewards            *rewarddto.ReversalSummary `json:"rewards"`
	TargetedPromotions []string                   `json:"targeted_promotions,omitempty"`
	CampaignPromotions []string                   `json:"campaign_promotions,omitempty"`
}

type DecisionResult struct {
	Message  string                     `json:"message"`
	Request  *model.CancellationRequest `json:"request"`
	Reversal *ReversalResult            `json:"reversal,omitempty"`
}
