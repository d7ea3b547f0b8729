package model

import "time"

type Promotion struct {
	ID              string        `db:"id" json:"id"`
	Name            string        `db:"name" json:"name"`
	PromotionType   PromotionType `db:"promotion_type" json:"promotion_type"`
	RedemptionCount int           `db:"redemption_count" json:"redemption_count"`
}

// PromotionUser is the per-user redemption flag of a Targeted promotion.
type PromotionUser struct {
	PromotionID string     `db:"promotion_id" json:"promotion_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	IsRedeemed  bool       `db:"is_redeemed" json:"is_redeemed"`
	RedeemedAt  *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
}
