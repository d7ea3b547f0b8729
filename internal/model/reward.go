package model

import "time"

type RewardLedgerEntry struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	Type       RewardEntryType `db:"type" json:"type"`
	Points     int             `db:"points" json:"points"`
	RefOrderID *string         `db:"ref_order_id" json:"ref_order_id,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type RewardPointsAccount struct {
	UserID      string    `db:"user_id" json:"user_id"`
	Balance     int       `db:"balance" json:"balance"`
	Accumulated int       `db:"accumulated" json:"accumulated"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
