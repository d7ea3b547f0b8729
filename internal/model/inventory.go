package model

import "time"

type StockLevel string

const (
	StockLevelOK         StockLevel = "OK"
	StockLevelBelowMin   StockLevel = "BELOW_MIN"
	StockLevelOutOfStock StockLevel = "OUT_OF_STOCK"
)

// VariantStock is the on-hand count of one product x color x size.
type VariantStock struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	ColorName string    `db:"color_name" json:"color_name"`
	Size      string    `db:"size" json:"size"`
	Stock     int       `db:"stock" json:"stock"`
	MinStock  int       `db:"min_stock" json:"min_stock"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (v *VariantStock) Level() StockLevel {
	switch {
	case v.Stock == 0:
		return StockLevelOutOfStock
	case v.Stock < v.MinStock:
		return StockLevelBelowMin
	default:
		return StockLevelOK
	}
}

// StockMovement is immutable once written; corrections are new movements.
type StockMovement struct {
	ID            string         `db:"id" json:"id"`
	VariantID     string         `db:"variant_id" json:"variant_id"`
	MovementType  MovementKind   `db:"movement_type" json:"movement_type"`
	Reason        MovementReason `db:"reason" json:"reason"`
	QtyChange     int            `db:"qty_change" json:"qty_change"`
	OldStock      int            `db:"old_stock" json:"old_stock"`
	NewStock      int            `db:"new_stock" json:"new_stock"`
	ReferenceType *string        `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *string        `db:"reference_id" json:"reference_id,omitempty"`
	Note          *string        `db:"note" json:"note,omitempty"`
	PerformedBy   *string        `db:"performed_by" json:"performed_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Consistent reports whether the before/after snapshot obeys the ledger invariant.
func (m *StockMovement) Consistent() bool {
	return m.NewStock == m.OldStock+m.QtyChange && m.NewStock >= 0
}
