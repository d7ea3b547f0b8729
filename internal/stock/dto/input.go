package dto

import "github.com/fekuna/omnipos-ledger-service/internal/model"

// MovementInput is the raw ledger contract. Empty optional strings are stored as NULL.
type MovementInput struct {
	VariantID     string
	Kind          model.MovementKind
	Reason        model.MovementReason
	QtyDelta      int
	ReferenceType string
	ReferenceID   string
	Note          string
	ActorID       string
}

type StockInInput struct {
	VariantID string
	Qty       int
	Reference string // PO number
	Note      string
	ActorID   string
}

type StockOutInput struct {
	VariantID string
	Qty       int
	Reason    model.MovementReason
	Reference string
	Note      string
	ActorID   string
}

type AdjustInput struct {
	VariantID string
	NewStock  int
	Note      string
	ActorID   string
}

type SaleInput struct {
	VariantID string
	Qty       int
	OrderID   string
	ActorID   string
}
