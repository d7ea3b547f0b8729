package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderCanceled     OrderStatus = "Canceled"
	OrderReturnRefund OrderStatus = "Return & Refund"
)

type Order struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      OrderStatus     `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Items       []OrderItem     `db:"-" json:"items"`
}

type OrderItem struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	ColorName string `db:"color_name" json:"color_name"`
	Size      string `db:"size" json:"size"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// Returnable reports whether the line carries enough data to put stock back.
func (i *OrderItem) Returnable() bool {
	return i.ProductID != "" && i.ColorName != "" && i.Size != "" && i.Quantity > 0
}
