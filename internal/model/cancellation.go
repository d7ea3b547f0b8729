package model

import "time"

// CancellationRequest is a plain cancellation, or a return-and-refund when a
// proof image is attached.
type CancellationRequest struct {
	ID                string            `db:"id" json:"id"`
	OrderID           string            `db:"order_id" json:"order_id"`
	Reason            string            `db:"reason" json:"reason"`
	ProofImage        *string           `db:"proof_image" json:"proof_image,omitempty"`
	Status            RequestStatus     `db:"status" json:"status"`
	AdminNote         string            `db:"admin_note" json:"admin_note"`
	ProcessedBy       *string           `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	RefundFinalStatus NullRequestStatus `db:"refund_final_status" json:"refund_final_status"`
	RefundFinalNote   string            `db:"refund_final_note" json:"refund_final_note"`
	RefundFinalAt     *time.Time        `db:"refund_final_at" json:"refund_final_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

func (c *CancellationRequest) HasProof() bool {
	return c.ProofImage != nil && *c.ProofImage != ""
}

// TerminalOrderStatus is the order status written when the reversal commits.
func (c *CancellationRequest) TerminalOrderStatus() OrderStatus {
	if c.HasProof() {
		return OrderReturnRefund
	}
	return OrderCanceled
}
