package dto

// ReversalSummary describes what a reward reversal posted. Zero value means nothing was posted.
type ReversalSummary struct {
	Earned           int `json:"earned"`
	Redeemed         int `json:"redeemed"`
	BalanceDelta     int `json:"balance_delta"`
	AccumulatedDelta int `json:"accumulated_delta"`
}

func (s *ReversalSummary) NoOp() bool {
	return s.Earned == 0 && s.Redeemed == 0
}
