package model

import (
	"database/sql/driver"
	"fmt"
)

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported scan type %T", src)
	}
}

// MovementKind is the direction of a stock movement.
type MovementKind string

const (
	MovementIn     MovementKind = "IN"
	MovementOut    MovementKind = "OUT"
	MovementAdjust MovementKind = "ADJUST"
)

func ParseMovementKind(s string) (MovementKind, error) {
	k := MovementKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("invalid movement kind %q", s)
	}
	return k, nil
}

func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

func (k *MovementKind) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseMovementKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k MovementKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid movement kind %q", string(k))
	}
	return string(k), nil
}

// MovementReason is the audit reason code attached to a movement.
type MovementReason string

const (
	ReasonReceive       MovementReason = "RECEIVE"
	ReasonSales         MovementReason = "SALES"
	ReasonDamage        MovementReason = "DAMAGE"
	ReasonReturn        MovementReason = "RETURN"
	ReasonAdjustment    MovementReason = "ADJUSTMENT"
	ReasonReturnOutward MovementReason = "RETURN_OUTWARD"
	ReasonOthers        MovementReason = "OTHERS"
)

func ParseMovementReason(s string) (MovementReason, error) {
	r := MovementReason(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid movement reason %q", s)
	}
	return r, nil
}

func (r MovementReason) Valid() bool {
	switch r {
	case ReasonReceive, ReasonSales, ReasonDamage, ReasonReturn,
		ReasonAdjustment, ReasonReturnOutward, ReasonOthers:
		return true
	}
	return false
}

// StockOutReason reports whether an operator may pick r for a manual stock-out.
func (r MovementReason) StockOutReason() bool {
	return r == ReasonDamage || r == ReasonReturnOutward || r == ReasonOthers
}

func (r *MovementReason) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseMovementReason(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r MovementReason) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid movement reason %q", string(r))
	}
	return string(r), nil
}

// RequestStatus is used both for the first-level decision and the refund final status.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid request status %q", s)
	}
	return st, nil
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decision reports whether s is a value an admin may submit.
func (s RequestStatus) Decision() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s *RequestStatus) Scan(src any) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseRequestStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s RequestStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid request status %q", string(s))
	}
	return string(s), nil
}

// NullRequestStatus is a RequestStatus that may be NULL.
type NullRequestStatus struct {
	Status RequestStatus
	Valid  bool
}

func NewNullRequestStatus(s RequestStatus) NullRequestStatus {
	return NullRequestStatus{Status: s, Valid: true}
}

func (n *NullRequestStatus) Scan(src any) error {
	if src == nil {
		n.Status, n.Valid = "", false
		return nil
	}
	if err := n.Status.Scan(src); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullRequestStatus) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Status.Value()
}

// Open reports whether the refund can still be finalized (NULL or Pending).
func (n NullRequestStatus) Open() bool {
	return !n.Valid || n.Status == StatusPending
}

func (n NullRequestStatus) String() string {
	if !n.Valid {
		return "NULL"
	}
	return string(n.Status)
}

func (n NullRequestStatus) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + string(n.Status) + `"`), nil
}

// RewardEntryType classifies reward ledger rows.
type RewardEntryType string

const (
	RewardEarn               RewardEntryType = "EARN"
	RewardRedeem             RewardEntryType = "REDEEM"
	RewardAutoReversalEarn   RewardEntryType = "AUTO_REVERSAL_EARN"
	RewardAutoReversalRedeem RewardEntryType = "AUTO_REVERSAL_REDEEM"
)

func (t RewardEntryType) Valid() bool {
	switch t {
	case RewardEarn, RewardRedeem, RewardAutoReversalEarn, RewardAutoReversalRedeem:
		return true
	}
	return false
}

func (t *RewardEntryType) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	if !RewardEntryType(s).Valid() {
		return fmt.Errorf("invalid reward entry type %q", s)
	}
	*t = RewardEntryType(s)
	return nil
}

func (t RewardEntryType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid reward entry type %q", string(t))
	}
	return string(t), nil
}

type PromotionType string

const (
	PromotionTargeted PromotionType = "Targeted"
	PromotionCampaign PromotionType = "Campaign"
)

func (t *PromotionType) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	switch PromotionType(s) {
	case PromotionTargeted, PromotionCampaign:
		*t = PromotionType(s)
		return nil
	}
	return fmt.Errorf("invalid promotion type %q", s)
}
