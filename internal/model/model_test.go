package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatus_ScanRejectsUnknownValues(t *testing.T) {
	var s RequestStatus
	require.NoError(t, s.Scan([]byte("Approved")))
	assert.Equal(t, StatusApproved, s)

	assert.Error(t, s.Scan("Banana"))
	assert.Error(t, s.Scan(42))
}

func TestNullRequestStatus(t *testing.T) {
	var n NullRequestStatus
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)
	assert.True(t, n.Open())

	v, err := n.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, n.Scan("Pending"))
	assert.True(t, n.Open())

	require.NoError(t, n.Scan("Rejected"))
	assert.False(t, n.Open())
	assert.Equal(t, "Rejected", n.String())

	assert.Error(t, n.Scan("Banana"))

	b, err := json.Marshal(struct {
		A NullRequestStatus `json:"a"`
		B NullRequestStatus `json:"b"`
	}{B: NewNullRequestStatus(StatusApproved)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":"Approved"}`, string(b))
}

func TestMovementEnums(t *testing.T) {
	k, err := ParseMovementKind("IN")
	require.NoError(t, err)
	assert.Equal(t, MovementIn, k)
	_, err = ParseMovementKind("SIDEWAYS")
	assert.Error(t, err)

	_, err = MovementKind("").Value()
	assert.Error(t, err)

	for _, r := range []MovementReason{ReasonDamage, ReasonReturnOutward, ReasonOthers} {
		assert.True(t, r.StockOutReason(), r)
	}
	for _, r := range []MovementReason{ReasonReceive, ReasonSales, ReasonReturn, ReasonAdjustment} {
		assert.False(t, r.StockOutReason(), r)
	}

	var r MovementReason
	assert.Error(t, r.Scan("STOLEN"))
}

func TestVariantStock_Level(t *testing.T) {
	assert.Equal(t, StockLevelOutOfStock, (&VariantStock{Stock: 0, MinStock: 5}).Level())
	assert.Equal(t, StockLevelBelowMin, (&VariantStock{Stock: 3, MinStock: 5}).Level())
	assert.Equal(t, StockLevelOK, (&VariantStock{Stock: 5, MinStock: 5}).Level())
}

func TestStockMovement_Consistent(t *testing.T) {
	assert.True(t, (&StockMovement{OldStock: 4, QtyChange: -4, NewStock: 0}).Consistent())
	assert.False(t, (&StockMovement{OldStock: 4, QtyChange: -5, NewStock: -1}).Consistent())
	assert.False(t, (&StockMovement{OldStock: 4, QtyChange: 1, NewStock: 6}).Consistent())
}

func TestOrderItem_Returnable(t *testing.T) {
	ok := OrderItem{ProductID: "p", ColorName: "Red", Size: "M", Quantity: 1}
	assert.True(t, ok.Returnable())

	noColor := ok
	noColor.ColorName = ""
	assert.False(t, noColor.Returnable())

	zeroQty := ok
	zeroQty.Quantity = 0
	assert.False(t, zeroQty.Returnable())
}
