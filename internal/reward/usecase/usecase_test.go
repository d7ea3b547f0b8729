package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/testutil/memdb"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(userID, orderID string, typ model.RewardEntryType, points int) model.RewardLedgerEntry {
	ref := orderID
	return model.RewardLedgerEntry{ID: string(typ) + "-" + orderID, UserID: userID, Type: typ, Points: points, RefOrderID: &ref}
}

func TestReverseForOrderTx(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name            string
		earned          int
		redeemed        int
		wantBalance     int
		wantAccumulated int
		wantEntries     []model.RewardEntryType
	}{
		{name: "earned only", earned: 100, wantBalance: 400, wantAccumulated: 900, wantEntries: []model.RewardEntryType{model.RewardAutoReversalEarn}},
		{name: "redeemed only", redeemed: 50, wantBalance: 550, wantAccumulated: 1000, wantEntries: []model.RewardEntryType{model.RewardAutoReversalRedeem}},
		{name: "both", earned: 30, redeemed: 200, wantBalance: 670, wantAccumulated: 970,
			wantEntries: []model.RewardEntryType{model.RewardAutoReversalEarn, model.RewardAutoReversalRedeem}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memdb.New()
			db.PutAccount(model.RewardPointsAccount{UserID: "u1", Balance: 500, Accumulated: 1000})
			if tt.earned > 0 {
				db.AddLedgerEntry(entry("u1", "o1", model.RewardEarn, tt.earned))
			}
			if tt.redeemed > 0 {
				db.AddLedgerEntry(entry("u1", "o1", model.RewardRedeem, tt.redeemed))
			}
			db.AddLedgerEntry(entry("u1", "o2", model.RewardEarn, 999))
			before := len(db.Ledger())

			uc := NewRewardUseCase(db.RewardRepo(), logger.NewNop())
			summary, err := uc.ReverseForOrderTx(ctx, nil, "o1", "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.redeemed-tt.earned, summary.BalanceDelta)
			assert.Equal(t, -tt.earned, summary.AccumulatedDelta)

			acc, _ := db.Account("u1")
			assert.Equal(t, tt.wantBalance, acc.Balance)
			assert.Equal(t, tt.wantAccumulated, acc.Accumulated)

			written := db.Ledger()[before:]
			require.Len(t, written, len(tt.wantEntries))
			for i, e := range written {
				assert.Equal(t, tt.wantEntries[i], e.Type)
				assert.Equal(t, "o1", *e.RefOrderID)
			}
		})
	}
}

func TestReverseForOrderTx_NoHistoryIsNoOp(t *testing.T) {
	db := memdb.New()
	db.PutAccount(model.RewardPointsAccount{UserID: "u1", Balance: 10, Accumulated: 20})
	uc := NewRewardUseCase(db.RewardRepo(), logger.NewNop())

	summary, err := uc.ReverseForOrderTx(context.Background(), nil, "o-none", "u1")
	require.NoError(t, err)
	assert.True(t, summary.NoOp())
	assert.Empty(t, db.Ledger())

	acc, _ := db.Account("u1")
	assert.Equal(t, 10, acc.Balance)
	assert.Equal(t, 20, acc.Accumulated)

	_, err = uc.ReverseForOrderTx(context.Background(), nil, "o-none", "u2")
	require.NoError(t, err)
	_, created := db.Account("u2")
	assert.False(t, created)
}

func TestReverseForOrderTx_CreatesMissingAccount(t *testing.T) {
	db := memdb.New()
	db.AddLedgerEntry(entry("u9", "o1", model.RewardRedeem, 40))
	uc := NewRewardUseCase(db.RewardRepo(), logger.NewNop())

	_, err := uc.ReverseForOrderTx(context.Background(), nil, "o1", "u9")
	require.NoError(t, err)

	acc, ok := db.Account("u9")
	require.True(t, ok)
	assert.Equal(t, 40, acc.Balance)
	assert.Equal(t, 0, acc.Accumulated)
}

func TestReverseForOrderTx_StorageFailure(t *testing.T) {
	db := memdb.New()
	db.AddLedgerEntry(entry("u1", "o1", model.RewardEarn, 10))
	db.FailOn(memdb.OpApplyRewardDelta, errors.New("connection reset"))
	uc := NewRewardUseCase(db.RewardRepo(), logger.NewNop())

	_, err := uc.ReverseForOrderTx(context.Background(), nil, "o1", "u1")
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))
}

func TestGetAccountAndEntries(t *testing.T) {
	db := memdb.New()
	db.PutAccount(model.RewardPointsAccount{UserID: "u1", Balance: 5, Accumulated: 8})
	db.AddLedgerEntry(entry("u1", "o1", model.RewardEarn, 8))
	db.AddLedgerEntry(entry("u2", "o2", model.RewardEarn, 3))
	uc := NewRewardUseCase(db.RewardRepo(), logger.NewNop())
	ctx := context.Background()

	acc, err := uc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, acc.Balance)

	acc, err = uc.GetAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, acc.Balance)

	items, total, err := uc.ListEntries(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}
