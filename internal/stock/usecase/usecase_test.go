package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/testutil/memdb"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUseCase(t *testing.T) (*stockUseCase, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	db.PutVariant(model.VariantStock{ID: "v1", ProductID: "p1", ColorName: "Black", Size: "M", Stock: 10, MinStock: 3})
	db.PutVariant(model.VariantStock{ID: "v2", ProductID: "p1", ColorName: "White", Size: "L", Stock: 0, MinStock: 2})
	uc := NewStockUseCase(db.StockRepo(), db.Runner(), nil, logger.NewNop()).(*stockUseCase)
	return uc, db
}

func assertLedgerInvariant(t *testing.T, db *memdb.DB) {
	t.Helper()
	for _, m := range db.Movements() {
		assert.Equal(t, m.OldStock+m.QtyChange, m.NewStock, "movement %s", m.ID)
		assert.GreaterOrEqual(t, m.NewStock, 0, "movement %s", m.ID)
	}
}

func TestApplyMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("stock in writes stock and one movement", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		mv, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID:     "v1",
			Kind:          model.MovementIn,
			Reason:        model.ReasonReceive,
			QtyDelta:      5,
			ReferenceType: "PO",
			ReferenceID:   "PO-001",
			ActorID:       "admin-1",
		})
		require.NoError(t, err)

		assert.Equal(t, 10, mv.OldStock)
		assert.Equal(t, 15, mv.NewStock)
		assert.Equal(t, 5, mv.QtyChange)
		require.NotNil(t, mv.ReferenceID)
		assert.Equal(t, "PO-001", *mv.ReferenceID)
		assert.Nil(t, mv.Note)
		require.NotNil(t, mv.PerformedBy)
		assert.Equal(t, "admin-1", *mv.PerformedBy)

		assert.Equal(t, 15, db.Variant("v1").Stock)
		assert.Len(t, db.Movements(), 1)
	})

	t.Run("missing variant", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		_, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "nope", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: 1,
		})
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
		assert.Empty(t, db.Movements())
	})

	t.Run("negative stock is rejected", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		_, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementOut, Reason: model.ReasonDamage, QtyDelta: -11,
		})
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
		assert.True(t, apperror.HasCode(err, apperror.CodeNegativeStock))
		assert.Equal(t, 10, db.Variant("v1").Stock)
		assert.Empty(t, db.Movements())
	})

	t.Run("sign must match kind", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: -1,
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

		_, err = uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementOut, Reason: model.ReasonDamage, QtyDelta: 1,
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
	})

	t.Run("unknown reason", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementIn, Reason: "GIFT", QtyDelta: 1,
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
	})

	t.Run("failed movement insert leaves stock untouched", func(t *testing.T) {
		uc, db := newTestUseCase(t)
		db.FailOn(memdb.OpInsertMovement, errors.New("disk full"))

		_, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: 3,
		})
		assert.True(t, apperror.IsKind(err, apperror.KindInternal))
		assert.Equal(t, 10, db.Variant("v1").Stock)
		assert.Empty(t, db.Movements())
	})

	t.Run("actor is recorded only when present", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		mv, err := uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: 1,
		})
		require.NoError(t, err)
		assert.Nil(t, mv.PerformedBy)

		mv, err = uc.ApplyMovement(ctx, &dto.MovementInput{
			VariantID: "v1", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: 1, ActorID: "admin-3",
		})
		require.NoError(t, err)
		require.NotNil(t, mv.PerformedBy)
		assert.Equal(t, "admin-3", *mv.PerformedBy)
	})
}

func TestApplyMovement_ConcurrentStaysConsistent(t *testing.T) {
	uc, db := newTestUseCase(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := &dto.MovementInput{VariantID: "v1", Kind: model.MovementIn, Reason: model.ReasonReceive, QtyDelta: 1}
			if i%2 == 0 {
				in = &dto.MovementInput{VariantID: "v1", Kind: model.MovementOut, Reason: model.ReasonDamage, QtyDelta: -1}
			}
			_, _ = uc.ApplyMovement(ctx, in)
		}(i)
	}
	wg.Wait()

	movements := db.Movements()
	assertLedgerInvariant(t, db)
	require.NotEmpty(t, movements)
	assert.Equal(t, movements[len(movements)-1].NewStock, db.Variant("v1").Stock)
	for i := 1; i < len(movements); i++ {
		assert.Equal(t, movements[i-1].NewStock, movements[i].OldStock)
	}
}

func TestStockIn(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   dto.StockInInput
		wantErr bool
	}{
		{name: "valid", input: dto.StockInInput{VariantID: "v1", Qty: 4, Reference: "PO-2024/01"}},
		{name: "zero quantity", input: dto.StockInInput{VariantID: "v1", Qty: 0, Reference: "PO-1"}, wantErr: true},
		{name: "missing reference", input: dto.StockInInput{VariantID: "v1", Qty: 1}, wantErr: true},
		{name: "bad reference", input: dto.StockInInput{VariantID: "v1", Qty: 1, Reference: "PO #1"}, wantErr: true},
		{name: "reference too short", input: dto.StockInInput{VariantID: "v1", Qty: 1, Reference: "P1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, db := newTestUseCase(t)

			mv, err := uc.StockIn(ctx, &tt.input)
			if tt.wantErr {
				assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
				assert.Empty(t, db.Movements())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.MovementIn, mv.MovementType)
			assert.Equal(t, model.ReasonReceive, mv.Reason)
			require.NotNil(t, mv.ReferenceType)
			assert.Equal(t, RefTypePO, *mv.ReferenceType)
			assert.Equal(t, 14, db.Variant("v1").Stock)
		})
	}
}

func TestStockOut(t *testing.T) {
	ctx := context.Background()

	t.Run("damage requires note", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		_, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v1", Qty: 1, Reason: model.ReasonDamage})
		assert.True(t, apperror.HasCode(err, apperror.CodeNoteRequired))
		assert.Empty(t, db.Movements())
	})

	t.Run("damage with note", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		mv, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v1", Qty: 2, Reason: model.ReasonDamage, Note: "water damage"})
		require.NoError(t, err)
		assert.Equal(t, -2, mv.QtyChange)
		assert.Equal(t, model.MovementOut, mv.MovementType)
		require.NotNil(t, mv.ReferenceType)
		assert.Equal(t, RefTypeManual, *mv.ReferenceType)
		assert.Nil(t, mv.ReferenceID)
		assert.Equal(t, 8, db.Variant("v1").Stock)
	})

	t.Run("return outward requires PO", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v1", Qty: 1, Reason: model.ReasonReturnOutward})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

		mv, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v1", Qty: 1, Reason: model.ReasonReturnOutward, Reference: "PO-77"})
		require.NoError(t, err)
		assert.Equal(t, RefTypePO, *mv.ReferenceType)
	})

	t.Run("sales is not a manual reason", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v1", Qty: 1, Reason: model.ReasonSales, Note: "x"})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
	})

	t.Run("more than on hand", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		_, err := uc.StockOut(ctx, &dto.StockOutInput{VariantID: "v2", Qty: 1, Reason: model.ReasonOthers, Note: "lost"})
		assert.True(t, apperror.HasCode(err, apperror.CodeNegativeStock))
		assert.Equal(t, 0, db.Variant("v2").Stock)
	})
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("sets absolute count", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		mv, err := uc.Adjust(ctx, &dto.AdjustInput{VariantID: "v1", NewStock: 7, Note: "cycle count"})
		require.NoError(t, err)
		assert.Equal(t, -3, mv.QtyChange)
		assert.Equal(t, model.MovementAdjust, mv.MovementType)
		assert.Equal(t, model.ReasonAdjustment, mv.Reason)
		assert.Equal(t, 7, db.Variant("v1").Stock)
	})

	t.Run("no change", func(t *testing.T) {
		uc, db := newTestUseCase(t)

		_, err := uc.Adjust(ctx, &dto.AdjustInput{VariantID: "v1", NewStock: 10, Note: "recount"})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
		assert.Empty(t, db.Movements())
	})

	t.Run("note required", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.Adjust(ctx, &dto.AdjustInput{VariantID: "v1", NewStock: 1, Note: "  "})
		assert.True(t, apperror.HasCode(err, apperror.CodeNoteRequired))
	})

	t.Run("negative target", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.Adjust(ctx, &dto.AdjustInput{VariantID: "v1", NewStock: -1, Note: "oops"})
		assert.True(t, apperror.HasCode(err, apperror.CodeNegativeStock))
	})
}

func TestRecordSale(t *testing.T) {
	uc, db := newTestUseCase(t)

	mv, err := uc.RecordSale(context.Background(), &dto.SaleInput{VariantID: "v1", Qty: 3, OrderID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSales, mv.Reason)
	assert.Equal(t, RefTypeOrder, *mv.ReferenceType)
	assert.Equal(t, "o-1", *mv.ReferenceID)
	assert.Equal(t, 7, db.Variant("v1").Stock)
	assertLedgerInvariant(t, db)
}

func TestResolveVariantTx(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	id, ok, err := uc.ResolveVariantTx(ctx, nil, "p1", "White", "L")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", id)

	_, ok, err = uc.ResolveVariantTx(ctx, nil, "p1", "Red", "L")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueries(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	v, err := uc.GetVariant(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, model.StockLevelOutOfStock, v.Level())

	_, err = uc.GetVariant(ctx, "missing")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	low, total, err := uc.ListLowStock(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "v2", low[0].ID)

	for i := 0; i < 3; i++ {
		_, err := uc.StockIn(ctx, &dto.StockInInput{VariantID: "v1", Qty: 1, Reference: "PO-100"})
		require.NoError(t, err)
	}
	_, err = uc.StockIn(ctx, &dto.StockInInput{VariantID: "v2", Qty: 1, Reference: "PO-100"})
	require.NoError(t, err)

	items, total, err := uc.ListMovements(ctx, &dto.MovementFilters{VariantID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 3)

	_, total, err = uc.ListMovements(ctx, &dto.MovementFilters{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
