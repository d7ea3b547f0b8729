package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/metrics"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/txmanager"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	RefTypePO     = "PO"
	RefTypeManual = "MANUAL"
	RefTypeOrder  = "Order"

	defaultVariantMovements = 50
	defaultProductMovements = 100
	defaultLowStockPageSize = 20
)

var poReferencePattern = regexp.MustCompile(`^[A-Za-z0-9\-/]{3,20}$`)

type stockUseCase struct {
	repo    stock.Repository
	tx      txmanager.Runner
	metrics *metrics.Metrics
	logger  logger.ZapLogger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewStockUseCase(repo stock.Repository, tx txmanager.Runner, m *metrics.Metrics, log logger.ZapLogger) stock.UseCase {
	return &stockUseCase{
		repo:    repo,
		tx:      tx,
		metrics: m,
		logger:  log,
		tracer:  otel.Tracer("omnipos-ledger/stock"),
		now:     time.Now,
	}
}

func (uc *stockUseCase) ApplyMovement(ctx context.Context, input *dto.MovementInput) (*model.StockMovement, error) {
	return uc.run(ctx, input, nil)
}

func (uc *stockUseCase) ApplyMovementTx(ctx context.Context, tx *sqlx.Tx, input *dto.MovementInput) (*model.StockMovement, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}
	return uc.apply(ctx, uc.repo.WithTx(tx), input, nil)
}

func (uc *stockUseCase) ResolveVariantTx(ctx context.Context, tx *sqlx.Tx, productID, colorName, size string) (string, bool, error) {
	v, err := uc.repo.WithTx(tx).ResolveVariant(ctx, productID, colorName, size)
	if err != nil {
		return "", false, apperror.Internal(err, "failed to resolve variant")
	}
	if v == nil {
		return "", false, nil
	}
	return v.ID, true, nil
}

func (uc *stockUseCase) StockIn(ctx context.Context, input *dto.StockInInput) (*model.StockMovement, error) {
	if input.Qty <= 0 {
		return nil, invalidInput("quantity must be greater than zero")
	}
	ref := strings.TrimSpace(input.Reference)
	if ref == "" {
		return nil, invalidInput("PO reference is required for stock in")
	}
	if !poReferencePattern.MatchString(ref) {
		return nil, invalidInput("invalid PO reference format")
	}

	return uc.run(ctx, &dto.MovementInput{
		VariantID:     input.VariantID,
		Kind:          model.MovementIn,
		Reason:        model.ReasonReceive,
		QtyDelta:      input.Qty,
		ReferenceType: RefTypePO,
		ReferenceID:   ref,
		Note:          strings.TrimSpace(input.Note),
		ActorID:       input.ActorID,
	}, nil)
}

func (uc *stockUseCase) StockOut(ctx context.Context, input *dto.StockOutInput) (*model.StockMovement, error) {
	if input.Qty <= 0 {
		return nil, invalidInput("quantity must be greater than zero")
	}
	if !input.Reason.StockOutReason() {
		return nil, invalidInput("invalid stock out reason %q", string(input.Reason))
	}

	ref := strings.TrimSpace(input.Reference)
	note := strings.TrimSpace(input.Note)
	refType := RefTypeManual

	if input.Reason == model.ReasonReturnOutward {
		// Goods going back to the supplier must point at the purchase order.
		if ref == "" {
			return nil, invalidInput("PO reference is required for return outward")
		}
		refType = RefTypePO
	} else if note == "" {
		return nil, apperror.InvalidState("note is required for %s", strings.ToLower(string(input.Reason))).
			WithCode(apperror.CodeNoteRequired)
	}
	if ref != "" && !poReferencePattern.MatchString(ref) {
		return nil, invalidInput("invalid reference format")
	}

	return uc.run(ctx, &dto.MovementInput{
		VariantID:     input.VariantID,
		Kind:          model.MovementOut,
		Reason:        input.Reason,
		QtyDelta:      -input.Qty,
		ReferenceType: refType,
		ReferenceID:   ref,
		Note:          note,
		ActorID:       input.ActorID,
	}, nil)
}

func (uc *stockUseCase) Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockMovement, error) {
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return nil, apperror.InvalidState("note is required for stock adjustment").WithCode(apperror.CodeNoteRequired)
	}
	if input.NewStock < 0 {
		return nil, apperror.InvalidState("stock cannot be negative").WithCode(apperror.CodeNegativeStock)
	}

	// The delta depends on the locked current count, not on what the operator last saw.
	return uc.run(ctx, &dto.MovementInput{
		VariantID:     input.VariantID,
		Kind:          model.MovementAdjust,
		Reason:        model.ReasonAdjustment,
		ReferenceType: RefTypeManual,
		Note:          note,
		ActorID:       input.ActorID,
	}, func(current int) (int, error) {
		delta := input.NewStock - current
		if delta == 0 {
			return 0, invalidInput("no change in stock")
		}
		return delta, nil
	})
}

func (uc *stockUseCase) RecordSale(ctx context.Context, input *dto.SaleInput) (*model.StockMovement, error) {
	if input.Qty <= 0 {
		return nil, invalidInput("quantity must be greater than zero")
	}
	return uc.run(ctx, &dto.MovementInput{
		VariantID:     input.VariantID,
		Kind:          model.MovementOut,
		Reason:        model.ReasonSales,
		QtyDelta:      -input.Qty,
		ReferenceType: RefTypeOrder,
		ReferenceID:   input.OrderID,
		ActorID:       input.ActorID,
	}, nil)
}

func (uc *stockUseCase) GetVariant(ctx context.Context, id string) (*model.VariantStock, error) {
	v, err := uc.repo.GetVariant(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err, "failed to get variant")
	}
	if v == nil {
		return nil, apperror.NotFound("variant %s not found", id)
	}
	return v, nil
}

func (uc *stockUseCase) ListLowStock(ctx context.Context, page, pageSize int) ([]model.VariantStock, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultLowStockPageSize
	}
	items, total, err := uc.repo.ListLowStock(ctx, page, pageSize)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list low stock variants")
	}
	return items, total, nil
}

func (uc *stockUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	f := *filters
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultProductMovements
		if f.VariantID != "" {
			f.PageSize = defaultVariantMovements
		}
	}
	items, total, err := uc.repo.ListMovements(ctx, &f)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list stock movements")
	}
	return items, total, nil
}

// run applies one movement in its own transaction and records it once committed.
func (uc *stockUseCase) run(ctx context.Context, input *dto.MovementInput, deltaFn func(current int) (int, error)) (*model.StockMovement, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}

	ctx, span := uc.tracer.Start(ctx, "stock.ApplyMovement", trace.WithAttributes(
		attribute.String("variant_id", input.VariantID),
		attribute.String("movement_type", string(input.Kind)),
		attribute.String("reason", string(input.Reason)),
	))
	defer span.End()

	var movement *model.StockMovement
	err := uc.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		movement, err = uc.apply(ctx, uc.repo.WithTx(tx), input, deltaFn)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperror.FromError(err)
	}

	uc.metrics.RecordMovement(string(movement.MovementType), string(movement.Reason))
	uc.logger.Info("stock movement recorded",
		zap.String("variant_id", movement.VariantID),
		zap.String("movement_type", string(movement.MovementType)),
		zap.String("reason", string(movement.Reason)),
		zap.Int("qty_change", movement.QtyChange),
		zap.Int("old_stock", movement.OldStock),
		zap.Int("new_stock", movement.NewStock),
	)
	return movement, nil
}

// apply locks the variant, writes the new count and appends the movement through repo,
// which must already be bound to the caller's transaction.
func (uc *stockUseCase) apply(ctx context.Context, repo stock.Repository, input *dto.MovementInput, deltaFn func(current int) (int, error)) (*model.StockMovement, error) {
	v, err := repo.GetVariantForUpdate(ctx, input.VariantID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load variant")
	}
	if v == nil {
		return nil, apperror.NotFound("variant %s not found", input.VariantID)
	}

	delta := input.QtyDelta
	if deltaFn != nil {
		if delta, err = deltaFn(v.Stock); err != nil {
			return nil, err
		}
	}
	if err := checkDelta(input.Kind, delta); err != nil {
		return nil, err
	}

	newStock := v.Stock + delta
	if newStock < 0 {
		return nil, apperror.InvalidState("stock cannot be negative").WithCode(apperror.CodeNegativeStock)
	}

	now := uc.now()
	if err := repo.UpdateStock(ctx, v.ID, newStock, now); err != nil {
		return nil, apperror.Internal(err, "failed to update stock")
	}

	movement := &model.StockMovement{
		ID:            uuid.New().String(),
		VariantID:     v.ID,
		MovementType:  input.Kind,
		Reason:        input.Reason,
		QtyChange:     delta,
		OldStock:      v.Stock,
		NewStock:      newStock,
		ReferenceType: nullable(input.ReferenceType),
		ReferenceID:   nullable(input.ReferenceID),
		Note:          nullable(input.Note),
		PerformedBy:   nullable(input.ActorID),
		CreatedAt:     now,
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return nil, apperror.Internal(err, "failed to log stock movement")
	}
	return movement, nil
}

func validateMovement(input *dto.MovementInput) error {
	if strings.TrimSpace(input.VariantID) == "" {
		return invalidInput("variant id is required")
	}
	if !input.Kind.Valid() {
		return invalidInput("invalid movement type %q", string(input.Kind))
	}
	if !input.Reason.Valid() {
		return invalidInput("invalid movement reason %q", string(input.Reason))
	}
	return nil
}

func checkDelta(kind model.MovementKind, delta int) error {
	switch kind {
	case model.MovementIn:
		if delta <= 0 {
			return invalidInput("stock in quantity must be positive")
		}
	case model.MovementOut:
		if delta >= 0 {
			return invalidInput("stock out quantity must be negative")
		}
	case model.MovementAdjust:
		if delta == 0 {
			return invalidInput("no change in stock")
		}
	}
	return nil
}

func invalidInput(format string, args ...any) *apperror.Error {
	return apperror.InvalidState(format, args...).WithCode(apperror.CodeInvalidInput)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
