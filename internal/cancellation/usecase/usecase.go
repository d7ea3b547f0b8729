package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/cancellation"
	"github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/metrics"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/order"
	"github.com/fekuna/omnipos-ledger-service/internal/promotion"
	"github.com/fekuna/omnipos-ledger-service/internal/reward"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	stockdto "github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/txmanager"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	RefTypeReturn = "Return"

	skipInvalidLine     = "invalid line"
	skipVariantNotFound = "variant not found"
	defaultListPageSize = 20
)

const (
	msgRejected             = "Request rejected."
	msgReturnApproved       = "Return / refund request approved. Please finalize after goods are received."
	msgCancellationApproved = "Cancellation approved and finalized."
	msgRefundApproved       = "Refund approved. Stock, points and promotions have been reversed."
	msgRefundRejected       = "Refund rejected. No changes were made to stock, points or promotions."
)

type Deps struct {
	Repo       cancellation.Repository
	Orders     order.Repository
	Stock      stock.UseCase
	Rewards    reward.UseCase
	Promotions promotion.UseCase
	Tx         txmanager.Runner
	Metrics    *metrics.Metrics
	Logger     logger.ZapLogger
}

type cancellationUseCase struct {
	repo       cancellation.Repository
	orders     order.Repository
	stock      stock.UseCase
	rewards    reward.UseCase
	promotions promotion.UseCase
	tx         txmanager.Runner
	metrics    *metrics.Metrics
	logger     logger.ZapLogger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewCancellationUseCase(d Deps) cancellation.UseCase {
	return &cancellationUseCase{
		repo:       d.Repo,
		orders:     d.Orders,
		stock:      d.Stock,
		rewards:    d.Rewards,
		promotions: d.Promotions,
		tx:         d.Tx,
		metrics:    d.Metrics,
		logger:     d.Logger,
		tracer:     otel.Tracer("omnipos-ledger/cancellation"),
		now:        time.Now,
	}
}

func (uc *cancellationUseCase) Decide(ctx context.Context, input *dto.DecisionInput) (*dto.DecisionResult, error) {
	note := strings.TrimSpace(input.Note)
	if err := validateDecision(input.Decision); err != nil {
		return nil, err
	}
	if input.Decision == model.StatusRejected && note == "" {
		return nil, apperror.InvalidState("Rejection reason is required.").WithCode(apperror.CodeNoteRequired)
	}

	ctx, span := uc.tracer.Start(ctx, "cancellation.Decide", trace.WithAttributes(
		attribute.String("request_id", input.RequestID),
		attribute.String("decision", string(input.Decision)),
	))
	defer span.End()

	var (
		result    *dto.DecisionResult
		reversing bool
		started   time.Time
	)
	err := uc.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)

		req, err := uc.lock(ctx, repo, input.RequestID)
		if err != nil {
			return err
		}
		if req.Status != model.StatusPending {
			return apperror.Conflict("Request has already been processed (status: %s).", req.Status)
		}

		now := uc.now()
		update := &dto.DecisionUpdate{
			ID:          req.ID,
			Status:      input.Decision,
			AdminNote:   note,
			ProcessedBy: actor(input.ActorID),
			ProcessedAt: now,
		}
		if input.Decision == model.StatusApproved && req.HasProof() {
			update.RefundFinalStatus = model.NewNullRequestStatus(model.StatusPending)
		}

		ok, err := repo.UpdateDecision(ctx, update)
		if err != nil {
			return apperror.Internal(err, "Failed updating cancellation")
		}
		if !ok {
			return apperror.Conflict("Request has already been processed.")
		}

		req.Status = update.Status
		req.RefundFinalStatus = update.RefundFinalStatus
		req.AdminNote = update.AdminNote
		req.ProcessedBy = update.ProcessedBy
		req.ProcessedAt = &now

		result = &dto.DecisionResult{Request: req}
		switch {
		case input.Decision == model.StatusRejected:
			result.Message = msgRejected
		case req.HasProof():
			result.Message = msgReturnApproved
		default:
			reversing, started = true, time.Now()
			reversal, err := uc.reverse(ctx, tx, req, input.ActorID)
			if err != nil {
				return err
			}
			result.Reversal = reversal
			result.Message = msgCancellationApproved
		}
		return nil
	})

	if reversing {
		uc.metrics.RecordReversal(string(model.OrderCanceled), err, time.Since(started))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if reversing {
			return nil, approvedNotFinalized("Approved but failed to finalize cancellation: ", err)
		}
		return nil, apperror.FromError(err)
	}

	uc.afterCommit(result)
	uc.logger.Info("cancellation decided",
		zap.String("request_id", result.Request.ID),
		zap.String("order_id", result.Request.OrderID),
		zap.String("decision", string(input.Decision)),
		zap.Bool("return", result.Request.HasProof()),
	)
	return result, nil
}

func (uc *cancellationUseCase) Finalize(ctx context.Context, input *dto.DecisionInput) (*dto.DecisionResult, error) {
	note := strings.TrimSpace(input.Note)
	if err := validateDecision(input.Decision); err != nil {
		return nil, err
	}
	if input.Decision == model.StatusRejected && note == "" {
		return nil, apperror.InvalidState("Reason is required when rejecting after inspection.").WithCode(apperror.CodeNoteRequired)
	}

	ctx, span := uc.tracer.Start(ctx, "cancellation.Finalize", trace.WithAttributes(
		attribute.String("request_id", input.RequestID),
		attribute.String("decision", string(input.Decision)),
	))
	defer span.End()

	var (
		result    *dto.DecisionResult
		reversing bool
		started   time.Time
	)
	err := uc.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)

		req, err := uc.lock(ctx, repo, input.RequestID)
		if err != nil {
			return err
		}
		if !req.HasProof() {
			return apperror.Conflict("This record is a cancellation, not a return.")
		}
		if req.Status != model.StatusApproved && req.RefundFinalStatus.Open() {
			return apperror.Conflict("Return is not approved yet (first-level decision).")
		}
		if !req.RefundFinalStatus.Open() {
			return alreadyFinalized(req.RefundFinalStatus.String())
		}

		now := uc.now()
		update := &dto.FinalUpdate{
			ID:                req.ID,
			Status:            model.StatusApproved,
			RefundFinalStatus: input.Decision,
			RefundFinalNote:   note,
			RefundFinalAt:     now,
		}
		if input.Decision == model.StatusRejected {
			update.Status = model.StatusRejected
		}

		ok, err := repo.UpdateFinal(ctx, update)
		if err != nil {
			return apperror.Internal(err, "Failed to finalize refund")
		}
		if !ok {
			return alreadyFinalized("unknown")
		}

		req.Status = update.Status
		req.RefundFinalStatus = model.NewNullRequestStatus(update.RefundFinalStatus)
		req.RefundFinalNote = note
		req.RefundFinalAt = &now

		result = &dto.DecisionResult{Request: req, Message: msgRefundRejected}
		if input.Decision == model.StatusApproved {
			reversing, started = true, time.Now()
			reversal, err := uc.reverse(ctx, tx, req, input.ActorID)
			if err != nil {
				return err
			}
			result.Reversal = reversal
			result.Message = msgRefundApproved
		}
		return nil
	})

	if reversing {
		uc.metrics.RecordReversal(string(model.OrderReturnRefund), err, time.Since(started))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if reversing {
			return nil, approvedNotFinalized("Failed to finalize refund: ", err)
		}
		return nil, apperror.FromError(err)
	}

	uc.afterCommit(result)
	uc.logger.Info("refund finalized",
		zap.String("request_id", result.Request.ID),
		zap.String("order_id", result.Request.OrderID),
		zap.String("decision", string(input.Decision)),
	)
	return result, nil
}

func (uc *cancellationUseCase) Get(ctx context.Context, id string) (*model.CancellationRequest, error) {
	req, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load cancellation request")
	}
	if req == nil {
		return nil, apperror.NotFound("cancellation request %s not found", id)
	}
	return req, nil
}

func (uc *cancellationUseCase) List(ctx context.Context, filters *dto.ListFilters) ([]model.CancellationRequest, int, error) {
	f := *filters
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultListPageSize
	}
	items, total, err := uc.repo.List(ctx, &f)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list cancellation requests")
	}
	return items, total, nil
}

func (uc *cancellationUseCase) lock(ctx context.Context, repo cancellation.Repository, id string) (*model.CancellationRequest, error) {
	req, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load cancellation request")
	}
	if req == nil {
		return nil, apperror.NotFound("Cancellation record not found.")
	}
	return req, nil
}

// reverse undoes the stock, reward and promotion effects of the request's order inside tx.
// Any error aborts the caller's transaction.
func (uc *cancellationUseCase) reverse(ctx context.Context, tx *sqlx.Tx, req *model.CancellationRequest, actorID string) (*dto.ReversalResult, error) {
	ctx, span := uc.tracer.Start(ctx, "cancellation.reverse", trace.WithAttributes(
		attribute.String("order_id", req.OrderID),
	))
	defer span.End()

	orders := uc.orders.WithTx(tx)
	o, err := orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load order")
	}
	if o == nil {
		return nil, apperror.NotFound("Order not found for this cancellation.")
	}

	result := &dto.ReversalResult{
		OrderID:     o.ID,
		OrderStatus: req.TerminalOrderStatus(),
	}

	for _, item := range o.Items {
		if !item.Returnable() {
			result.SkippedLines = append(result.SkippedLines, skipped(item, skipInvalidLine))
			continue
		}

		variantID, found, err := uc.stock.ResolveVariantTx(ctx, tx, item.ProductID, item.ColorName, item.Size)
		if err != nil {
			return nil, err
		}
		if !found {
			result.SkippedLines = append(result.SkippedLines, skipped(item, skipVariantNotFound))
			continue
		}

		mv, err := uc.stock.ApplyMovementTx(ctx, tx, &stockdto.MovementInput{
			VariantID:     variantID,
			Kind:          model.MovementIn,
			Reason:        model.ReasonReturn,
			QtyDelta:      item.Quantity,
			ReferenceType: RefTypeReturn,
			ReferenceID:   o.ID,
			Note:          req.Reason,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, err
		}
		result.Movements = append(result.Movements, *mv)
	}

	if result.Rewards, err = uc.rewards.ReverseForOrderTx(ctx, tx, o.ID, o.UserID); err != nil {
		return nil, err
	}
	if result.TargetedPromotions, err = uc.promotions.ReverseTargetedTx(ctx, tx, o.UserID); err != nil {
		return nil, err
	}
	if result.CampaignPromotions, err = uc.promotions.ReverseCampaignTx(ctx, tx, o.ID); err != nil {
		return nil, err
	}

	if err := orders.UpdateStatus(ctx, o.ID, result.OrderStatus); err != nil {
		return nil, apperror.Internal(err, "failed to update order status")
	}

	span.SetAttributes(
		attribute.Int("movements", len(result.Movements)),
		attribute.Int("skipped_lines", len(result.SkippedLines)),
	)
	return result, nil
}

// afterCommit records what a committed reversal did. Skipped lines need manual follow-up.
func (uc *cancellationUseCase) afterCommit(result *dto.DecisionResult) {
	r := result.Reversal
	if r == nil {
		return
	}
	for _, mv := range r.Movements {
		uc.metrics.RecordMovement(string(mv.MovementType), string(mv.Reason))
	}
	uc.metrics.RecordSkippedLines(len(r.SkippedLines))
	fields := []zap.Field{
		zap.String("request_id", result.Request.ID),
		zap.String("order_id", r.OrderID),
		zap.String("order_status", string(r.OrderStatus)),
		zap.Int("movements", len(r.Movements)),
		zap.Strings("targeted_promotions", r.TargetedPromotions),
		zap.Strings("campaign_promotions", r.CampaignPromotions),
	}
	if r.Rewards != nil {
		fields = append(fields,
			zap.Int("points_earned_reversed", r.Rewards.Earned),
			zap.Int("points_redeemed_reversed", r.Rewards.Redeemed),
		)
	}
	uc.logger.Info("order reversal committed", fields...)
	for _, line := range r.SkippedLines {
		uc.logger.Warn("order line not returned to stock",
			zap.String("request_id", result.Request.ID),
			zap.String("order_id", r.OrderID),
			zap.String("product_id", line.ProductID),
			zap.String("color_name", line.ColorName),
			zap.String("size", line.Size),
			zap.Int("quantity", line.Quantity),
			zap.String("reason", line.Reason),
		)
	}
}

func validateDecision(d model.RequestStatus) error {
	if !d.Decision() {
		return apperror.InvalidState("Invalid status").WithCode(apperror.CodeInvalidInput)
	}
	return nil
}

func alreadyFinalized(status string) *apperror.Error {
	return apperror.Conflict("Refund already finalized with status: %s", status).WithCode(apperror.CodeAlreadyFinalized)
}

// approvedNotFinalized reports a plain cancellation whose reversal rolled back. The request
// is still Pending, so the same decision can be retried.
// approvedNotFinalized reports a rolled-back approval; stock, points and
// promotions are unchanged and the request stays open for a retry.
func approvedNotFinalized(prefix string, err error) *apperror.Error {
	cause := apperror.FromError(err)
	return &apperror.Error{
		Kind:    cause.Kind,
		Code:    apperror.CodeApprovedNotFinalized,
		Message: prefix + cause.Message,
		Err:     err,
	}
}

func actor(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func skipped(item model.OrderItem, reason string) dto.SkippedLine {
	return dto.SkippedLine{
		ProductID: item.ProductID,
		ColorName: item.ColorName,
		Size:      item.Size,
		Quantity:  item.Quantity,
		Reason:    reason,
	}
}
