package handler

import (
	"fmt"
	"strconv"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/response"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type StockHandler struct {
	uc     stock.UseCase
	logger logger.ZapLogger
}

func NewStockHandler(uc stock.UseCase, log logger.ZapLogger) *StockHandler {
	return &StockHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/stock")
	g.POST("/in", h.StockIn)
	g.POST("/out", h.StockOut)
	g.POST("/adjust", h.Adjust)
	g.GET("/variants/:id", h.GetVariant)
	g.GET("/movements", h.ListMovements)
	g.GET("/low", h.ListLowStock)
}

type stockInRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Qty       int    `json:"qty" binding:"required,gt=0"`
	Reference string `json:"reference"`
	Note      string `json:"note"`
}

type stockOutRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Qty       int    `json:"qty" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"required,oneof=DAMAGE RETURN_OUTWARD OTHERS"`
	Reference string `json:"reference"`
	Note      string `json:"note"`
}

type adjustRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	NewStock  *int   `json:"newStock" binding:"required,gte=0"`
	Note      string `json:"note"`
}

func (h *StockHandler) StockIn(c *gin.Context) {
	var req stockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mv, err := h.uc.StockIn(c.Request.Context(), &dto.StockInInput{
		VariantID: req.VariantID,
		Qty:       req.Qty,
		Reference: req.Reference,
		Note:      req.Note,
		ActorID:   auth.GetUserID(c.Request.Context()),
	})
	if err != nil {
		response.Error(c, err, h.logger)
		return
	}

	response.Success(c, fmt.Sprintf("Stock in recorded. New stock: %d", mv.NewStock), gin.H{"movement": mv})
}

func (h *StockHandler) StockOut(c *gin.Context) {
	var req stockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mv, err := h.uc.StockOut(c.Request.Context(), &dto.StockOutInput{
		VariantID: req.VariantID,
		Qty:       req.Qty,
		Reason:    model.MovementReason(req.Reason),
		Reference: req.Reference,
		Note:      req.Note,
		ActorID:   auth.GetUserID(c.Request.Context()),
	})
	if err != nil {
		response.Error(c, err, h.logger)
		return
	}

	response.Success(c, fmt.Sprintf("Stock out recorded. New stock: %d", mv.NewStock), gin.H{"movement": mv})
}

func (h *StockHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mv, err := h.uc.Adjust(c.Request.Context(), &dto.AdjustInput{
		VariantID: req.VariantID,
		NewStock:  *req.NewStock,
		Note:      req.Note,
		ActorID:   auth.GetUserID(c.Request.Context()),
	})
	if err != nil {
		response.Error(c, err, h.logger)
		return
	}

	response.Success(c, fmt.Sprintf("Stock adjusted from %d to %d", mv.OldStock, mv.NewStock), gin.H{"movement": mv})
}

func (h *StockHandler) GetVariant(c *gin.Context) {
	v, err := h.uc.GetVariant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}

	response.Success(c, "OK", gin.H{"variant": v, "level": v.Level()})
}

func (h *StockHandler) ListMovements(c *gin.Context) {
	filters := &dto.MovementFilters{
		VariantID: c.Query("variantId"),
		ProductID: c.Query("productId"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "pageSize"),
	}
	if v := c.Query("type"); v != "" {
		kind, err := model.ParseMovementKind(v)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filters.MovementType = kind
	}
	if v := c.Query("reason"); v != "" {
		reason, err := model.ParseMovementReason(v)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filters.Reason = reason
	}

	items, total, err := h.uc.ListMovements(c.Request.Context(), filters)
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}

	response.Success(c, "OK", gin.H{"items": items, "total": total})
}

func (h *StockHandler) ListLowStock(c *gin.Context) {
	items, total, err := h.uc.ListLowStock(c.Request.Context(), queryInt(c, "page"), queryInt(c, "pageSize"))
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}

	response.Success(c, "OK", gin.H{"items": items, "total": total})
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
