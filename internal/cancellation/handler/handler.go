package handler

import (
	"strconv"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/cancellation"
	"github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/response"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type CancellationHandler struct {
	uc     cancellation.UseCase
	logger logger.ZapLogger
}

func NewCancellationHandler(uc cancellation.UseCase, log logger.ZapLogger) *CancellationHandler {
	return &CancellationHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *CancellationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/cancellations")
	g.POST("/decide", h.Decide)
	g.POST("/finalize", h.Finalize)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

type decisionRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	Decision  string `json:"decision" binding:"required,oneof=Approved Rejected"`
	Note      string `json:"note"`
}

func (r *decisionRequest) input(c *gin.Context) *dto.DecisionInput {
	return &dto.DecisionInput{
		RequestID: r.RequestID,
		Decision:  model.RequestStatus(r.Decision),
		Note:      r.Note,
		ActorID:   auth.GetUserID(c.Request.Context()),
	}
}

// Decide handles the first-level decision on a cancellation or return request.
func (h *CancellationHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.uc.Decide(c.Request.Context(), req.input(c))
	if err != nil {
		response.Error(c, err, h.logger)
		return
	}

	response.Success(c, res.Message, gin.H{"request": res.Request, "reversal": res.Reversal})
}

// Finalize handles the post-inspection decision on an approved return.
func (h *CancellationHandler) Finalize(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.uc.Finalize(c.Request.Context(), req.input(c))
	if err != nil {
		response.Error(c, err, h.logger)
		return
	}

	response.Success(c, res.Message, gin.H{"request": res.Request, "reversal": res.Reversal})
}

func (h *CancellationHandler) Get(c *gin.Context) {
	req, err := h.uc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}

	response.Success(c, "OK", gin.H{"request": req, "return": req.HasProof()})
}

func (h *CancellationHandler) List(c *gin.Context) {
	filters := &dto.ListFilters{
		Kind:     dto.RequestKind(c.Query("kind")),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	}
	if filters.Kind != "" && filters.Kind != dto.KindCancellation && filters.Kind != dto.KindReturn {
		response.BadRequest(c, "kind must be cancellation or return")
		return
	}
	if v := c.Query("status"); v != "" {
		st, err := model.ParseRequestStatus(v)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filters.Status = st
	}
	if v := c.Query("finalStatus"); v != "" {
		st, err := model.ParseRequestStatus(v)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filters.RefundFinalStatus = st
	}

	items, total, err := h.uc.List(c.Request.Context(), filters)
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
