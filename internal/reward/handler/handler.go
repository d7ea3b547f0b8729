package handler

import (
	"strconv"

	"github.com/fekuna/omnipos-ledger-service/internal/response"
	"github.com/fekuna/omnipos-ledger-service/internal/reward"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	uc     reward.UseCase
	logger logger.ZapLogger
}

func NewRewardHandler(uc reward.UseCase, log logger.ZapLogger) *RewardHandler {
	return &RewardHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *RewardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/rewards")
	g.GET("/:userId", h.GetAccount)
	g.GET("/:userId/ledger", h.ListEntries)
}

func (h *RewardHandler) GetAccount(c *gin.Context) {
	acc, err := h.uc.GetAccount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}
	response.Success(c, "OK", gin.H{"account": acc})
}

func (h *RewardHandler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	items, total, err := h.uc.ListEntries(c.Request.Context(), c.Param("userId"), page, pageSize)
	if err != nil {
		response.QueryError(c, err, h.logger)
		return
	}
	response.Success(c, "OK", gin.H{"items": items, "total": total})
}
