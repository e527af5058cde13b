package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/api/dto"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
)

// DunningHandler exposes the dunning evaluators to an external scheduler
type DunningHandler struct {
	dunningService service.DunningService
	logger         *logger.Logger
}

func NewDunningHandler(dunningService service.DunningService, logger *logger.Logger) *DunningHandler {
	return &DunningHandler{
		dunningService: dunningService,
		logger:         logger,
	}
}

func (h *DunningHandler) RunReminder(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	result, err := h.dunningService.RunReminder(c.Request.Context(), req.Force)
	h.respond(c, types.DunningTriggerReminder, result, err)
}

func (h *DunningHandler) RunDailyCut(c *gin.Context) {
	result, err := h.dunningService.RunDailyCut(c.Request.Context())
	h.respond(c, types.DunningTriggerDailyCut, result, err)
}

func (h *DunningHandler) RunMonthlyCut(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	result, err := h.dunningService.RunMonthlyCut(c.Request.Context(), req.Force)
	h.respond(c, types.DunningTriggerMonthlyCut, result, err)
}

func (h *DunningHandler) ProcessExpiredPaymentCommitments(c *gin.Context) {
	result, err := h.dunningService.ProcessExpiredPaymentCommitments(c.Request.Context())
	h.respond(c, types.DunningTriggerCommitmentExpired, result, err)
}

func (h *DunningHandler) respond(c *gin.Context, trigger types.DunningTrigger, result *types.DunningRunResult, err error) {
	if err != nil {
		h.logger.Errorw("dunning run failed", "trigger", trigger, "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindRunRequest(c *gin.Context) (dto.RunDunningRequest, bool) {
	var req dto.RunDunningRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return req, false
		}
	}
	return req, true
}
