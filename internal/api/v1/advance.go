package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/api/dto"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

type AdvancePaymentHandler struct {
	service service.AdvancePaymentService
	log     *logger.Logger
}

func NewAdvancePaymentHandler(service service.AdvancePaymentService, log *logger.Logger) *AdvancePaymentHandler {
	return &AdvancePaymentHandler{service: service, log: log}
}

// CreateAdvancePayment records a prepayment split across future months
func (h *AdvancePaymentHandler) CreateAdvancePayment(c *gin.Context) {
	var req dto.CreateAdvancePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateAdvancePayment(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to create advance payment", "error", err, "customer_id", req.CustomerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ApplyToInvoice draws a month's pending allocation onto an invoice
func (h *AdvancePaymentHandler) ApplyToInvoice(c *gin.Context) {
	var req dto.ApplyAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.ApplyAdvancePaymentToInvoice(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to apply advance payment", "error", err,
			"customer_id", req.CustomerID,
			"invoice_id", req.InvoiceID,
		)
		c.Error(err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusOK, dto.SuccessResponse{Message: "no pending allocation for the month"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdvancePaymentHandler) GetAdvancePayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Advance payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetAdvancePayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdvancePaymentHandler) ListAdvancePayments(c *gin.Context) {
	var filter types.AdvancePaymentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListAdvancePayments(c.Request.Context(), &filter)
	if err != nil {
		h.log.Errorw("failed to list advance payments", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteAdvancePayment removes a prepayment and its unapplied allocations
func (h *AdvancePaymentHandler) DeleteAdvancePayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Advance payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.DeleteAdvancePayment(c.Request.Context(), id); err != nil {
		h.log.Errorw("failed to delete advance payment", "error", err, "advance_payment_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "advance payment deleted successfully"})
}
