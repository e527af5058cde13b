package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/service"
)

// InvoiceHandler handles invoice related cron jobs
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	advanceService service.AdvancePaymentService
	logger         *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(
	invoiceService service.InvoiceService,
	advanceService service.AdvancePaymentService,
	logger *logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		advanceService: advanceService,
		logger:         logger,
	}
}

// GenerateMonthlyDebt bills every active customer for the current month
func (h *InvoiceHandler) GenerateMonthlyDebt(c *gin.Context) {
	h.logger.Infow("starting monthly debt cron job")

	resp, err := h.invoiceService.GenerateMonthlyDebt(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to generate monthly debt", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// MarkOverdueInvoices flips unpaid invoices past their due date to OVERDUE
func (h *InvoiceHandler) MarkOverdueInvoices(c *gin.Context) {
	resp, err := h.invoiceService.MarkOverdueInvoices(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to mark overdue invoices", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ApplyAdvancePayments reconciles pending invoices with prepaid months
func (h *InvoiceHandler) ApplyAdvancePayments(c *gin.Context) {
	resp, err := h.advanceService.ApplyToPendingInvoices(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to apply advance payments", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
