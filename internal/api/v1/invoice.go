package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	config         *config.Configuration
	clock          clockwork.Clock
	logger         *logger.Logger
}

func NewInvoiceHandler(
	invoiceService service.InvoiceService,
	config *config.Configuration,
	clock clockwork.Clock,
	logger *logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		config:         config,
		clock:          clock,
		logger:         logger,
	}
}

// GenerateDebt bills every active customer for the requested month, or for
// the current month when the body is empty
func (h *InvoiceHandler) GenerateDebt(c *gin.Context) {
	period, ok := h.bindPeriod(c)
	if !ok {
		return
	}

	resp, err := h.invoiceService.GenerateDebtForPeriod(c.Request.Context(), period)
	if err != nil {
		h.logger.Errorw("failed to generate debt", "error", err, "period", period.Key())
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GenerateCustomerDebt bills a single customer for the requested month
func (h *InvoiceHandler) GenerateCustomerDebt(c *gin.Context) {
	customerID := c.Param("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	period, ok := h.bindPeriod(c)
	if !ok {
		return
	}

	resp, err := h.invoiceService.GenerateCustomerDebt(c.Request.Context(), customerID, period)
	if err != nil {
		h.logger.Errorw("failed to generate customer debt", "error", err, "customer_id", customerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InvoiceHandler) bindPeriod(c *gin.Context) (types.BillingPeriod, bool) {
	var req dto.GenerateDebtRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return types.BillingPeriod{}, false
		}
	}
	if err := validator.ValidateRequest(&req); err != nil {
		c.Error(err)
		return types.BillingPeriod{}, false
	}
	return req.Period(h.clock.Now(), h.config.Billing.Location()), true
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var filter types.InvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.logger.Errorw("failed to bind query parameters", "error", err)
		c.Error(ierr.WithError(err).WithHint("invalid query parameters").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.ListInvoices(c.Request.Context(), &filter)
	if err != nil {
		h.logger.Errorw("failed to list invoices", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VoidInvoice voids an unpaid invoice and reverses its ledger effect
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid invoice id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.VoidInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.invoiceService.VoidInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.logger.Errorw("failed to void invoice", "error", err, "invoice_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
