package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/api/dto"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
)

type AccountHandler struct {
	accountService    service.AccountService
	suspensionService service.SuspensionService
	commitmentService service.PaymentCommitmentService
	logger            *logger.Logger
}

func NewAccountHandler(
	accountService service.AccountService,
	suspensionService service.SuspensionService,
	commitmentService service.PaymentCommitmentService,
	logger *logger.Logger,
) *AccountHandler {
	return &AccountHandler{
		accountService:    accountService,
		suspensionService: suspensionService,
		commitmentService: commitmentService,
		logger:            logger,
	}
}

func customerIDParam(c *gin.Context) (string, bool) {
	customerID := c.Param("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return "", false
	}
	return customerID, true
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	resp, err := h.accountService.GetAccount(c.Request.Context(), customerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	var filter types.BillingAccountFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.accountService.ListAccounts(c.Request.Context(), &filter)
	if err != nil {
		h.logger.Errorw("failed to list accounts", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateAccount changes auto-suspension and the credit limit
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateBillingAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.accountService.UpdateAccount(c.Request.Context(), customerID, req)
	if err != nil {
		h.logger.Errorw("failed to update account", "error", err, "customer_id", customerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListLedgerEntries returns the customer's audit trail, newest first
func (h *AccountHandler) ListLedgerEntries(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	var filter types.LedgerEntryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.CustomerID = customerID

	resp, err := h.accountService.ListLedgerEntries(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) VerifyBalance(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	resp, err := h.accountService.VerifyBalance(c.Request.Context(), customerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Suspend moves an ACTIVE account to SUSPENDED and cuts its bindings
func (h *AccountHandler) Suspend(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	var req dto.SuspendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	tally, err := h.suspensionService.SuspendCustomer(c.Request.Context(), customerID, req.Options())
	if err != nil {
		h.logger.Errorw("failed to suspend customer", "error", err, "customer_id", customerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tally)
}

// Reactivate restores a SUSPENDED account and its bindings' plan profiles
func (h *AccountHandler) Reactivate(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	tally, err := h.suspensionService.ReactivateCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.logger.Errorw("failed to reactivate customer", "error", err, "customer_id", customerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tally)
}

// SetPaymentCommitment stores a promise to pay. A suspended account is
// reactivated.
func (h *AccountHandler) SetPaymentCommitment(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	var req dto.PaymentCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.commitmentService.CreateOrUpdatePaymentCommitment(c.Request.Context(), customerID, req)
	if err != nil {
		h.logger.Errorw("failed to set payment commitment", "error", err, "customer_id", customerID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) RemovePaymentCommitment(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	resp, err := h.commitmentService.RemovePaymentCommitment(c.Request.Context(), customerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListActiveCommitments lists accounts whose promise to pay is still ahead
func (h *AccountHandler) ListActiveCommitments(c *gin.Context) {
	var filter types.BillingAccountFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.commitmentService.ListActiveCommitments(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
