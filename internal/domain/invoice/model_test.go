package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

func newInvoice(total string) *Invoice {
	amount := decimal.RequireFromString(total)
	return &Invoice{
		ID:          "inv_1",
		InvoiceType: types.InvoiceTypeSubscription,
		Status:      types.InvoiceStatusPending,
		Total:       amount,
		BalanceDue:  amount,
		DueDate:     time.Date(2024, 7, 7, 23, 59, 59, 0, time.UTC),
	}
}

func TestApplyPayment_StatusTransitions(t *testing.T) {
	inv := newInvoice("100")

	require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(30)))
	assert.Equal(t, types.InvoiceStatusPartial, inv.Status)
	assert.True(t, decimal.NewFromInt(70).Equal(inv.BalanceDue))
	assert.True(t, decimal.NewFromInt(30).Equal(inv.Paid()))

	require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(70)))
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.BalanceDue.IsZero())

	assert.True(t, ierr.IsInvalidOperation(inv.CheckPayable()))
}

func TestApplyPayment_OverdueBecomesPartial(t *testing.T) {
	inv := newInvoice("50")
	inv.Status = types.InvoiceStatusOverdue

	require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(20)))
	assert.Equal(t, types.InvoiceStatusPartial, inv.Status)
	assert.True(t, inv.IsOverdue(inv.DueDate.Add(time.Hour)))

	require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(30)))
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
}

func TestApplyPayment_RejectsOverpayment(t *testing.T) {
	inv := newInvoice("50")

	err := inv.ApplyPayment(decimal.NewFromInt(51))
	assert.True(t, ierr.IsInvalidOperation(err))
	assert.True(t, decimal.NewFromInt(50).Equal(inv.BalanceDue))
	assert.Equal(t, types.InvoiceStatusPending, inv.Status)
}

func TestReversePayment(t *testing.T) {
	inv := newInvoice("100")
	require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(100)))

	inv.ReversePayment(decimal.NewFromInt(40), inv.DueDate.Add(-time.Hour))
	assert.Equal(t, types.InvoiceStatusPartial, inv.Status)

	inv.ReversePayment(decimal.NewFromInt(60), inv.DueDate.Add(time.Hour))
	assert.Equal(t, types.InvoiceStatusOverdue, inv.Status)
	assert.True(t, inv.Total.Equal(inv.BalanceDue))
}

func TestIsOverdue(t *testing.T) {
	inv := newInvoice("10")
	assert.False(t, inv.IsOverdue(inv.DueDate))
	assert.True(t, inv.IsOverdue(inv.DueDate.Add(time.Second)))

	inv.Status = types.InvoiceStatusVoid
	assert.False(t, inv.IsOverdue(inv.DueDate.Add(time.Second)))
}
