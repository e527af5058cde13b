package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	ierr "github.com/wispbill/wispbill/internal/errors"
)

type amountRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Discount   decimal.Decimal `json:"discount" validate:"gte=0"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     amountRequest
		wantErr bool
	}{
		{"valid", amountRequest{CustomerID: "c", Amount: decimal.NewFromInt(10)}, false},
		{"zero amount", amountRequest{CustomerID: "c", Amount: decimal.Zero}, true},
		{"negative discount", amountRequest{CustomerID: "c", Amount: decimal.NewFromInt(1), Discount: decimal.NewFromInt(-1)}, true},
		{"missing customer", amountRequest{Amount: decimal.NewFromInt(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
