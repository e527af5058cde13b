package proration

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// ProrationParams holds the input for pricing one plan in one period
type ProrationParams struct {
	// CustomerPlanID is carried through to the result for line item references
	CustomerPlanID string
	MonthlyPrice   decimal.Decimal
	StartDate      time.Time
	Period         types.BillingPeriod
}

// ProrationResult is the charge of one plan for one period
type ProrationResult struct {
	CustomerPlanID string          `json:"customer_plan_id"`
	Amount         decimal.Decimal `json:"amount"`
	// Billable is false when the plan starts after the period ends
	Billable bool `json:"billable"`
	// Prorated is true when the plan started inside the period
	Prorated bool `json:"prorated"`
	// TotalDays is N, the number of days in the period
	TotalDays int `json:"total_days"`
	// RemainingDays counts from the start day to period end inclusive
	RemainingDays int             `json:"remaining_days"`
	Coefficient   decimal.Decimal `json:"coefficient"`
}
