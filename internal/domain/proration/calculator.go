package proration

import (
	"context"

	"github.com/shopspring/decimal"
	ierr "github.com/wispbill/wispbill/internal/errors"
)

// Calculator prices a plan for a billing period
type Calculator interface {
	Calculate(ctx context.Context, params ProrationParams) (*ProrationResult, error)
}

// NewCalculator returns the day based calculator
func NewCalculator() Calculator {
	return &dayBasedCalculator{}
}

// dayBasedCalculator charges the full price for plans that started before the
// period and price × (N − D + 1) / N for a plan starting on day D of N.
type dayBasedCalculator struct{}

func (c *dayBasedCalculator) Calculate(ctx context.Context, params ProrationParams) (*ProrationResult, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	totalDays := params.Period.Days()
	result := &ProrationResult{
		CustomerPlanID: params.CustomerPlanID,
		TotalDays:      totalDays,
		Amount:         decimal.Zero,
		Coefficient:    decimal.Zero,
	}

	switch {
	case params.StartDate.After(params.Period.End):
		return result, nil
	case params.StartDate.Before(params.Period.Start):
		result.Billable = true
		result.RemainingDays = totalDays
		result.Coefficient = decimal.NewFromInt(1)
		result.Amount = params.MonthlyPrice.Round(2)
		return result, nil
	}

	startDay := params.Period.DayIndex(params.StartDate)
	remaining := totalDays - startDay + 1

	result.Billable = true
	result.Prorated = startDay > 1
	result.RemainingDays = remaining
	result.Coefficient = decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(totalDays)))
	result.Amount = params.MonthlyPrice.
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(totalDays))).
		Round(2)

	return result, nil
}

func validateParams(params ProrationParams) error {
	if params.MonthlyPrice.IsNegative() {
		return ierr.NewError("monthly price must not be negative").
			WithHint("Plan price must be zero or positive").
			WithReportableDetails(map[string]any{
				"customer_plan_id": params.CustomerPlanID,
				"monthly_price":    params.MonthlyPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if params.StartDate.IsZero() {
		return ierr.NewError("start date is required").
			WithHint("Plan start date must be set").
			WithReportableDetails(map[string]any{
				"customer_plan_id": params.CustomerPlanID,
			}).
			Mark(ierr.ErrValidation)
	}
	return params.Period.Validate()
}
