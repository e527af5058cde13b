package plan

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// Plan is a sellable network access offer
type Plan struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	MonthlyPrice decimal.Decimal `db:"monthly_price" json:"monthly_price"`
	// NetworkProfile is the speed profile a binding runs on while the
	// customer is in good standing
	NetworkProfile string `db:"network_profile" json:"network_profile"`
	types.BaseModel
}

// CustomerPlan is one customer's subscription to a plan
type CustomerPlan struct {
	ID           string                   `db:"id" json:"id"`
	CustomerID   string                   `db:"customer_id" json:"customer_id"`
	PlanID       string                   `db:"plan_id" json:"plan_id"`
	MonthlyPrice decimal.Decimal          `db:"monthly_price" json:"monthly_price"`
	StartDate    time.Time                `db:"start_date" json:"start_date"`
	Status       types.CustomerPlanStatus `db:"status" json:"status"`
	types.BaseModel
}

// NetworkBinding ties a network username to a customer plan
type NetworkBinding struct {
	ID             string  `db:"id" json:"id"`
	CustomerID     string  `db:"customer_id" json:"customer_id"`
	CustomerPlanID *string `db:"customer_plan_id" json:"customer_plan_id,omitempty"`
	Username       string  `db:"username" json:"username"`
	// Profile is the last profile successfully applied on the equipment
	Profile string `db:"profile" json:"profile"`
	Active  bool   `db:"active" json:"active"`
	types.BaseModel
}
