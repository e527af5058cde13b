package plan

import (
	"context"

	"github.com/wispbill/wispbill/internal/types"
)

// Repository is the plan and subscription directory the billing core reads
type Repository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)

	CreateCustomerPlan(ctx context.Context, cp *CustomerPlan) error
	GetCustomerPlan(ctx context.Context, id string) (*CustomerPlan, error)
	// ListCustomerPlans returns the customer's plans in the given statuses
	ListCustomerPlans(ctx context.Context, customerID string, statuses ...types.CustomerPlanStatus) ([]*CustomerPlan, error)
	// ListBillableCustomerIDs returns every customer with at least one ACTIVE plan
	ListBillableCustomerIDs(ctx context.Context) ([]string, error)
	// TransitionCustomerPlans moves the customer's plans from one status to
	// another and returns how many changed
	TransitionCustomerPlans(ctx context.Context, customerID string, from, to types.CustomerPlanStatus) (int, error)

	CreateBinding(ctx context.Context, b *NetworkBinding) error
	ListActiveBindings(ctx context.Context, customerID string) ([]*NetworkBinding, error)
	UpdateBindingProfile(ctx context.Context, id, profile string) error
}
