package types

// CustomerPlanStatus is the state of a customer's subscription to a plan
type CustomerPlanStatus string

const (
	CustomerPlanStatusActive    CustomerPlanStatus = "ACTIVE"
	CustomerPlanStatusSuspended CustomerPlanStatus = "SUSPENDED"
	CustomerPlanStatusCancelled CustomerPlanStatus = "CANCELLED"
)

func (s CustomerPlanStatus) String() string {
	return string(s)
}
