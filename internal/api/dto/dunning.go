package dto

// RunDunningRequest lets an operator force an evaluator outside its day
type RunDunningRequest struct {
	Force bool `json:"force,omitempty"`
}
