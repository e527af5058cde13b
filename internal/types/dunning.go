package types

// DunningTrigger names the scheduled evaluator that started a run
type DunningTrigger string

const (
	DunningTriggerReminder          DunningTrigger = "REMINDER"
	DunningTriggerDailyCut          DunningTrigger = "DAILY_CUT"
	DunningTriggerMonthlyCut        DunningTrigger = "MONTHLY_CUT"
	DunningTriggerCommitmentExpired DunningTrigger = "COMMITMENT_EXPIRED"
	DunningTriggerManual            DunningTrigger = "MANUAL"
)

func (t DunningTrigger) String() string {
	return string(t)
}

// SuspensionOutcome is what a suspend or reactivate call did to the account
type SuspensionOutcome string

const (
	SuspensionOutcomeSuspended   SuspensionOutcome = "SUSPENDED"
	SuspensionOutcomeReactivated SuspensionOutcome = "REACTIVATED"
	// SuspensionOutcomeSkipped means the account was not in the source state
	// and nothing was changed
	SuspensionOutcomeSkipped SuspensionOutcome = "SKIPPED"
	SuspensionOutcomeFailed  SuspensionOutcome = "FAILED"
)

// SuspensionOptions tunes a single suspension
type SuspensionOptions struct {
	Reason          string         `json:"reason,omitempty"`
	Trigger         DunningTrigger `json:"trigger,omitempty"`
	ClearCommitment bool           `json:"clear_commitment,omitempty"`
}

// SuspensionTally counts the per-binding network changes of one suspend or
// reactivate call. The account transition itself is reported by Outcome.
type SuspensionTally struct {
	CustomerID string            `json:"customer_id"`
	Outcome    SuspensionOutcome `json:"outcome"`
	Success    int               `json:"success"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Errors     []string          `json:"errors,omitempty"`
}

// Changed reports whether the account transitioned
func (t *SuspensionTally) Changed() bool {
	return t != nil && (t.Outcome == SuspensionOutcomeSuspended || t.Outcome == SuspensionOutcomeReactivated)
}

// DunningRunItem is one account's result inside a dunning run
type DunningRunItem struct {
	CustomerID string            `json:"customer_id"`
	Outcome    SuspensionOutcome `json:"outcome,omitempty"`
	Notified   bool              `json:"notified,omitempty"`
	Tally      *SuspensionTally  `json:"tally,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// DunningRunResult summarises one evaluator run
type DunningRunResult struct {
	Trigger  DunningTrigger   `json:"trigger"`
	Ran      bool             `json:"ran"`
	Total    int              `json:"total"`
	Cut      int              `json:"cut"`
	Failed   int              `json:"failed"`
	Skipped  int              `json:"skipped"`
	Notified int              `json:"notified"`
	Items    []DunningRunItem `json:"items"`
}

func NewDunningRunResult(trigger DunningTrigger) *DunningRunResult {
	return &DunningRunResult{
		Trigger: trigger,
		Items:   make([]DunningRunItem, 0),
	}
}
