package types

import (
	"encoding/json"
	"time"
)

// BillingEventsTopic carries every domain event of the billing engine
const BillingEventsTopic = "billing_events"

// BillingEvent is a domain event published after the owning transaction
// commits
type BillingEvent struct {
	ID         string          `json:"id"`
	EventName  string          `json:"event_name"`
	CustomerID string          `json:"customer_id"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// invoice event names
const (
	EventInvoiceGenerated = "invoice.generated"
	EventInvoiceVoided    = "invoice.voided"
)

// payment event names
const (
	EventPaymentRecorded = "payment.recorded"
	EventPaymentVoided   = "payment.voided"
)

// advance payment event names
const (
	EventAdvancePaymentCreated = "advance_payment.created"
	EventAdvancePaymentApplied = "advance_payment.applied"
	EventAdvancePaymentDeleted = "advance_payment.deleted"
)

// account event names
const (
	EventAccountSuspended         = "account.suspended"
	EventAccountReactivated       = "account.reactivated"
	EventPaymentCommitmentUpdated = "payment_commitment.updated"
	EventPaymentCommitmentRemoved = "payment_commitment.removed"
)
