package publisher

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/types"
)

// NewEventLogHandler returns a consumer that writes every billing event to the
// structured log and counts it
func NewEventLogHandler(m *metrics.Metrics, logger *logger.Logger) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		var event types.BillingEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return ierr.WithError(err).
				WithHint("Malformed billing event").
				WithReportableDetails(map[string]any{
					"message_uuid": msg.UUID,
				}).
				Mark(ierr.ErrValidation)
		}

		logger.Infow("billing event",
			"event_id", event.ID,
			"event_name", event.EventName,
			"customer_id", event.CustomerID,
			"user_id", event.UserID,
			"timestamp", event.Timestamp,
		)
		if m != nil {
			m.EventsConsumed.WithLabelValues(event.EventName).Inc()
		}
		return nil
	}
}
