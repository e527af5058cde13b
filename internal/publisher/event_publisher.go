package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/jonboulle/clockwork"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/pubsub"
	"github.com/wispbill/wispbill/internal/types"
)

// EventPublisher emits domain events once their transaction has committed
type EventPublisher interface {
	Publish(ctx context.Context, eventName, customerID string, payload interface{}) error
}

type eventPublisher struct {
	pubsub  pubsub.Publisher
	metrics *metrics.Metrics
	clock   clockwork.Clock
	logger  *logger.Logger
}

func NewEventPublisher(ps pubsub.PubSub, m *metrics.Metrics, clock clockwork.Clock, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubsub:  ps,
		metrics: m,
		clock:   clock,
		logger:  logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, eventName, customerID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event payload").
			WithReportableDetails(map[string]any{
				"event_name": eventName,
			}).
			Mark(ierr.ErrSystem)
	}

	event := &types.BillingEvent{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName:  eventName,
		CustomerID: customerID,
		UserID:     types.GetUserID(ctx),
		Timestamp:  p.clock.Now().UTC(),
		Payload:    body,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("event_name", eventName)
	msg.Metadata.Set("customer_id", customerID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		middleware.SetCorrelationID(requestID, msg)
	}

	p.logger.Debugw("publishing event",
		"event_id", event.ID,
		"event_name", eventName,
		"customer_id", customerID,
	)

	if err := p.pubsub.Publish(ctx, types.BillingEventsTopic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish event").
			WithReportableDetails(map[string]any{
				"event_name": eventName,
			}).
			Mark(ierr.ErrSystem)
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(eventName).Inc()
	}
	return nil
}
