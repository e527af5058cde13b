package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/httpclient"
	"github.com/wispbill/wispbill/internal/logger"
)

// Kind tells the gateway which template family a message belongs to
type Kind string

const (
	KindReceipt      Kind = "RECEIPT"
	KindReminder     Kind = "REMINDER"
	KindSuspension   Kind = "SUSPENSION"
	KindReactivation Kind = "REACTIVATION"
)

// Attachment is a document sent along with a message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Message is a customer-facing notice
type Message struct {
	CustomerID string      `json:"customer_id"`
	Kind       Kind        `json:"kind"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// DeliveryResult is what the gateway reports back for one message
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	MessageID string `json:"message_id,omitempty"`
}

// Gateway delivers notices to customers over whatever channel the operator
// has configured behind the webhook
type Gateway interface {
	Send(ctx context.Context, msg *Message) (*DeliveryResult, error)
}

// NewGateway returns the webhook gateway when enabled and a logging stand-in
// otherwise
func NewGateway(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) Gateway {
	if !cfg.Notification.Enabled {
		return NewLoggingGateway(logger)
	}
	return NewWebhookGateway(cfg.Notification, client, logger)
}

type webhookGateway struct {
	client httpclient.Client
	url    string
	apiKey string
	logger *logger.Logger
}

func NewWebhookGateway(cfg config.NotificationConfig, client httpclient.Client, logger *logger.Logger) Gateway {
	return &webhookGateway{
		client: client,
		url:    cfg.WebhookURL,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

func (g *webhookGateway) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	if msg == nil || msg.CustomerID == "" || msg.Text == "" {
		return nil, ierr.NewError("notification needs a customer and a text").
			WithHint("Please provide a customer and a message text").
			Mark(ierr.ErrValidation)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode notification").
			Mark(ierr.ErrSystem)
	}

	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     g.url,
		Headers: map[string]string{"Authorization": "Bearer " + g.apiKey},
		Body:    body,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Notification gateway did not accept the message").
			WithReportableDetails(map[string]any{
				"customer_id": msg.CustomerID,
				"kind":        msg.Kind,
			}).
			Mark(ierr.ErrExternal)
	}

	result := &DeliveryResult{Delivered: true}
	if len(resp.Body) > 0 {
		// gateways that answer with an id get it recorded; others are accepted as is
		_ = json.Unmarshal(resp.Body, result)
		result.Delivered = true
	}

	g.logger.Infow("notification sent",
		"customer_id", msg.CustomerID,
		"kind", msg.Kind,
		"message_id", result.MessageID,
		"with_attachment", msg.Attachment != nil,
	)
	return result, nil
}

type loggingGateway struct {
	logger *logger.Logger
}

func NewLoggingGateway(logger *logger.Logger) Gateway {
	return &loggingGateway{logger: logger}
}

func (g *loggingGateway) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	g.logger.Infow("notification integration disabled, message logged only",
		"customer_id", msg.CustomerID,
		"kind", msg.Kind,
		"text", msg.Text,
	)
	return &DeliveryResult{Delivered: false}, nil
}
