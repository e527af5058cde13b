package document

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/httpclient"
	"github.com/wispbill/wispbill/internal/logger"
)

// Document is a rendered file ready to be stored or attached
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// Generator renders invoice and receipt documents
type Generator interface {
	// RenderInvoice returns the rendered invoice, or nil when rendering is
	// not available
	RenderInvoice(ctx context.Context, invoiceID string) (*Document, error)
}

// NewGenerator returns the HTTP renderer when enabled and a no-op otherwise
func NewGenerator(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) Generator {
	if !cfg.Document.Enabled {
		return NewNoopGenerator()
	}
	return NewHTTPGenerator(cfg.Document, client, logger)
}

type httpGenerator struct {
	client  httpclient.Client
	baseURL string
	logger  *logger.Logger
}

func NewHTTPGenerator(cfg config.DocumentConfig, client httpclient.Client, logger *logger.Logger) Generator {
	return &httpGenerator{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

func (g *httpGenerator) RenderInvoice(ctx context.Context, invoiceID string) (*Document, error) {
	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/invoices/%s/pdf", g.baseURL, url.PathEscape(invoiceID)),
		Headers: map[string]string{"Accept": "application/pdf"},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to render invoice document").
			WithReportableDetails(map[string]any{
				"invoice_id": invoiceID,
			}).
			Mark(ierr.ErrExternal)
	}
	if len(resp.Body) == 0 {
		return nil, ierr.NewError("renderer returned an empty document").
			WithHint("Failed to render invoice document").
			WithReportableDetails(map[string]any{
				"invoice_id": invoiceID,
			}).
			Mark(ierr.ErrExternal)
	}

	contentType := resp.Headers["Content-Type"]
	if contentType == "" {
		contentType = "application/pdf"
	}

	g.logger.Debugw("invoice document rendered",
		"invoice_id", invoiceID,
		"bytes", len(resp.Body),
	)

	return &Document{
		ID:          invoiceID,
		Filename:    invoiceID + ".pdf",
		ContentType: contentType,
		Data:        resp.Body,
	}, nil
}

type noopGenerator struct{}

func NewNoopGenerator() Generator {
	return noopGenerator{}
}

func (noopGenerator) RenderInvoice(context.Context, string) (*Document, error) {
	return nil, nil
}
