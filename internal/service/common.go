package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/types"
)

// external systems as labelled in logs and metrics
const (
	systemNetwork      = "network"
	systemNotification = "notification"
	systemDocument     = "document"
	systemReceiptStore = "receipt_store"
	systemEvents       = "events"
)

func (p *ServiceParams) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

func (p *ServiceParams) now() time.Time {
	return p.clock().Now().UTC()
}

func (p *ServiceParams) location() *time.Location {
	return p.Config.Billing.Location()
}

// getOrCreateAccount locks the customer's account, creating it on first use
func (p *ServiceParams) getOrCreateAccount(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	return p.AccountRepo.GetOrCreateForUpdate(ctx, account.New(ctx, customerID, p.now()))
}

// postBalance appends a BALANCE book entry and applies it to the account.
// The caller persists the account once all postings are done.
func (p *ServiceParams) postBalance(ctx context.Context, acc *account.BillingAccount, entryType types.LedgerEntryType, amount decimal.Decimal, description string, refs ledger.EntryParams) error {
	if !amount.Round(2).IsPositive() {
		return nil
	}
	refs.CustomerID = acc.CustomerID
	refs.Book = types.LedgerBookBalance
	refs.Type = entryType
	refs.Amount = amount
	refs.Description = description

	entry := ledger.NewEntry(ctx, refs, p.now())
	if err := p.LedgerRepo.Append(ctx, entry); err != nil {
		return err
	}
	acc.Adjust(entry.Signed())
	return nil
}

// postAdvance appends an ADVANCE book entry. The account balance is untouched.
func (p *ServiceParams) postAdvance(ctx context.Context, customerID string, entryType types.LedgerEntryType, amount decimal.Decimal, description string, refs ledger.EntryParams) error {
	if !amount.Round(2).IsPositive() {
		return nil
	}
	refs.CustomerID = customerID
	refs.Book = types.LedgerBookAdvance
	refs.Type = entryType
	refs.Amount = amount
	refs.Description = description
	return p.LedgerRepo.Append(ctx, ledger.NewEntry(ctx, refs, p.now()))
}

// reportExternal logs a failed post-commit side effect. It never fails the
// operation that triggered it.
func (p *ServiceParams) reportExternal(ctx context.Context, system, customerID string, err error, keysAndValues ...interface{}) {
	fields := append([]interface{}{
		"system", system,
		"customer_id", customerID,
		"request_id", types.GetRequestID(ctx),
		"error", err,
	}, keysAndValues...)
	p.Logger.Errorw("post-commit side effect failed", fields...)

	if p.Metrics != nil {
		p.Metrics.ExternalCallFailures.WithLabelValues(system).Inc()
	}
	p.Sentry.CaptureExceptionWithTags(err, map[string]string{
		"system":      system,
		"customer_id": customerID,
	})
}

// publish sends a domain event after commit
func (p *ServiceParams) publish(ctx context.Context, eventName, customerID string, payload interface{}) {
	if p.EventPublisher == nil {
		return
	}
	if err := p.EventPublisher.Publish(ctx, eventName, customerID, payload); err != nil {
		p.reportExternal(ctx, systemEvents, customerID, err, "event", eventName)
	}
}
