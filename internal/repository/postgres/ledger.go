package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/domain/ledger"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const ledgerColumns = `id, sequence, customer_id, book, type, amount, description,
	invoice_id, payment_id, advance_payment_id, created_at, created_by`

type ledgerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) ledger.Repository {
	return &ledgerRepository{db: db, logger: logger}
}

// Append inserts entries in order; the database assigns the replay sequence
func (r *ledgerRepository) Append(ctx context.Context, entries ...*ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (
			id, customer_id, book, type, amount, description,
			invoice_id, payment_id, advance_payment_id, created_at, created_by
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		RETURNING sequence`

	q := r.db.GetQuerier(ctx)
	for _, e := range entries {
		if err := e.Type.Validate(); err != nil {
			return err
		}
		if !e.Amount.IsPositive() {
			return ierr.NewError("ledger entry amount must be positive").
				WithHint("Ledger entries carry a positive amount and a direction").
				WithReportableDetails(map[string]any{
					"customer_id": e.CustomerID,
					"amount":      e.Amount.String(),
				}).
				Mark(ierr.ErrValidation)
		}

		r.logger.Debugw("appending ledger entry",
			"entry_id", e.ID,
			"customer_id", e.CustomerID,
			"book", e.Book,
			"type", e.Type,
			"amount", e.Amount,
		)

		err := q.QueryRowxContext(ctx, r.db.Rebind(query),
			e.ID, e.CustomerID, e.Book, e.Type, e.Amount, e.Description,
			e.InvoiceID, e.PaymentID, e.AdvancePaymentID, e.CreatedAt, e.CreatedBy,
		).Scan(&e.Sequence)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to append ledger entry").
				WithReportableDetails(map[string]any{
					"customer_id": e.CustomerID,
				}).
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *ledgerRepository) List(ctx context.Context, filter *types.LedgerEntryFilter) ([]*ledger.Entry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	qb := r.filtered("SELECT "+ledgerColumns+" FROM ledger_entries", filter).
		orderedBy("sequence ASC")
	if !filter.QueryFilter.IsUnlimited() {
		qb.limit = filter.GetLimit()
		qb.offset = filter.GetOffset()
	}
	query, args := qb.build()

	var entries []*ledger.Entry
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list ledger entries").
			Mark(ierr.ErrDatabase)
	}
	return entries, nil
}

func (r *ledgerRepository) Count(ctx context.Context, filter *types.LedgerEntryFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	query, args := r.filtered("", filter).count("ledger_entries")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count ledger entries").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *ledgerRepository) filtered(base string, f *types.LedgerEntryFilter) *queryBuilder {
	qb := newQueryBuilder(base).where("customer_id = ?", f.CustomerID)
	if f.Book != "" {
		qb.where("book = ?", f.Book)
	}
	if f.InvoiceID != "" {
		qb.where("invoice_id = ?", f.InvoiceID)
	}
	if f.PaymentID != "" {
		qb.where("payment_id = ?", f.PaymentID)
	}
	if f.AdvancePaymentID != "" {
		qb.where("advance_payment_id = ?", f.AdvancePaymentID)
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil {
			qb.where("created_at >= ?", *f.StartTime)
		}
		if f.EndTime != nil {
			qb.where("created_at < ?", *f.EndTime)
		}
	}
	return qb
}
