package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/domain/invoice"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const invoiceColumns = `id, customer_id, invoice_type, invoice_number, status, period_start, period_end,
	due_date, subtotal, tax, discount, total, balance_due, idempotency_key, notes, voided_at,
	created_at, updated_at, created_by, updated_by`

const invoiceItemColumns = `id, invoice_id, customer_plan_id, description, quantity, unit_price,
	line_total, display_order, created_at, updated_at, created_by, updated_by`

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, customer_id, invoice_type, invoice_number, status, period_start, period_end,
			due_date, subtotal, tax, discount, total, balance_due, idempotency_key, notes,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :invoice_type, :invoice_number, :status, :period_start, :period_end,
			:due_date, :subtotal, :tax, :discount, :total, :balance_due, :idempotency_key, :notes,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"customer_id", inv.CustomerID,
		"invoice_type", inv.InvoiceType,
		"total", inv.Total,
	)

	q := r.db.GetQuerier(ctx)
	if _, err := q.NamedExecContext(ctx, query, inv); err != nil {
		if postgres.IsExclusionViolation(err) || postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An invoice already exists for this customer and period").
				WithReportableDetails(map[string]any{
					"customer_id":  inv.CustomerID,
					"period_start": inv.PeriodStart,
					"period_end":   inv.PeriodEnd,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			WithReportableDetails(map[string]any{
				"invoice_id":  inv.ID,
				"customer_id": inv.CustomerID,
			}).
			Mark(ierr.ErrDatabase)
	}

	itemQuery := `
		INSERT INTO invoice_items (
			id, invoice_id, customer_plan_id, description, quantity, unit_price,
			line_total, display_order, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :invoice_id, :customer_plan_id, :description, :quantity, :unit_price,
			:line_total, :display_order, :created_at, :updated_at, :created_by, :updated_by
		)`

	for _, item := range inv.Items {
		if _, err := q.NamedExecContext(ctx, itemQuery, item); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice item").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"item_id":    item.ID,
				}).
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *invoiceRepository) get(ctx context.Context, id string, forUpdate bool) (*invoice.Invoice, error) {
	qb := newQueryBuilder("SELECT "+invoiceColumns+" FROM invoices").where("id = ?", id)
	if forUpdate {
		qb.lock()
	}
	query, args := qb.build()

	var inv invoice.Invoice
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Invoice not found").
				WithReportableDetails(map[string]any{
					"invoice_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}

	items, err := r.listItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

func (r *invoiceRepository) listItems(ctx context.Context, invoiceID string) ([]*invoice.InvoiceItem, error) {
	query, args := newQueryBuilder("SELECT "+invoiceItemColumns+" FROM invoice_items").
		where("invoice_id = ?", invoiceID).
		orderedBy("display_order ASC").
		build()

	var items []*invoice.InvoiceItem
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoice items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			status = :status,
			subtotal = :subtotal,
			tax = :tax,
			discount = :discount,
			total = :total,
			balance_due = :balance_due,
			idempotency_key = :idempotency_key,
			notes = :notes,
			voided_at = :voided_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating invoice",
		"invoice_id", inv.ID,
		"status", inv.Status,
		"balance_due", inv.BalanceDue,
	)

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	query, args := r.filtered("SELECT "+invoiceColumns+" FROM invoices", filter).
		page(filter.QueryFilter, "created_at", "period_start", "due_date", "total").
		build()

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	query, args := r.filtered("", filter).count("invoices")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count invoices").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *invoiceRepository) FindOverlapping(ctx context.Context, customerID string, period types.BillingPeriod) ([]*invoice.Invoice, error) {
	query, args := newQueryBuilder("SELECT "+invoiceColumns+" FROM invoices").
		where("customer_id = ?", customerID).
		where("invoice_type = ?", types.InvoiceTypeSubscription).
		where("NOT (status = ANY(?))", stringArray([]types.InvoiceStatus{
			types.InvoiceStatusVoid,
			types.InvoiceStatusCancelled,
		})).
		where("period_start <= ? AND period_end >= ?", period.End, period.Start).
		orderedBy("period_start ASC").
		build()

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to check for overlapping invoices").
			WithReportableDetails(map[string]any{
				"customer_id": customerID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil || filter.DueBefore == nil {
		return 0, ierr.NewError("due_before is required").
			WithHint("An overdue cutoff must be provided").
			Mark(ierr.ErrValidation)
	}

	query := `
		UPDATE invoices SET
			status = ?,
			updated_at = NOW(),
			updated_by = ?
		WHERE status = ANY(?)
		AND due_date < ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query),
		types.InvoiceStatusOverdue,
		types.GetUserID(ctx),
		stringArray([]types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusPartial}),
		*filter.DueBefore,
	)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to mark overdue invoices").
			Mark(ierr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *invoiceRepository) filtered(base string, f *types.InvoiceFilter) *queryBuilder {
	qb := newQueryBuilder(base)
	whereIn(qb, "id", f.InvoiceIDs)
	whereIn(qb, "status", f.InvoiceStatus)
	if f.CustomerID != "" {
		qb.where("customer_id = ?", f.CustomerID)
	}
	if f.InvoiceType != "" {
		qb.where("invoice_type = ?", f.InvoiceType)
	}
	if f.PeriodStartBefore != nil {
		qb.where("period_start <= ?", *f.PeriodStartBefore)
	}
	if f.DueBefore != nil {
		qb.where("due_date < ?", *f.DueBefore)
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
