package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/domain/payment"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const paymentColumns = `id, customer_id, invoice_id, amount, discount, method, status, reference,
	receipt_number, receipt_location, payment_date, notes, cancelled_at,
	created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (
			id, customer_id, invoice_id, amount, discount, method, status, reference,
			receipt_number, receipt_location, payment_date, notes,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :invoice_id, :amount, :discount, :method, :status, :reference,
			:receipt_number, :receipt_location, :payment_date, :notes,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"customer_id", p.CustomerID,
		"invoice_id", p.InvoiceID,
		"amount", p.Amount,
		"discount", p.Discount,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
				"invoice_id": p.InvoiceID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, id, false)
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, id, true)
}

func (r *paymentRepository) get(ctx context.Context, id string, forUpdate bool) (*payment.Payment, error) {
	qb := newQueryBuilder("SELECT "+paymentColumns+" FROM payments").where("id = ?", id)
	if forUpdate {
		qb.lock()
	}
	query, args := qb.build()

	var p payment.Payment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Payment not found").
				WithReportableDetails(map[string]any{
					"payment_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments SET
			status = :status,
			receipt_location = :receipt_location,
			notes = :notes,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("payment not found").
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) SetReceiptLocation(ctx context.Context, id, location string) error {
	query := `UPDATE payments SET receipt_location = ?, updated_at = NOW() WHERE id = ?`

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query), location, id); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store receipt location").
			WithReportableDetails(map[string]any{
				"payment_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	if filter == nil {
		filter = types.NewNoLimitPaymentFilter()
	}
	query, args := r.filtered("SELECT "+paymentColumns+" FROM payments", filter).
		page(filter.QueryFilter, "created_at", "payment_date", "amount").
		build()

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitPaymentFilter()
	}
	query, args := r.filtered("", filter).count("payments")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count payments").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *paymentRepository) filtered(base string, f *types.PaymentFilter) *queryBuilder {
	qb := newQueryBuilder(base)
	whereIn(qb, "id", f.PaymentIDs)
	whereIn(qb, "status", f.PaymentStatus)
	if f.CustomerID != "" {
		qb.where("customer_id = ?", f.CustomerID)
	}
	if f.InvoiceID != "" {
		qb.where("invoice_id = ?", f.InvoiceID)
	}
	if f.PaymentMethod != "" {
		qb.where("method = ?", f.PaymentMethod)
	}
	if f.PaidAfter != nil {
		qb.where("payment_date > ?", *f.PaidAfter)
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil {
			qb.where("payment_date >= ?", *f.StartTime)
		}
		if f.EndTime != nil {
			qb.where("payment_date < ?", *f.EndTime)
		}
	}
	return qb
}
