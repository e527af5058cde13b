package postgres

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/advance"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const advanceColumns = `id, customer_id, total_amount, method, reference, notes, status,
	created_at, updated_at, created_by, updated_by`

const allocationColumns = `id, advance_payment_id, customer_id, month, year, amount, status,
	invoice_id, applied_at, created_at, updated_at, created_by, updated_by`

type advanceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewAdvanceRepository(db *postgres.DB, logger *logger.Logger) advance.Repository {
	return &advanceRepository{db: db, logger: logger}
}

func (r *advanceRepository) Create(ctx context.Context, ap *advance.AdvancePayment) error {
	query := `
		INSERT INTO advance_payments (
			id, customer_id, total_amount, method, reference, notes, status,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :total_amount, :method, :reference, :notes, :status,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating advance payment",
		"advance_payment_id", ap.ID,
		"customer_id", ap.CustomerID,
		"total_amount", ap.TotalAmount,
		"months", len(ap.Allocations),
	)

	q := r.db.GetQuerier(ctx)
	if _, err := q.NamedExecContext(ctx, query, ap); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create advance payment").
			WithReportableDetails(map[string]any{
				"customer_id": ap.CustomerID,
			}).
			Mark(ierr.ErrDatabase)
	}

	allocationQuery := `
		INSERT INTO advance_monthly_payments (
			id, advance_payment_id, customer_id, month, year, amount, status,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :advance_payment_id, :customer_id, :month, :year, :amount, :status,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	for _, a := range ap.Allocations {
		if _, err := q.NamedExecContext(ctx, allocationQuery, a); err != nil {
			if postgres.IsUniqueViolation(err) {
				return ierr.WithError(err).
					WithHint("An advance payment is already pending for this month").
					WithReportableDetails(map[string]any{
						"customer_id": a.CustomerID,
						"month":       a.Month,
						"year":        a.Year,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHint("Failed to create advance allocation").
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *advanceRepository) Get(ctx context.Context, id string) (*advance.AdvancePayment, error) {
	return r.get(ctx, id, false)
}

func (r *advanceRepository) GetForUpdate(ctx context.Context, id string) (*advance.AdvancePayment, error) {
	return r.get(ctx, id, true)
}

func (r *advanceRepository) get(ctx context.Context, id string, forUpdate bool) (*advance.AdvancePayment, error) {
	qb := newQueryBuilder("SELECT "+advanceColumns+" FROM advance_payments").where("id = ?", id)
	if forUpdate {
		qb.lock()
	}
	query, args := qb.build()

	var ap advance.AdvancePayment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &ap, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Advance payment not found").
				WithReportableDetails(map[string]any{
					"advance_payment_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get advance payment").
			Mark(ierr.ErrDatabase)
	}

	allocations, err := r.listAllocations(ctx, []string{ap.ID})
	if err != nil {
		return nil, err
	}
	ap.Allocations = allocations
	return &ap, nil
}

func (r *advanceRepository) listAllocations(ctx context.Context, advanceIDs []string) ([]*advance.MonthlyAllocation, error) {
	qb := newQueryBuilder("SELECT " + allocationColumns + " FROM advance_monthly_payments")
	whereIn(qb, "advance_payment_id", advanceIDs)
	query, args := qb.orderedBy("year ASC, month ASC").build()

	var allocations []*advance.MonthlyAllocation
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &allocations, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list advance allocations").
			Mark(ierr.ErrDatabase)
	}
	return allocations, nil
}

func (r *advanceRepository) List(ctx context.Context, filter *types.AdvancePaymentFilter) ([]*advance.AdvancePayment, error) {
	if filter == nil {
		filter = types.NewAdvancePaymentFilter()
	}
	query, args := r.filtered("SELECT "+advanceColumns+" FROM advance_payments", filter).
		page(filter.QueryFilter, "created_at", "total_amount").
		build()

	var payments []*advance.AdvancePayment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list advance payments").
			Mark(ierr.ErrDatabase)
	}
	if len(payments) == 0 {
		return payments, nil
	}

	allocations, err := r.listAllocations(ctx, lo.Map(payments, func(ap *advance.AdvancePayment, _ int) string {
		return ap.ID
	}))
	if err != nil {
		return nil, err
	}
	byParent := lo.GroupBy(allocations, func(a *advance.MonthlyAllocation) string {
		return a.AdvancePaymentID
	})
	for _, ap := range payments {
		ap.Allocations = byParent[ap.ID]
	}
	return payments, nil
}

func (r *advanceRepository) Count(ctx context.Context, filter *types.AdvancePaymentFilter) (int, error) {
	if filter == nil {
		filter = types.NewAdvancePaymentFilter()
	}
	query, args := r.filtered("", filter).count("advance_payments")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count advance payments").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *advanceRepository) UpdateStatus(ctx context.Context, id string, status types.AdvancePaymentStatus) error {
	query := `UPDATE advance_payments SET status = ?, updated_at = NOW(), updated_by = ? WHERE id = ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query), status, types.GetUserID(ctx), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update advance payment").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("advance payment not found").
			WithHint("Advance payment not found").
			WithReportableDetails(map[string]any{
				"advance_payment_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *advanceRepository) FindPendingAllocation(ctx context.Context, customerID string, target types.BillingMonth) (*advance.MonthlyAllocation, error) {
	query, args := newQueryBuilder("SELECT "+allocationColumns+" FROM advance_monthly_payments").
		where("customer_id = ?", customerID).
		where("month = ? AND year = ?", target.Month, target.Year).
		where("status = ?", types.AdvanceAllocationStatusPending).
		lock().
		build()

	var a advance.MonthlyAllocation
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &a, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("No pending advance payment for this month").
				WithReportableDetails(map[string]any{
					"customer_id": customerID,
					"month":       target.Month,
					"year":        target.Year,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get advance allocation").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

func (r *advanceRepository) ListPendingTargets(ctx context.Context, customerID string, targets []types.BillingMonth) ([]types.BillingMonth, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	query, args := newQueryBuilder("SELECT month, year FROM advance_monthly_payments").
		where("customer_id = ?", customerID).
		where("status = ?", types.AdvanceAllocationStatusPending).
		where("(year * 100 + month) = ANY(?)", int64Array(lo.Map(targets, func(t types.BillingMonth, _ int) int64 {
			return int64(t.Year*100 + t.Month)
		}))).
		orderedBy("year ASC, month ASC").
		build()

	var found []types.BillingMonth
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to check pending advance allocations").
			Mark(ierr.ErrDatabase)
	}
	return found, nil
}

func (r *advanceRepository) MarkAllocationApplied(ctx context.Context, id, invoiceID string, at time.Time) (bool, error) {
	query := `
		UPDATE advance_monthly_payments SET
			status = ?,
			invoice_id = ?,
			applied_at = ?,
			updated_at = ?,
			updated_by = ?
		WHERE id = ?
		AND status = ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query),
		types.AdvanceAllocationStatusApplied,
		invoiceID,
		at.UTC(),
		at.UTC(),
		types.GetUserID(ctx),
		id,
		types.AdvanceAllocationStatusPending,
	)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to apply advance allocation").
			WithReportableDetails(map[string]any{
				"allocation_id": id,
				"invoice_id":    invoiceID,
			}).
			Mark(ierr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *advanceRepository) CancelPendingAllocations(ctx context.Context, advancePaymentID string) (int, error) {
	query := `
		UPDATE advance_monthly_payments SET
			status = ?,
			updated_at = NOW(),
			updated_by = ?
		WHERE advance_payment_id = ?
		AND status = ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query),
		types.AdvanceAllocationStatusCancelled,
		types.GetUserID(ctx),
		advancePaymentID,
		types.AdvanceAllocationStatusPending,
	)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to cancel advance allocations").
			Mark(ierr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *advanceRepository) filtered(base string, f *types.AdvancePaymentFilter) *queryBuilder {
	qb := newQueryBuilder(base)
	whereIn(qb, "id", f.AdvancePaymentIDs)
	whereIn(qb, "status", f.Status)
	if f.CustomerID != "" {
		qb.where("customer_id = ?", f.CustomerID)
	}
	return qb
}
