package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/domain/account"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const accountColumns = `customer_id, balance, credit_limit, status, auto_suspend, suspended_at,
	payment_commitment_date, payment_commitment_notes, last_payment_date,
	created_at, updated_at, created_by, updated_by`

type accountRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewAccountRepository(db *postgres.DB, logger *logger.Logger) account.Repository {
	return &accountRepository{db: db, logger: logger}
}

func (r *accountRepository) Get(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	return r.get(ctx, customerID, false)
}

func (r *accountRepository) GetForUpdate(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	return r.get(ctx, customerID, true)
}

func (r *accountRepository) get(ctx context.Context, customerID string, forUpdate bool) (*account.BillingAccount, error) {
	qb := newQueryBuilder("SELECT "+accountColumns+" FROM billing_accounts").
		where("customer_id = ?", customerID)
	if forUpdate {
		qb.lock()
	}
	query, args := qb.build()

	var a account.BillingAccount
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &a, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Billing account not found").
				WithReportableDetails(map[string]any{
					"customer_id": customerID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing account").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

func (r *accountRepository) GetOrCreateForUpdate(ctx context.Context, a *account.BillingAccount) (*account.BillingAccount, error) {
	query := `
		INSERT INTO billing_accounts (
			customer_id, balance, credit_limit, status, auto_suspend,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:customer_id, :balance, :credit_limit, :status, :auto_suspend,
			:created_at, :updated_at, :created_by, :updated_by
		)
		ON CONFLICT (customer_id) DO NOTHING`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, a); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create billing account").
			WithReportableDetails(map[string]any{
				"customer_id": a.CustomerID,
			}).
			Mark(ierr.ErrDatabase)
	}

	return r.GetForUpdate(ctx, a.CustomerID)
}

func (r *accountRepository) Update(ctx context.Context, a *account.BillingAccount) error {
	query := `
		UPDATE billing_accounts SET
			balance = :balance,
			credit_limit = :credit_limit,
			status = :status,
			auto_suspend = :auto_suspend,
			suspended_at = :suspended_at,
			payment_commitment_date = :payment_commitment_date,
			payment_commitment_notes = :payment_commitment_notes,
			last_payment_date = :last_payment_date,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE customer_id = :customer_id`

	r.logger.Debugw("updating billing account",
		"customer_id", a.CustomerID,
		"balance", a.Balance,
		"status", a.Status,
	)

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, a)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update billing account").
			WithReportableDetails(map[string]any{
				"customer_id": a.CustomerID,
			}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("billing account not found").
			WithHint("Billing account not found").
			WithReportableDetails(map[string]any{
				"customer_id": a.CustomerID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context, filter *types.BillingAccountFilter) ([]*account.BillingAccount, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingAccountFilter()
	}
	qb := r.filtered("SELECT "+accountColumns+" FROM billing_accounts", filter).
		page(filter.QueryFilter, "created_at", "updated_at", "balance", "customer_id")
	query, args := qb.build()

	var accounts []*account.BillingAccount
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &accounts, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing accounts").
			Mark(ierr.ErrDatabase)
	}
	return accounts, nil
}

func (r *accountRepository) Count(ctx context.Context, filter *types.BillingAccountFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingAccountFilter()
	}
	query, args := r.filtered("", filter).count("billing_accounts")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count billing accounts").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *accountRepository) filtered(base string, f *types.BillingAccountFilter) *queryBuilder {
	qb := newQueryBuilder(base)
	whereIn(qb, "customer_id", f.CustomerIDs)
	whereIn(qb, "status", f.Statuses)
	if len(f.ExcludeStatuses) > 0 {
		qb.where("NOT (status = ANY(?))", stringArray(f.ExcludeStatuses))
	}
	if f.WithDebt {
		qb.where("balance > 0")
	}
	if f.AutoSuspend != nil {
		qb.where("auto_suspend = ?", *f.AutoSuspend)
	}
	if f.CommitmentDueBy != nil {
		qb.where("payment_commitment_date IS NOT NULL AND payment_commitment_date <= ?", *f.CommitmentDueBy)
	}
	if f.NoLiveCommitmentAt != nil {
		qb.where("(payment_commitment_date IS NULL OR payment_commitment_date <= ?)", *f.NoLiveCommitmentAt)
	}
	if f.LiveCommitmentAt != nil {
		qb.where("payment_commitment_date > ?", *f.LiveCommitmentAt)
	}
	return qb
}
