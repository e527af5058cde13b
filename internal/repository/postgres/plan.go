package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

const (
	planColumns         = `id, name, monthly_price, network_profile, created_at, updated_at, created_by, updated_by`
	customerPlanColumns = `id, customer_id, plan_id, monthly_price, start_date, status,
	created_at, updated_at, created_by, updated_by`
	bindingColumns = `id, customer_id, customer_plan_id, username, profile, active,
	created_at, updated_at, created_by, updated_by`
)

type planRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPlanRepository(db *postgres.DB, logger *logger.Logger) plan.Repository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

func (r *planRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			id, name, monthly_price, network_profile,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :monthly_price, :network_profile,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A plan with this identifier already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create plan").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planRepository) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	query, args := newQueryBuilder("SELECT "+planColumns+" FROM plans").where("id = ?", id).build()

	var p plan.Plan
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Plan not found").
				WithReportableDetails(map[string]any{
					"plan_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *planRepository) CreateCustomerPlan(ctx context.Context, cp *plan.CustomerPlan) error {
	query := `
		INSERT INTO customer_plans (
			id, customer_id, plan_id, monthly_price, start_date, status,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :plan_id, :monthly_price, :start_date, :status,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, cp); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return ierr.WithError(err).
				WithHint("Plan does not exist").
				WithReportableDetails(map[string]any{
					"plan_id": cp.PlanID,
				}).
				Mark(ierr.ErrValidation)
		}
		return ierr.WithError(err).
			WithHint("Failed to create customer plan").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planRepository) GetCustomerPlan(ctx context.Context, id string) (*plan.CustomerPlan, error) {
	query, args := newQueryBuilder("SELECT "+customerPlanColumns+" FROM customer_plans").
		where("id = ?", id).
		build()

	var cp plan.CustomerPlan
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &cp, r.db.Rebind(query), args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Customer plan not found").
				WithReportableDetails(map[string]any{
					"customer_plan_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer plan").
			Mark(ierr.ErrDatabase)
	}
	return &cp, nil
}

func (r *planRepository) ListCustomerPlans(ctx context.Context, customerID string, statuses ...types.CustomerPlanStatus) ([]*plan.CustomerPlan, error) {
	qb := newQueryBuilder("SELECT "+customerPlanColumns+" FROM customer_plans").
		where("customer_id = ?", customerID)
	whereIn(qb, "status", statuses)
	query, args := qb.orderedBy("start_date ASC, id ASC").build()

	var plans []*plan.CustomerPlan
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &plans, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list customer plans").
			Mark(ierr.ErrDatabase)
	}
	return plans, nil
}

func (r *planRepository) ListBillableCustomerIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT customer_id FROM customer_plans WHERE status = ? ORDER BY customer_id`

	var ids []string
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &ids, r.db.Rebind(query), types.CustomerPlanStatusActive); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billable customers").
			Mark(ierr.ErrDatabase)
	}
	return ids, nil
}

func (r *planRepository) TransitionCustomerPlans(ctx context.Context, customerID string, from, to types.CustomerPlanStatus) (int, error) {
	query := `
		UPDATE customer_plans SET
			status = ?,
			updated_at = NOW(),
			updated_by = ?
		WHERE customer_id = ?
		AND status = ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query), to, types.GetUserID(ctx), customerID, from)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to update customer plans").
			WithReportableDetails(map[string]any{
				"customer_id": customerID,
				"from":        from,
				"to":          to,
			}).
			Mark(ierr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *planRepository) CreateBinding(ctx context.Context, b *plan.NetworkBinding) error {
	query := `
		INSERT INTO network_bindings (
			id, customer_id, customer_plan_id, username, profile, active,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :customer_plan_id, :username, :profile, :active,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, b); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Username is already bound to an active plan").
				WithReportableDetails(map[string]any{
					"username": b.Username,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create network binding").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planRepository) ListActiveBindings(ctx context.Context, customerID string) ([]*plan.NetworkBinding, error) {
	query, args := newQueryBuilder("SELECT "+bindingColumns+" FROM network_bindings").
		where("customer_id = ?", customerID).
		where("active").
		orderedBy("created_at ASC, id ASC").
		build()

	var bindings []*plan.NetworkBinding
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &bindings, r.db.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list network bindings").
			Mark(ierr.ErrDatabase)
	}
	return bindings, nil
}

func (r *planRepository) UpdateBindingProfile(ctx context.Context, id, profile string) error {
	query := `UPDATE network_bindings SET profile = ?, updated_at = NOW(), updated_by = ? WHERE id = ?`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, r.db.Rebind(query), profile, types.GetUserID(ctx), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update network binding").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("network binding not found").
			WithHint("Network binding not found").
			WithReportableDetails(map[string]any{
				"binding_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
