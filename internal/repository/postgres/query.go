package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/types"
)

// queryBuilder assembles a filtered SELECT with ? placeholders. The caller
// rebinds the result for the driver.
type queryBuilder struct {
	base       string
	conditions []string
	args       []interface{}
	orderBy    string
	limit      int
	offset     int
	forUpdate  bool
}

func newQueryBuilder(base string) *queryBuilder {
	return &queryBuilder{base: base}
}

func (qb *queryBuilder) where(condition string, args ...interface{}) *queryBuilder {
	qb.conditions = append(qb.conditions, condition)
	qb.args = append(qb.args, args...)
	return qb
}

// whereIn adds `column = ANY(?)` when values is not empty
func whereIn[T ~string](qb *queryBuilder, column string, values []T) *queryBuilder {
	if len(values) == 0 {
		return qb
	}
	return qb.where(column+" = ANY(?)", stringArray(values))
}

// page applies sort and pagination from a query filter. Sort fields outside
// allowed fall back to created_at.
func (qb *queryBuilder) page(f *types.QueryFilter, allowed ...string) *queryBuilder {
	sort := f.GetSort()
	if !lo.Contains(allowed, sort) {
		sort = types.FILTER_DEFAULT_SORT
	}
	order := "DESC"
	if f.GetOrder() == types.OrderAsc {
		order = "ASC"
	}
	qb.orderBy = fmt.Sprintf("%s %s", sort, order)
	if !f.IsUnlimited() {
		qb.limit = f.GetLimit()
		qb.offset = f.GetOffset()
	}
	return qb
}

func (qb *queryBuilder) orderedBy(clause string) *queryBuilder {
	qb.orderBy = clause
	return qb
}

func (qb *queryBuilder) lock() *queryBuilder {
	qb.forUpdate = true
	return qb
}

func (qb *queryBuilder) build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(qb.base)
	if len(qb.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(qb.conditions, " AND "))
	}
	if qb.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(qb.orderBy)
	}
	if qb.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", qb.limit, qb.offset)
	}
	if qb.forUpdate {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), qb.args
}

// count rewrites the builder as a COUNT(*) over the same conditions
func (qb *queryBuilder) count(table string) (string, []interface{}) {
	counter := &queryBuilder{
		base:       "SELECT COUNT(*) FROM " + table,
		conditions: qb.conditions,
		args:       qb.args,
	}
	return counter.build()
}

func stringArray[T ~string](values []T) interface{} {
	return pq.Array(lo.Map(values, func(v T, _ int) string {
		return string(v)
	}))
}

func int64Array(values []int64) interface{} {
	return pq.Array(values)
}
