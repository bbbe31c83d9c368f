// Package store persists tenant-scoped pricing rules and coupons.
//
// Rows keep conditions, actions, and eligibility lists as JSON columns and
// all timestamps as RFC3339 UTC strings, so SQLite and PostgreSQL share one
// scan path. Monetary values round-trip as decimal strings.
//
// List operations skip rows whose JSON no longer parses instead of failing
// the whole read; a single corrupt rule must not take down calculation for
// the tenant.
package store

import (
	"database/sql"
	"time"

	"github.com/tallyhq/pricekeeper/internal/core/db"
	"github.com/tallyhq/pricekeeper/internal/types"
)

// Store provides tenant-scoped persistence for rules and coupons.
type Store struct {
	q *db.Queries
}

// New creates a Store backed by the given named query set.
func New(q *db.Queries) *Store {
	return &Store{q: q}
}

// now returns the current UTC time truncated to seconds, the resolution of
// the RFC3339 strings stored in timestamp columns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// Stats returns the rule and coupon aggregates for one tenant.
func (s *Store) Stats(tenantID types.TenantID) (*types.Stats, error) {
	var row struct {
		TotalRules  int `db:"total_rules"`
		ActiveRules int `db:"active_rules"`
		TotalUsages int `db:"total_usages"`
	}
	if err := s.q.Get("rule-stats", &row, tenantID); err != nil {
		return nil, err
	}

	var coupons int
	if err := s.q.Get("count-coupons", &coupons, tenantID); err != nil {
		return nil, err
	}

	return &types.Stats{
		TotalRules:   row.TotalRules,
		ActiveRules:  row.ActiveRules,
		TotalUsages:  row.TotalUsages,
		TotalCoupons: coupons,
	}, nil
}
