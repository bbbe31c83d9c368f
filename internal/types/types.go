// Package types provides domain models shared across PriceKeeper components.
//
// Zero-cycle design: this package imports no other internal package so the
// engine, store, and API layers can all depend on it. ID utilities in ids.go
// import uuid but are isolated for selective inclusion.
package types

// TenantID identifies a tenant. Every rule and coupon is tenant-scoped;
// cross-tenant evaluation is a bug, not a feature.
type TenantID string

// RuleID represents a UUIDv7 pricing rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// CouponID represents a UUIDv7 coupon identifier.
type CouponID string

// Resource limits enforced at the editing boundary to keep evaluation cheap.
// Rule sets are operator-curated and small; these ceilings exist so a single
// malformed or hostile definition cannot degrade calculation latency.
const (
	// MaxConditionsPerRule bounds the sequential condition fold per rule.
	MaxConditionsPerRule = 32

	// MaxActionsPerRule bounds adjustment computation per matched rule.
	MaxActionsPerRule = 8

	// MaxInValues limits "in" operator membership lists to prevent
	// quadratic comparison cost across stacked rules.
	MaxInValues = 64

	// MaxCouponCodes limits coupon codes accepted per calculation request.
	MaxCouponCodes = 16

	// MaxRulesPerTenant caps the rule set returned to the calculator.
	MaxRulesPerTenant = 10000

	// MaxNameLength bounds rule and coupon display names.
	MaxNameLength = 256
)
