// internal/types/pricing.go
package types

/*
 * Domain types for price calculation.
 *
 * Provides Rule, Condition, Action, Coupon, and the evaluation context /
 * breakdown structures used by internal/rules. These types are wire-format
 * agnostic - JSON mapping happens at the store and API boundaries.
 *
 * Key types:
 *   - Rule: prioritized condition->action pricing adjustment
 *   - Condition: single comparison folded left-to-right with and/or links
 *   - Action: discount or non-monetary effect with optional cap
 *   - Coupon: independently validated code layered after rule discounts
 *   - EvaluationContext: immutable (item, customer, as-of) triple
 *   - PriceBreakdown: itemized output of one calculation, never persisted
 */

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType enumerates the supported pricing rule categories.
type RuleType string

const (
	RuleVolumeDiscount    RuleType = "volume_discount"
	RuleCustomerTier      RuleType = "customer_tier"
	RuleSeasonal          RuleType = "seasonal"
	RuleCategoryDiscount  RuleType = "category_discount"
	RulePromotional       RuleType = "promotional"
	RuleTimeLimited       RuleType = "time_limited"
	RuleBogo              RuleType = "bogo"
	RuleBundle            RuleType = "bundle"
	RuleLoyaltyMultiplier RuleType = "loyalty_multiplier"
	RuleFirstPurchase     RuleType = "first_purchase"
	RuleReferral          RuleType = "referral"
)

// Field names the closed vocabulary of values a condition may inspect.
type Field string

const (
	FieldQuantity      Field = "quantity"
	FieldPrice         Field = "price"
	FieldOrderTotal    Field = "orderTotal"
	FieldCustomerTier  Field = "customerTier"
	FieldTotalOrders   Field = "totalOrders"
	FieldTotalSpent    Field = "totalSpent"
	FieldMonth         Field = "month"
	FieldDayOfWeek     Field = "dayOfWeek"
	FieldIsWeekend     Field = "isWeekend"
	FieldIsNewCustomer Field = "isNewCustomer"
	FieldCustomerTags  Field = "customerTags"
	FieldProductID     Field = "productID"
	FieldProductName   Field = "productName"
	FieldCategory      Field = "category"
)

// Operator enumerates condition comparison operators.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpIn        Operator = "in"
	OpContains  Operator = "contains"
)

// LogicalOperator links a condition to the NEXT condition in the sequence.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// ActionType enumerates rule action effects.
type ActionType string

const (
	ActionPercentageDiscount ActionType = "percentage_discount"
	ActionFixedDiscount      ActionType = "fixed_discount"
	ActionFixedPrice         ActionType = "fixed_price"
	ActionFreeShipping       ActionType = "free_shipping"
	ActionBonusPoints        ActionType = "bonus_points"
)

// ApplyTo scopes an action to the line item or the whole order.
type ApplyTo string

const (
	ApplyToItem  ApplyTo = "item"
	ApplyToOrder ApplyTo = "order"
)

// Condition represents a single comparison in a rule's condition sequence.
// The Logical operator attached to condition i governs how its result combines
// with condition i+1 (strictly sequential fold, no precedence).
type Condition struct {
	Field    Field           `json:"field"`
	Operator Operator        `json:"operator"`
	Value    any             `json:"value,omitempty"`
	Values   []any           `json:"values,omitempty"` // for the in operator
	Logical  LogicalOperator `json:"logical,omitempty"`
}

// Action represents one effect of a matched rule.
type Action struct {
	Type        ActionType       `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MaxDiscount *decimal.Decimal `json:"max_discount,omitempty"`
	ApplyTo     ApplyTo          `json:"apply_to,omitempty"`
}

// Rule represents a named, prioritized condition->action pricing adjustment.
// A rule with no conditions matches unconditionally. A rule outside its
// validity window or past its usage cap never matches regardless of conditions.
type Rule struct {
	ID          RuleID      `json:"id"`
	TenantID    TenantID    `json:"tenant_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        RuleType    `json:"type"`
	Priority    int         `json:"priority"` // lower value = higher precedence
	IsActive    bool        `json:"is_active"`
	IsStackable bool        `json:"is_stackable"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     *time.Time  `json:"end_date,omitempty"` // inclusive
	MaxUsages   *int        `json:"max_usages,omitempty"`
	UsageCount  int         `json:"usage_count"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// InWindow reports whether the rule's validity window covers asOf.
// Both bounds are inclusive.
func (r *Rule) InWindow(asOf time.Time) bool {
	if asOf.Before(r.StartDate) {
		return false
	}
	if r.EndDate != nil && asOf.After(*r.EndDate) {
		return false
	}
	return true
}

// UsageExhausted reports whether the rule's usage cap has been reached.
// Rules without a cap are never exhausted.
func (r *Rule) UsageExhausted() bool {
	return r.MaxUsages != nil && r.UsageCount >= *r.MaxUsages
}

// Coupon represents a customer-supplied code granting an additional,
// independently validated discount layered after rule-based discounts.
type Coupon struct {
	ID            CouponID         `json:"id"`
	TenantID      TenantID         `json:"tenant_id"`
	Code          string           `json:"code"` // canonical upper-case
	Description   string           `json:"description,omitempty"`
	Type          ActionType       `json:"type"` // percentage_discount or fixed_discount
	Value         decimal.Decimal  `json:"value"`
	MinOrderTotal *decimal.Decimal `json:"min_order_total,omitempty"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
	MaxUsages     *int             `json:"max_usages,omitempty"`
	UsageCount    int              `json:"usage_count"`
	IsActive      bool             `json:"is_active"`
	EligibleTiers []string         `json:"eligible_tiers,omitempty"`
	EligibleItems []string         `json:"eligible_items,omitempty"` // product IDs
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CanonicalCode upper-cases and trims a coupon code for case-insensitive lookup.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LineItem is the order line being priced.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Customer carries the customer attributes conditions may inspect.
type Customer struct {
	ID          string          `json:"id"`
	Tier        string          `json:"tier,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	TotalOrders int             `json:"total_orders"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EvaluationContext is the immutable input to a single price computation.
// Never persisted; constructed per calculation call.
type EvaluationContext struct {
	Item     LineItem  `json:"item"`
	Customer Customer  `json:"customer"`
	AsOf     time.Time `json:"as_of"`
}

// Subtotal returns unit price times quantity.
func (c *EvaluationContext) Subtotal() decimal.Decimal {
	return c.Item.UnitPrice.Mul(decimal.NewFromInt(int64(c.Item.Quantity)))
}

// DiscountSource distinguishes rule and coupon contributions in a breakdown.
type DiscountSource string

const (
	SourceRule   DiscountSource = "rule"
	SourceCoupon DiscountSource = "coupon"
)

// AppliedDiscount is one monetary contribution in a price breakdown.
// Amount is rounded to 2 decimal places at surfacing.
type AppliedDiscount struct {
	Source  DiscountSource   `json:"source"`
	Name    string           `json:"name"`
	Amount  decimal.Decimal  `json:"amount"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

// CouponRejection reports why a supplied coupon code was not applied.
type CouponRejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// PriceBreakdown is the itemized output of a single price calculation.
// Constructed fresh per call, discarded after use; the engine has no concept
// of committing a calculation.
type PriceBreakdown struct {
	UnitPrice         decimal.Decimal   `json:"unit_price"`
	Quantity          int               `json:"quantity"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	Discounts         []AppliedDiscount `json:"discounts"`
	TotalSavings      decimal.Decimal   `json:"total_savings"`
	FinalPrice        decimal.Decimal   `json:"final_price"`
	FinalPricePerUnit decimal.Decimal   `json:"final_price_per_unit"`
	FreeShipping      bool              `json:"free_shipping"`
	LoyaltyPoints     int64             `json:"loyalty_points"`
	CouponRejections  []CouponRejection `json:"coupon_rejections,omitempty"`
	Trace             []string          `json:"trace"`
}

// Conflict is an advisory flag that two active rules' conditions overlap.
// Pairs are unordered: (A,B) implies no separate (B,A) entry.
type Conflict struct {
	Rule1     RuleID `json:"rule1"`
	Rule2     RuleID `json:"rule2"`
	Rule1Name string `json:"rule1_name"`
	Rule2Name string `json:"rule2_name"`
	Reason    string `json:"reason"`
}

// Stats is the read-side aggregate surfaced for operator dashboards.
type Stats struct {
	TotalRules   int `json:"total_rules"`
	ActiveRules  int `json:"active_rules"`
	TotalUsages  int `json:"total_usages"`
	TotalCoupons int `json:"total_coupons"`
}
