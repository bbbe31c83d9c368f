// internal/rules/coupons.go
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Coupon validation and application.
 *
 * A coupon must pass independent validation before it can be layered onto a
 * price calculation. Validation failures are structured rejections with a
 * specific reason, never errors: one failed coupon among several does not
 * void the others, and a rejected coupon never aborts the calculation.
 */

// Rejection reasons surfaced to callers. Stable strings: operator dashboards
// and the order workflow match on them.
const (
	ReasonUnknownCode    = "unknown coupon code"
	ReasonInactive       = "coupon is not active"
	ReasonNotStarted     = "coupon is not yet valid"
	ReasonExpired        = "coupon has expired"
	ReasonExhausted      = "coupon usage limit reached"
	ReasonBelowMinimum   = "order total below coupon minimum"
	ReasonTierNotAllowed = "customer tier not eligible"
	ReasonItemNotAllowed = "item not eligible for coupon"
	ReasonAlreadyApplied = "coupon already applied"
)

// CouponCheck is the structured result of coupon validation.
type CouponCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateCoupon checks a coupon against the context and current subtotal.
// Checks run cheapest-first; the first failure wins.
func ValidateCoupon(c *types.Coupon, ctx *types.EvaluationContext, subtotal decimal.Decimal) CouponCheck {
	if !c.IsActive {
		return CouponCheck{Reason: ReasonInactive}
	}
	if ctx.AsOf.Before(c.StartDate) {
		return CouponCheck{Reason: ReasonNotStarted}
	}
	if c.EndDate != nil && ctx.AsOf.After(*c.EndDate) {
		return CouponCheck{Reason: ReasonExpired}
	}
	if c.MaxUsages != nil && c.UsageCount >= *c.MaxUsages {
		return CouponCheck{Reason: ReasonExhausted}
	}
	if c.MinOrderTotal != nil && subtotal.LessThan(*c.MinOrderTotal) {
		return CouponCheck{Reason: ReasonBelowMinimum}
	}
	if len(c.EligibleTiers) > 0 && !containsString(c.EligibleTiers, ctx.Customer.Tier) {
		return CouponCheck{Reason: ReasonTierNotAllowed}
	}
	if len(c.EligibleItems) > 0 && !containsString(c.EligibleItems, ctx.Item.ProductID) {
		return CouponCheck{Reason: ReasonItemNotAllowed}
	}
	return CouponCheck{Valid: true}
}

// ApplyCoupon computes the coupon's monetary effect against the remaining
// amount. Coupons always stack, so there is no original-subtotal variant.
func ApplyCoupon(c *types.Coupon, remaining decimal.Decimal) Effect {
	switch c.Type {
	case types.ActionPercentageDiscount:
		amount := remaining.Mul(c.Value).Div(hundred)
		amount = capAmount(amount, nil, remaining)
		return Effect{
			Amount:      amount,
			Description: fmt.Sprintf("coupon %s: %s%% off", c.Code, c.Value.String()),
		}
	case types.ActionFixedDiscount:
		amount := capAmount(c.Value, nil, remaining)
		return Effect{
			Amount:      amount,
			Description: fmt.Sprintf("coupon %s: %s off", c.Code, c.Value.StringFixed(2)),
		}
	default:
		return Effect{}
	}
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
