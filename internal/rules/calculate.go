// internal/rules/calculate.go
package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Price calculation orchestration.
 *
 * Selects applicable rules in priority order, resolves stacking vs.
 * exclusivity, applies coupon codes on top, and produces a breakdown with a
 * human-readable trace.
 *
 * Calculation flow:
 *   1. subtotal = unit price x quantity
 *   2. Candidates: active, inside validity window, under usage cap, Matches
 *   3. Stable sort by priority ascending (store order breaks ties - never
 *      reorder equal-priority rules nondeterministically)
 *   4. Stacking walk: first match always applies; later matches only while
 *      every applied rule and the candidate are all stackable
 *   5. Actions compound on the remaining amount; fixed_price reads the
 *      original subtotal (absolute semantics)
 *   6. Coupons validate independently and stack on top in supplied order
 *   7. Final price clamped to >= 0; rounding at surfacing only
 *
 * The calculator is read-only with respect to rules and coupons: usage
 * increments are a separate, explicit caller action, which makes concurrent
 * calculations against the same rule set safe and calculation idempotent.
 */

// Calculator evaluates prices against a tenant's rule and coupon set.
// Stateless; safe for concurrent use.
type Calculator struct{}

// NewCalculator creates a new price calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// ApplicableRules returns the matched rules sorted by priority, pre-stacking.
// Exposed for UI display; CalculatePrice uses exactly this logic so "what the
// UI shows will apply" cannot drift from "what actually applies".
func (c *Calculator) ApplicableRules(ruleSet []types.Rule, ctx *types.EvaluationContext) []types.Rule {
	var matched []types.Rule
	for _, r := range ruleSet {
		if !r.IsActive || !r.InWindow(ctx.AsOf) || r.UsageExhausted() {
			continue
		}
		if !Matches(r.Conditions, ctx) {
			continue
		}
		matched = append(matched, r)
	}

	// Stable sort: equal-priority rules keep rule-store order (deterministic
	// stacking outcome across identical inputs).
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched
}

// resolveStacking walks the priority-sorted matches and returns the rules
// that survive exclusivity: the first match always applies, and each later
// match applies only if it and all previously applied rules are stackable.
func resolveStacking(sorted []types.Rule) []types.Rule {
	var applied []types.Rule
	allStackable := true
	for _, r := range sorted {
		if len(applied) == 0 {
			applied = append(applied, r)
			allStackable = r.IsStackable
			continue
		}
		if r.IsStackable && allStackable {
			applied = append(applied, r)
		}
	}
	return applied
}

// CalculatePrice computes the full price breakdown for one line item.
// coupons maps canonical code -> coupon for the tenant; codes are applied in
// the order supplied. Never errors on data it can interpret: malformed rules
// are treated as non-matching, rejected coupons are reported and skipped.
func (c *Calculator) CalculatePrice(ruleSet []types.Rule, coupons map[string]types.Coupon, ctx *types.EvaluationContext, couponCodes []string) types.PriceBreakdown {
	subtotal := ctx.Subtotal()
	breakdown := types.PriceBreakdown{
		UnitPrice: ctx.Item.UnitPrice.Round(2),
		Quantity:  ctx.Item.Quantity,
		Subtotal:  subtotal.Round(2),
	}
	breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("subtotal %s (%s x %d)",
		subtotal.StringFixed(2), ctx.Item.UnitPrice.StringFixed(2), ctx.Item.Quantity))

	applied := resolveStacking(c.ApplicableRules(ruleSet, ctx))

	remaining := subtotal
	for _, r := range applied {
		for _, action := range r.Actions {
			effect := Apply(action, remaining, subtotal)

			if effect.FreeShipping {
				breakdown.FreeShipping = true
				breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("rule %q: free shipping", r.Name))
			}
			if effect.Points > 0 {
				breakdown.LoyaltyPoints += effect.Points
				breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("rule %q: +%d points", r.Name, effect.Points))
			}
			if effect.Amount.IsZero() {
				continue
			}

			discount := types.AppliedDiscount{
				Source: types.SourceRule,
				Name:   r.Name,
				Amount: effect.Amount.Round(2),
			}
			if action.Type == types.ActionPercentageDiscount {
				pct := action.Value
				discount.Percent = &pct
			}
			breakdown.Discounts = append(breakdown.Discounts, discount)
			breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("rule %q: -%s (%s)",
				r.Name, effect.Amount.StringFixed(2), effect.Description))

			remaining = remaining.Sub(effect.Amount)
		}
	}

	// Coupons are an always-stacking layer on top of rule discounts, applied
	// in the order codes were supplied. Each validates independently.
	seen := make(map[string]bool, len(couponCodes))
	for _, raw := range couponCodes {
		code := types.CanonicalCode(raw)
		if code == "" {
			continue
		}
		if seen[code] {
			breakdown.CouponRejections = append(breakdown.CouponRejections,
				types.CouponRejection{Code: code, Reason: ReasonAlreadyApplied})
			continue
		}
		seen[code] = true

		coupon, ok := coupons[code]
		if !ok {
			breakdown.CouponRejections = append(breakdown.CouponRejections,
				types.CouponRejection{Code: code, Reason: ReasonUnknownCode})
			continue
		}

		check := ValidateCoupon(&coupon, ctx, subtotal)
		if !check.Valid {
			breakdown.CouponRejections = append(breakdown.CouponRejections,
				types.CouponRejection{Code: code, Reason: check.Reason})
			breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("coupon %s rejected: %s", code, check.Reason))
			continue
		}

		effect := ApplyCoupon(&coupon, remaining)
		if effect.Amount.IsZero() {
			continue
		}

		discount := types.AppliedDiscount{
			Source: types.SourceCoupon,
			Name:   code,
			Amount: effect.Amount.Round(2),
		}
		if coupon.Type == types.ActionPercentageDiscount {
			pct := coupon.Value
			discount.Percent = &pct
		}
		breakdown.Discounts = append(breakdown.Discounts, discount)
		breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("%s: -%s",
			effect.Description, effect.Amount.StringFixed(2)))

		remaining = remaining.Sub(effect.Amount)
	}

	final := remaining
	if final.IsNegative() {
		final = decimal.Zero
	}
	breakdown.FinalPrice = final.Round(2)
	breakdown.TotalSavings = subtotal.Sub(final).Round(2)
	if ctx.Item.Quantity > 0 {
		breakdown.FinalPricePerUnit = final.Div(decimal.NewFromInt(int64(ctx.Item.Quantity))).Round(2)
	}
	breakdown.Trace = append(breakdown.Trace, fmt.Sprintf("final price %s", breakdown.FinalPrice.StringFixed(2)))

	return breakdown
}
