// internal/rules/actions.go
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Action application.
 *
 * Computes the effect a matched rule's action contributes: a monetary
 * discount amount, loyalty points, or a free-shipping flag, plus a
 * human-readable description for the breakdown trace.
 *
 * Clamping invariants:
 *   - A monetary amount never exceeds the remaining discountable amount,
 *     so stacked discounts cannot drive the running total negative.
 *   - A monetary amount is never negative, so an action can never raise
 *     the price (fixed_price above the current price clamps to zero).
 *   - max_discount caps percentage and fixed discounts when present.
 *
 * Amounts stay exact decimals here; rounding to 2 places happens once at
 * breakdown surfacing to avoid compounding rounding error across stacked
 * rules.
 */

var hundred = decimal.NewFromInt(100)

// Effect is the computed contribution of a single action.
type Effect struct {
	Amount       decimal.Decimal // monetary discount; zero for non-monetary actions
	Points       int64           // loyalty points from bonus_points
	FreeShipping bool
	Description  string
}

// Apply computes an action's effect against the remaining discountable
// amount. fixed_price actions compare against the original subtotal instead:
// fixed price is absolute, not compounding.
// Unknown action types fail closed to a zero effect.
func Apply(action types.Action, remaining, original decimal.Decimal) Effect {
	switch action.Type {
	case types.ActionPercentageDiscount:
		amount := remaining.Mul(action.Value).Div(hundred)
		amount = capAmount(amount, action.MaxDiscount, remaining)
		return Effect{
			Amount:      amount,
			Description: fmt.Sprintf("%s%% off", action.Value.String()),
		}

	case types.ActionFixedDiscount:
		amount := capAmount(action.Value, action.MaxDiscount, remaining)
		return Effect{
			Amount:      amount,
			Description: fmt.Sprintf("%s off", action.Value.StringFixed(2)),
		}

	case types.ActionFixedPrice:
		// Discount is the delta needed to reach the fixed price from the
		// original subtotal, capped so it cannot exceed what is left.
		amount := original.Sub(action.Value)
		amount = capAmount(amount, nil, remaining)
		return Effect{
			Amount:      amount,
			Description: fmt.Sprintf("fixed price %s", action.Value.StringFixed(2)),
		}

	case types.ActionFreeShipping:
		return Effect{
			FreeShipping: true,
			Description:  "free shipping",
		}

	case types.ActionBonusPoints:
		points := action.Value.IntPart()
		if points < 0 {
			points = 0
		}
		return Effect{
			Points:      points,
			Description: fmt.Sprintf("%d bonus points", points),
		}

	default:
		return Effect{}
	}
}

// capAmount clamps a monetary amount to [0, remaining], applying the
// optional max_discount cap first.
func capAmount(amount decimal.Decimal, maxDiscount *decimal.Decimal, remaining decimal.Decimal) decimal.Decimal {
	if maxDiscount != nil && amount.GreaterThan(*maxDiscount) {
		amount = *maxDiscount
	}
	if amount.GreaterThan(remaining) {
		amount = remaining
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
