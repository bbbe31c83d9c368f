// internal/rules/fields.go
package rules

/*
 * Field dispatch for condition evaluation.
 *
 * Maps the closed field vocabulary to values extracted from the evaluation
 * context (item, customer, or derived date fields). Closed switch dispatch:
 * adding a field requires one new arm, and unknown fields return
 * ErrUnknownField so callers fail closed instead of misbehaving silently.
 *
 * Numeric fields surface as float64 to match the comparison layer; monetary
 * decimals are converted at this boundary only. Comparison never feeds back
 * into price computation, so the float conversion cannot leak rounding error
 * into a breakdown.
 */

import (
	"time"

	"github.com/tallyhq/pricekeeper/internal/types"
)

// newCustomerWindow is how long an account counts as "new" after creation.
const newCustomerWindow = 30 * 24 * time.Hour

// ResolveField extracts the named field's current value from the context.
// Returns ErrUnknownField for fields outside the closed vocabulary.
func ResolveField(field types.Field, ctx *types.EvaluationContext) (any, error) {
	switch field {
	case types.FieldQuantity:
		return float64(ctx.Item.Quantity), nil
	case types.FieldPrice:
		return ctx.Item.UnitPrice.InexactFloat64(), nil
	case types.FieldOrderTotal:
		return ctx.Subtotal().InexactFloat64(), nil
	case types.FieldCustomerTier:
		return ctx.Customer.Tier, nil
	case types.FieldTotalOrders:
		return float64(ctx.Customer.TotalOrders), nil
	case types.FieldTotalSpent:
		return ctx.Customer.TotalSpent.InexactFloat64(), nil
	case types.FieldMonth:
		return float64(ctx.AsOf.Month()), nil
	case types.FieldDayOfWeek:
		// time.Weekday numbering: Sunday=0 .. Saturday=6
		return float64(ctx.AsOf.Weekday()), nil
	case types.FieldIsWeekend:
		wd := ctx.AsOf.Weekday()
		return wd == time.Saturday || wd == time.Sunday, nil
	case types.FieldIsNewCustomer:
		return isNewCustomer(&ctx.Customer, ctx.AsOf), nil
	case types.FieldCustomerTags:
		tags := make([]any, 0, len(ctx.Customer.Tags))
		for _, t := range ctx.Customer.Tags {
			tags = append(tags, t)
		}
		return tags, nil
	case types.FieldProductID:
		return ctx.Item.ProductID, nil
	case types.FieldProductName:
		return ctx.Item.ProductName, nil
	case types.FieldCategory:
		return ctx.Item.Category, nil
	default:
		return nil, types.ErrUnknownField
	}
}

// isNewCustomer reports whether the customer counts as new at asOf.
// Zero completed orders or an account younger than newCustomerWindow both
// qualify; migrated accounts may carry backfilled order history.
func isNewCustomer(c *types.Customer, asOf time.Time) bool {
	if c.TotalOrders == 0 {
		return true
	}
	if c.CreatedAt.IsZero() {
		return false
	}
	return asOf.Sub(c.CreatedAt) < newCustomerWindow
}
