package types

import "errors"

// Sentinel errors for PriceKeeper operations.
var (
	// ErrUnknownField indicates a condition references a field outside the
	// closed vocabulary. Evaluation treats the condition as non-matching.
	ErrUnknownField = errors.New("unknown condition field")

	// ErrUnknownOperator indicates an unrecognized comparison operator.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrCoercionFailed indicates a value could not be coerced to the type
	// the operator requires (e.g. non-numeric input to gt).
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrTooManyConditions indicates a rule exceeds MaxConditionsPerRule.
	ErrTooManyConditions = errors.New("rule has too many conditions")

	// ErrTooManyActions indicates a rule exceeds MaxActionsPerRule.
	ErrTooManyActions = errors.New("rule has too many actions")

	// ErrTooManyInValues indicates an in operator exceeds MaxInValues.
	ErrTooManyInValues = errors.New("in operator has too many values")

	// ErrTooManyCoupons indicates a calculation request exceeds MaxCouponCodes.
	ErrTooManyCoupons = errors.New("too many coupon codes")

	// ErrEmptyName indicates a rule or coupon was created without a name.
	ErrEmptyName = errors.New("name is required")

	// ErrNameTooLong indicates a name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("name exceeds maximum length")

	// ErrRuleNotFound indicates a rule id does not exist for the tenant.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrCouponNotFound indicates a coupon code does not exist for the tenant.
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrDuplicateCouponCode indicates a coupon code already exists for the tenant.
	ErrDuplicateCouponCode = errors.New("coupon code already exists")

	// ErrInvalidQuantity indicates a line item with quantity < 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrRuleLimitExceeded indicates the tenant is at MaxRulesPerTenant.
	ErrRuleLimitExceeded = errors.New("tenant rule limit exceeded")
)
