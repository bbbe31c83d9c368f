// internal/rules/operators.go
package rules

import (
	"strconv"
	"strings"

	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the 8 condition operators with type-aware comparison rules.
 * Unsupported operators and impossible coercions fail closed (return false)
 * rather than erroring, so one malformed rule cannot crash evaluation of
 * all others.
 *
 * Operators:
 *   - equals/not_equals: Equality with numeric mixing
 *   - gt/gte/lt/lte: Numeric comparison only
 *   - in: Membership test with equality semantics
 *   - contains: Substring on strings, element match on lists
 *
 * Numeric comparison: Handles float64/int/int64/numeric-string mixing so
 * JSON-sourced condition values compare cleanly against context fields.
 *
 * Why function-based: 8 operators via switch statement cleaner than 8
 * interface implementations with minimal behavior variation.
 */

// Compare applies the operator to compare value against target.
// Fails closed: unknown operators and incomparable types return false.
func Compare(op types.Operator, value, target any) bool {
	switch op {
	case types.OpEquals:
		return compareEqual(value, target)
	case types.OpNotEquals:
		return !compareEqual(value, target)
	case types.OpGt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp > 0
	case types.OpGte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp >= 0
	case types.OpLt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp < 0
	case types.OpLte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp <= 0
	case types.OpIn:
		return compareIn(value, target)
	case types.OpContains:
		return compareContains(value, target)
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric type coercion.
// Handles float64/int/int64 mixing from JSON unmarshaling.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// Second return is false for incomparable types (coercion failure).
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type or numeric string.
// Booleans are rejected to avoid true vs 1 ambiguity.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// compareIn checks if value exists in set using equality semantics.
// Set is []any from the condition's values list. Oversized lists fail closed.
func compareIn(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return false
	}
	if len(arr) > types.MaxInValues {
		return false
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// compareContains performs a substring test on strings and an element
// equality test on lists, depending on the resolved field's type.
func compareContains(value, target any) bool {
	switch v := value.(type) {
	case string:
		ts, ok := target.(string)
		if !ok {
			return false
		}
		return strings.Contains(v, ts)
	case []any:
		for _, elem := range v {
			if compareEqual(elem, target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
