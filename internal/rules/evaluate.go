// internal/rules/evaluate.go
package rules

import (
	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Condition evaluation.
 *
 * Evaluates a rule's condition sequence against an evaluation context with
 * strictly sequential fold semantics: the logical operator attached to
 * condition i governs how its result combines with condition i+1's result.
 * No operator precedence, no parentheses.
 *
 * Evaluation flow per condition:
 *   1. Resolve field from context (unknown field -> non-match)
 *   2. Compare against condition value via operator (coercion failure -> false)
 *
 * Both sides of every logical combination are evaluated - conditions are
 * side-effect free, so skipping short-circuit keeps the fold trivially
 * order-independent for equal operators.
 *
 * Fail-closed semantics: a malformed condition evaluates to false and the
 * fold continues; no error propagates out of Matches.
 */

// Matches reports whether the condition sequence holds for the context.
// An empty condition list matches unconditionally.
func Matches(conditions []types.Condition, ctx *types.EvaluationContext) bool {
	if len(conditions) == 0 {
		return true
	}
	if len(conditions) > types.MaxConditionsPerRule {
		return false
	}

	result := evaluateCondition(conditions[0], ctx)
	for i := 1; i < len(conditions); i++ {
		next := evaluateCondition(conditions[i], ctx)
		// The operator linking i-1 to i lives on condition i-1; unset
		// defaults to and.
		if conditions[i-1].Logical == types.LogicalOr {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result
}

// evaluateCondition evaluates a single condition against the context.
// Orchestrates: resolve field -> compare operator. Fails closed.
func evaluateCondition(cond types.Condition, ctx *types.EvaluationContext) bool {
	value, err := ResolveField(cond.Field, ctx)
	if err != nil {
		return false
	}

	if cond.Operator == types.OpIn {
		target := cond.Values
		if target == nil {
			// Tolerate a list supplied through the scalar value slot.
			if arr, ok := cond.Value.([]any); ok {
				target = arr
			}
		}
		return Compare(cond.Operator, value, target)
	}

	return Compare(cond.Operator, value, cond.Value)
}
