// internal/rules/conflicts_test.go
package rules

import (
	"testing"

	"github.com/tallyhq/pricekeeper/internal/types"
)

func ruleWithFields(id string, priority int, stackable bool, fields ...types.Field) types.Rule {
	r := types.Rule{
		ID:          types.RuleID(id),
		Name:        id,
		Priority:    priority,
		IsActive:    true,
		IsStackable: stackable,
	}
	for _, f := range fields {
		r.Conditions = append(r.Conditions, types.Condition{
			Field: f, Operator: types.OpGte, Value: float64(1),
		})
	}
	return r
}

func TestDetectConflicts_FieldOverlap(t *testing.T) {
	rules := []types.Rule{
		ruleWithFields("a", 1, false, types.FieldQuantity, types.FieldCustomerTier),
		ruleWithFields("b", 2, false, types.FieldQuantity),
		ruleWithFields("c", 3, false, types.FieldMonth),
	}

	conflicts := DetectConflicts(rules)
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1 (only a/b share a field)", len(conflicts))
	}
	if conflicts[0].Rule1 != "a" || conflicts[0].Rule2 != "b" {
		t.Errorf("conflict pair = (%s,%s), want (a,b)", conflicts[0].Rule1, conflicts[0].Rule2)
	}
}

func TestDetectConflicts_PairsAreUnordered(t *testing.T) {
	rules := []types.Rule{
		ruleWithFields("a", 1, true, types.FieldQuantity),
		ruleWithFields("b", 2, true, types.FieldQuantity),
	}

	conflicts := DetectConflicts(rules)
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1 (no (b,a) duplicate)", len(conflicts))
	}
}

func TestDetectConflicts_ReasonSelection(t *testing.T) {
	tests := []struct {
		name       string
		r1, r2     types.Rule
		wantReason string
	}{
		{
			name:       "same priority wins over stackability",
			r1:         ruleWithFields("a", 5, true, types.FieldQuantity),
			r2:         ruleWithFields("b", 5, true, types.FieldQuantity),
			wantReason: ReasonSamePriority,
		},
		{
			name:       "both stackable",
			r1:         ruleWithFields("a", 1, true, types.FieldQuantity),
			r2:         ruleWithFields("b", 2, true, types.FieldQuantity),
			wantReason: ReasonBothStackable,
		},
		{
			name:       "one non-stackable",
			r1:         ruleWithFields("a", 1, false, types.FieldQuantity),
			r2:         ruleWithFields("b", 2, true, types.FieldQuantity),
			wantReason: ReasonNonStackable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := DetectConflicts([]types.Rule{tt.r1, tt.r2})
			if len(conflicts) != 1 {
				t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
			}
			if conflicts[0].Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", conflicts[0].Reason, tt.wantReason)
			}
		})
	}
}

func TestDetectConflicts_UnconditionalRulesNotFlagged(t *testing.T) {
	rules := []types.Rule{
		ruleWithFields("unconditional", 1, false),
		ruleWithFields("conditional", 2, false, types.FieldQuantity),
	}

	if got := DetectConflicts(rules); len(got) != 0 {
		t.Errorf("conflicts = %+v, want none (field-overlap heuristic only)", got)
	}
}

func TestDetectConflicts_Empty(t *testing.T) {
	if got := DetectConflicts(nil); len(got) != 0 {
		t.Errorf("DetectConflicts(nil) = %+v, want empty", got)
	}
}
