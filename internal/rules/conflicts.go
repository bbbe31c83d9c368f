// internal/rules/conflicts.go
package rules

import (
	"github.com/tallyhq/pricekeeper/internal/types"
)

/*
 * Static conflict detection over the active rule set.
 *
 * Pairwise comparison flags rules whose conditions inspect a shared field -
 * a coarse overlap heuristic, not a satisfiability check. Two rules can be
 * flagged even if their value ranges never co-match; the design tolerates
 * false positives in favor of operator visibility, so rules cannot silently
 * shadow each other.
 *
 * O(n^2) over active rules only. Rule sets are operator-curated and small;
 * MaxRulesPerTenant bounds the worst case.
 *
 * Advisory output only: a conflict never blocks rule creation or evaluation.
 */

// Conflict reasons, ordered by severity. Same-priority pairs are the
// ambiguous case; stackability only decides whether both or one will apply.
const (
	ReasonSamePriority  = "same priority - unpredictable evaluation order"
	ReasonBothStackable = "both stackable - will apply together"
	ReasonNonStackable  = "non-stackable - only one will apply"
)

// DetectConflicts returns an advisory conflict for each unordered pair of
// active rules that inspect at least one common condition field.
func DetectConflicts(activeRules []types.Rule) []types.Conflict {
	var conflicts []types.Conflict
	for i := 0; i < len(activeRules); i++ {
		for j := i + 1; j < len(activeRules); j++ {
			r1, r2 := &activeRules[i], &activeRules[j]
			if !sharesField(r1, r2) {
				continue
			}
			conflicts = append(conflicts, types.Conflict{
				Rule1:     r1.ID,
				Rule2:     r2.ID,
				Rule1Name: r1.Name,
				Rule2Name: r2.Name,
				Reason:    conflictReason(r1, r2),
			})
		}
	}
	return conflicts
}

// sharesField reports whether any condition field of r1 is also used by r2.
func sharesField(r1, r2 *types.Rule) bool {
	if len(r1.Conditions) == 0 || len(r2.Conditions) == 0 {
		return false
	}
	fields := make(map[types.Field]bool, len(r1.Conditions))
	for _, c := range r1.Conditions {
		fields[c.Field] = true
	}
	for _, c := range r2.Conditions {
		if fields[c.Field] {
			return true
		}
	}
	return false
}

func conflictReason(r1, r2 *types.Rule) string {
	if r1.Priority == r2.Priority {
		return ReasonSamePriority
	}
	if r1.IsStackable && r2.IsStackable {
		return ReasonBothStackable
	}
	return ReasonNonStackable
}
