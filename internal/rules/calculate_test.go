// internal/rules/calculate_test.go
package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/types"
)

var calcAsOf = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

// calcContext builds the standard scenario input: item price 100, quantity 2.
func calcContext() *types.EvaluationContext {
	return &types.EvaluationContext{
		Item: types.LineItem{
			ProductID: "prod-001",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(100),
		},
		Customer: types.Customer{ID: "cust-001", Tier: "gold", TotalOrders: 5,
			CreatedAt: calcAsOf.AddDate(-1, 0, 0)},
		AsOf: calcAsOf,
	}
}

func percentRule(id string, priority int, stackable bool, percent float64) types.Rule {
	return types.Rule{
		ID:          types.RuleID(id),
		Name:        id,
		Type:        types.RulePromotional,
		Priority:    priority,
		IsActive:    true,
		IsStackable: stackable,
		StartDate:   calcAsOf.AddDate(0, -1, 0),
		Actions:     []types.Action{{Type: types.ActionPercentageDiscount, Value: dec(percent)}},
	}
}

func fixedRule(id string, priority int, stackable bool, amount float64) types.Rule {
	r := percentRule(id, priority, stackable, 0)
	r.Actions = []types.Action{{Type: types.ActionFixedDiscount, Value: dec(amount)}}
	return r
}

func TestCalculatePrice_SinglePercentageRule(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{percentRule("summer-sale", 1, false, 10)}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)

	if !b.Subtotal.Equal(dec(200)) {
		t.Errorf("Subtotal = %s, want 200", b.Subtotal)
	}
	if len(b.Discounts) != 1 {
		t.Fatalf("len(Discounts) = %d, want 1", len(b.Discounts))
	}
	if !b.Discounts[0].Amount.Equal(dec(20)) {
		t.Errorf("discount amount = %s, want 20", b.Discounts[0].Amount)
	}
	if b.Discounts[0].Percent == nil || !b.Discounts[0].Percent.Equal(dec(10)) {
		t.Errorf("discount percent = %v, want 10", b.Discounts[0].Percent)
	}
	if !b.FinalPrice.Equal(dec(180)) {
		t.Errorf("FinalPrice = %s, want 180", b.FinalPrice)
	}
	if !b.FinalPricePerUnit.Equal(dec(90)) {
		t.Errorf("FinalPricePerUnit = %s, want 90", b.FinalPricePerUnit)
	}
	if !b.TotalSavings.Equal(dec(20)) {
		t.Errorf("TotalSavings = %s, want 20", b.TotalSavings)
	}
}

func TestCalculatePrice_NonStackableBlocksStackable(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{
		percentRule("rule-a", 1, false, 10),
		fixedRule("rule-b", 2, true, 5),
	}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)

	if len(b.Discounts) != 1 {
		t.Fatalf("len(Discounts) = %d, want 1 (non-stackable A blocks B)", len(b.Discounts))
	}
	if b.Discounts[0].Name != "rule-a" {
		t.Errorf("applied rule = %s, want rule-a", b.Discounts[0].Name)
	}
	if !b.FinalPrice.Equal(dec(180)) {
		t.Errorf("FinalPrice = %s, want 180", b.FinalPrice)
	}
}

func TestCalculatePrice_StackableRulesCompound(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{
		percentRule("rule-a", 1, true, 10),
		fixedRule("rule-b", 2, true, 5),
	}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)

	if len(b.Discounts) != 2 {
		t.Fatalf("len(Discounts) = %d, want 2 (both stackable)", len(b.Discounts))
	}
	// A: 10% of 200 = 20, remaining 180; B: fixed 5 -> final 175.
	if !b.FinalPrice.Equal(dec(175)) {
		t.Errorf("FinalPrice = %s, want 175", b.FinalPrice)
	}
}

func TestCalculatePrice_PriorityDecidesExclusivity(t *testing.T) {
	calc := NewCalculator()
	a := percentRule("rule-a", 1, false, 10)
	b := percentRule("rule-b", 2, false, 20)

	out := calc.CalculatePrice([]types.Rule{a, b}, nil, calcContext(), nil)
	if len(out.Discounts) != 1 || out.Discounts[0].Name != "rule-a" {
		t.Fatalf("want only priority-1 rule-a applied, got %+v", out.Discounts)
	}

	// Swapping priorities swaps the winner.
	a.Priority, b.Priority = 2, 1
	out = calc.CalculatePrice([]types.Rule{a, b}, nil, calcContext(), nil)
	if len(out.Discounts) != 1 || out.Discounts[0].Name != "rule-b" {
		t.Fatalf("after swap want rule-b applied, got %+v", out.Discounts)
	}
}

func TestCalculatePrice_EqualPriorityKeepsStoreOrder(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{
		percentRule("first-in-store", 1, false, 10),
		percentRule("second-in-store", 1, false, 20),
	}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)
	if len(b.Discounts) != 1 || b.Discounts[0].Name != "first-in-store" {
		t.Fatalf("stable tie-break violated, got %+v", b.Discounts)
	}
}

func TestCalculatePrice_CouponOnTop(t *testing.T) {
	calc := NewCalculator()
	coupons := map[string]types.Coupon{
		"SAVE10": {
			Code:          "SAVE10",
			Type:          types.ActionPercentageDiscount,
			Value:         dec(10),
			MinOrderTotal: decPtr(150),
			StartDate:     calcAsOf.AddDate(0, -1, 0),
			IsActive:      true,
		},
	}

	// Subtotal 200, no rules: coupon applies, final 180.
	b := calc.CalculatePrice(nil, coupons, calcContext(), []string{"save10"})
	if len(b.Discounts) != 1 {
		t.Fatalf("len(Discounts) = %d, want 1", len(b.Discounts))
	}
	if b.Discounts[0].Source != types.SourceCoupon {
		t.Errorf("discount source = %s, want coupon", b.Discounts[0].Source)
	}
	if !b.FinalPrice.Equal(dec(180)) {
		t.Errorf("FinalPrice = %s, want 180", b.FinalPrice)
	}

	// Subtotal 100: below minimum, coupon rejected, calculation proceeds.
	ctx := calcContext()
	ctx.Item.Quantity = 1
	b = calc.CalculatePrice(nil, coupons, ctx, []string{"SAVE10"})
	if len(b.Discounts) != 0 {
		t.Errorf("rejected coupon applied a discount: %+v", b.Discounts)
	}
	if len(b.CouponRejections) != 1 || b.CouponRejections[0].Reason != ReasonBelowMinimum {
		t.Errorf("rejections = %+v, want below-minimum for SAVE10", b.CouponRejections)
	}
	if !b.FinalPrice.Equal(dec(100)) {
		t.Errorf("FinalPrice = %s, want 100 (coupon skipped, not erroring)", b.FinalPrice)
	}
}

func TestCalculatePrice_CouponAfterRules(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{percentRule("summer-sale", 1, false, 10)}
	coupons := map[string]types.Coupon{
		"EXTRA5": {
			Code:      "EXTRA5",
			Type:      types.ActionFixedDiscount,
			Value:     dec(5),
			StartDate: calcAsOf.AddDate(0, -1, 0),
			IsActive:  true,
		},
	}

	// Coupons layer on the rule-discounted amount: 200 -> 180 -> 175.
	b := calc.CalculatePrice(ruleSet, coupons, calcContext(), []string{"EXTRA5"})
	if !b.FinalPrice.Equal(dec(175)) {
		t.Errorf("FinalPrice = %s, want 175", b.FinalPrice)
	}
}

func TestCalculatePrice_DuplicateCouponRejected(t *testing.T) {
	calc := NewCalculator()
	coupons := map[string]types.Coupon{
		"EXTRA5": {
			Code:      "EXTRA5",
			Type:      types.ActionFixedDiscount,
			Value:     dec(5),
			StartDate: calcAsOf.AddDate(0, -1, 0),
			IsActive:  true,
		},
	}

	b := calc.CalculatePrice(nil, coupons, calcContext(), []string{"EXTRA5", "extra5"})
	if len(b.Discounts) != 1 {
		t.Fatalf("len(Discounts) = %d, want 1", len(b.Discounts))
	}
	if len(b.CouponRejections) != 1 || b.CouponRejections[0].Reason != ReasonAlreadyApplied {
		t.Errorf("rejections = %+v, want already-applied", b.CouponRejections)
	}
}

func TestApplicableRules_ExcludesExpiredAndExhausted(t *testing.T) {
	calc := NewCalculator()

	expired := percentRule("expired", 1, true, 10)
	end := calcAsOf.AddDate(0, 0, -1)
	expired.EndDate = &end

	exhausted := percentRule("exhausted", 2, true, 10)
	maxUsages := 100
	exhausted.MaxUsages = &maxUsages
	exhausted.UsageCount = 100

	inactive := percentRule("inactive", 3, true, 10)
	inactive.IsActive = false

	notYet := percentRule("future", 4, true, 10)
	notYet.StartDate = calcAsOf.AddDate(0, 1, 0)

	live := percentRule("live", 5, true, 10)

	got := calc.ApplicableRules([]types.Rule{expired, exhausted, inactive, notYet, live}, calcContext())
	if len(got) != 1 || got[0].ID != "live" {
		t.Fatalf("ApplicableRules = %+v, want only live", got)
	}
}

func TestApplicableRules_EndDateInclusive(t *testing.T) {
	calc := NewCalculator()
	r := percentRule("ends-today", 1, true, 10)
	end := calcAsOf
	r.EndDate = &end

	got := calc.ApplicableRules([]types.Rule{r}, calcContext())
	if len(got) != 1 {
		t.Fatalf("rule ending exactly at asOf must still apply (inclusive window)")
	}
}

func TestCalculatePrice_LoyaltyPointsAndShipping(t *testing.T) {
	calc := NewCalculator()
	r := percentRule("member-perks", 1, false, 10)
	r.Actions = append(r.Actions,
		types.Action{Type: types.ActionBonusPoints, Value: dec(50)},
		types.Action{Type: types.ActionFreeShipping},
	)

	b := calc.CalculatePrice([]types.Rule{r}, nil, calcContext(), nil)
	if b.LoyaltyPoints != 50 {
		t.Errorf("LoyaltyPoints = %d, want 50", b.LoyaltyPoints)
	}
	if !b.FreeShipping {
		t.Errorf("FreeShipping = false, want true")
	}
	// Points and shipping are surfaced separately, not as monetary discounts.
	if len(b.Discounts) != 1 {
		t.Errorf("len(Discounts) = %d, want 1 (only the percentage)", len(b.Discounts))
	}
}

func TestCalculatePrice_TraceExplainsComputation(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{percentRule("summer-sale", 1, false, 10)}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)
	joined := strings.Join(b.Trace, "\n")
	for _, want := range []string{"subtotal 200.00", "summer-sale", "final price 180.00"} {
		if !strings.Contains(joined, want) {
			t.Errorf("trace missing %q:\n%s", want, joined)
		}
	}
}

func TestCalculatePrice_NeverNegative(t *testing.T) {
	calc := NewCalculator()
	ruleSet := []types.Rule{
		fixedRule("huge-1", 1, true, 500),
		fixedRule("huge-2", 2, true, 500),
	}

	b := calc.CalculatePrice(ruleSet, nil, calcContext(), nil)
	if b.FinalPrice.IsNegative() {
		t.Errorf("FinalPrice = %s, want >= 0", b.FinalPrice)
	}
	if b.FinalPricePerUnit.IsNegative() {
		t.Errorf("FinalPricePerUnit = %s, want >= 0", b.FinalPricePerUnit)
	}
}

func TestCalculatePrice_MalformedRuleSkippedOthersApply(t *testing.T) {
	calc := NewCalculator()
	malformed := percentRule("malformed", 1, true, 10)
	malformed.Conditions = []types.Condition{
		{Field: "nonsense", Operator: "???", Value: map[string]any{"weird": true}},
	}
	good := percentRule("good", 2, true, 10)

	b := calc.CalculatePrice([]types.Rule{malformed, good}, nil, calcContext(), nil)
	if len(b.Discounts) != 1 || b.Discounts[0].Name != "good" {
		t.Fatalf("malformed rule must be non-matching, got %+v", b.Discounts)
	}
}
