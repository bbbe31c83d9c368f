package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/core/db"
	"github.com/tallyhq/pricekeeper/internal/types"
)

const testTenant = types.TenantID("tenant-1")

// newTestStore opens a throwaway SQLite database with migrations applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store_test.db")
	database, err := db.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.MigrateUp(database); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("failed to load queries: %v", err)
	}

	return New(queries)
}

func testRule(name string, priority int) *types.Rule {
	return &types.Rule{
		TenantID:    testTenant,
		Name:        name,
		Type:        types.RulePromotional,
		Priority:    priority,
		IsActive:    true,
		IsStackable: false,
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Conditions: []types.Condition{
			{Field: types.FieldQuantity, Operator: types.OpGte, Value: float64(2)},
		},
		Actions: []types.Action{
			{Type: types.ActionPercentageDiscount, Value: decimal.NewFromInt(10)},
		},
	}
}

func testCoupon(code string) *types.Coupon {
	return &types.Coupon{
		TenantID:  testTenant,
		Code:      code,
		Type:      types.ActionPercentageDiscount,
		Value:     decimal.NewFromInt(10),
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func TestCreateAndGetRule(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("summer sale", 10)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	maxUsages := 100
	rule.EndDate = &end
	rule.MaxUsages = &maxUsages

	if err := s.CreateRule(rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if rule.ID == "" {
		t.Fatal("CreateRule did not assign an ID")
	}

	got, err := s.GetRule(testTenant, rule.ID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.Name != "summer sale" || got.Priority != 10 || !got.IsActive {
		t.Errorf("rule fields = (%q, %d, %v), want (summer sale, 10, true)", got.Name, got.Priority, got.IsActive)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("EndDate = %v, want %v", got.EndDate, end)
	}
	if got.MaxUsages == nil || *got.MaxUsages != 100 {
		t.Errorf("MaxUsages = %v, want 100", got.MaxUsages)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].Field != types.FieldQuantity {
		t.Errorf("Conditions = %+v, want the stored quantity condition", got.Conditions)
	}
	if len(got.Actions) != 1 || !got.Actions[0].Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Actions = %+v, want the stored percentage action", got.Actions)
	}
}

func TestGetRule_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRule(testTenant, types.NewRuleID())
	if err != types.ErrRuleNotFound {
		t.Errorf("GetRule() error = %v, want ErrRuleNotFound", err)
	}
}

func TestGetRule_TenantIsolation(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("mine", 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	if _, err := s.GetRule("other-tenant", rule.ID); err != types.ErrRuleNotFound {
		t.Errorf("cross-tenant GetRule error = %v, want ErrRuleNotFound", err)
	}
}

func TestListRules_Order(t *testing.T) {
	s := newTestStore(t)

	// Insert out of priority order; equal priorities keep insertion order.
	for _, r := range []*types.Rule{
		testRule("third", 20),
		testRule("first", 5),
		testRule("second-a", 10),
		testRule("second-b", 10),
	} {
		if err := s.CreateRule(r); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", r.Name, err)
		}
	}

	rules, err := s.ListRules(testTenant)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}

	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
	}
	want := []string{"first", "second-a", "second-b", "third"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("rule order = %v, want %v", names, want)
	}
}

func TestListActiveRules_FiltersInactive(t *testing.T) {
	s := newTestStore(t)

	active := testRule("active", 1)
	inactive := testRule("inactive", 2)
	inactive.IsActive = false

	if err := s.CreateRule(active); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRule(inactive); err != nil {
		t.Fatal(err)
	}

	rules, err := s.ListActiveRules(testTenant)
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "active" {
		t.Errorf("active rules = %+v, want only %q", rules, "active")
	}
}

func TestUpdateRule(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("before", 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	rule.Name = "after"
	rule.Priority = 42
	rule.IsStackable = true
	if err := s.UpdateRule(rule); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}

	got, err := s.GetRule(testTenant, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "after" || got.Priority != 42 || !got.IsStackable {
		t.Errorf("updated rule = (%q, %d, %v), want (after, 42, true)", got.Name, got.Priority, got.IsStackable)
	}
}

func TestUpdateRule_NotFound(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("ghost", 1)
	rule.ID = types.NewRuleID()
	if err := s.UpdateRule(rule); err != types.ErrRuleNotFound {
		t.Errorf("UpdateRule error = %v, want ErrRuleNotFound", err)
	}
}

func TestDeleteRule(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("doomed", 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRule(testTenant, rule.ID); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	if _, err := s.GetRule(testTenant, rule.ID); err != types.ErrRuleNotFound {
		t.Errorf("GetRule after delete error = %v, want ErrRuleNotFound", err)
	}
	if err := s.DeleteRule(testTenant, rule.ID); err != types.ErrRuleNotFound {
		t.Errorf("second DeleteRule error = %v, want ErrRuleNotFound", err)
	}
}

func TestSetRuleActive(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("toggle-me", 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	if err := s.SetRuleActive(testTenant, rule.ID, false); err != nil {
		t.Fatalf("SetRuleActive failed: %v", err)
	}
	got, err := s.GetRule(testTenant, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("rule still active after SetRuleActive(false)")
	}
}

func TestDuplicateRule(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("original", 7)
	rule.UsageCount = 0
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementRuleUsage(testTenant, rule.ID); err != nil {
		t.Fatal(err)
	}

	dup, err := s.DuplicateRule(testTenant, rule.ID)
	if err != nil {
		t.Fatalf("DuplicateRule failed: %v", err)
	}

	if dup.ID == rule.ID {
		t.Error("duplicate shares the original's ID")
	}
	if dup.Name != "original (copy)" {
		t.Errorf("duplicate name = %q, want %q", dup.Name, "original (copy)")
	}
	if dup.IsActive {
		t.Error("duplicate must start inactive")
	}
	if dup.UsageCount != 0 {
		t.Errorf("duplicate usage count = %d, want 0", dup.UsageCount)
	}
	if dup.Priority != rule.Priority {
		t.Errorf("duplicate priority = %d, want %d", dup.Priority, rule.Priority)
	}
}

func TestDuplicateRule_LongMultiByteName(t *testing.T) {
	s := newTestStore(t)

	// Two-byte runes filling the name limit exactly; the trim for the
	// " (copy)" suffix lands mid-rune without boundary handling.
	rule := testRule(strings.Repeat("é", types.MaxNameLength/2), 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	dup, err := s.DuplicateRule(testTenant, rule.ID)
	if err != nil {
		t.Fatalf("DuplicateRule failed: %v", err)
	}

	if !utf8.ValidString(dup.Name) {
		t.Errorf("duplicate name is not valid UTF-8: %q", dup.Name)
	}
	if len(dup.Name) > types.MaxNameLength {
		t.Errorf("duplicate name length = %d, want <= %d", len(dup.Name), types.MaxNameLength)
	}
	if !strings.HasSuffix(dup.Name, " (copy)") {
		t.Errorf("duplicate name %q missing copy suffix", dup.Name)
	}
}

func TestIncrementRuleUsage(t *testing.T) {
	s := newTestStore(t)

	rule := testRule("counted", 1)
	if err := s.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementRuleUsage(testTenant, rule.ID); err != nil {
			t.Fatalf("IncrementRuleUsage failed: %v", err)
		}
	}

	got, err := s.GetRule(testTenant, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 3 {
		t.Errorf("UsageCount = %d, want 3", got.UsageCount)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		mutate  func(*types.Rule)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(r *types.Rule) { r.Name = "  " },
			wantErr: types.ErrEmptyName,
		},
		{
			name:    "name too long",
			mutate:  func(r *types.Rule) { r.Name = strings.Repeat("x", types.MaxNameLength+1) },
			wantErr: types.ErrNameTooLong,
		},
		{
			name: "too many conditions",
			mutate: func(r *types.Rule) {
				r.Conditions = make([]types.Condition, types.MaxConditionsPerRule+1)
			},
			wantErr: types.ErrTooManyConditions,
		},
		{
			name: "too many actions",
			mutate: func(r *types.Rule) {
				r.Actions = make([]types.Action, types.MaxActionsPerRule+1)
			},
			wantErr: types.ErrTooManyActions,
		},
		{
			name: "too many in values",
			mutate: func(r *types.Rule) {
				r.Conditions = []types.Condition{{
					Field:    types.FieldCustomerTier,
					Operator: types.OpIn,
					Values:   make([]any, types.MaxInValues+1),
				}}
			},
			wantErr: types.ErrTooManyInValues,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := testRule("valid name", 1)
			tt.mutate(rule)
			if err := s.CreateRule(rule); err != tt.wantErr {
				t.Errorf("CreateRule error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCouponRoundTrip(t *testing.T) {
	s := newTestStore(t)

	coupon := testCoupon("save10")
	minTotal := decimal.NewFromInt(150)
	coupon.MinOrderTotal = &minTotal
	coupon.EligibleTiers = []string{"gold", "platinum"}

	if err := s.CreateCoupon(coupon); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}
	if coupon.Code != "SAVE10" {
		t.Errorf("code = %q, want canonical SAVE10", coupon.Code)
	}

	got, err := s.GetCouponByCode(testTenant, "sAvE10")
	if err != nil {
		t.Fatalf("GetCouponByCode failed: %v", err)
	}
	if !got.Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Value = %s, want 10", got.Value)
	}
	if got.MinOrderTotal == nil || !got.MinOrderTotal.Equal(minTotal) {
		t.Errorf("MinOrderTotal = %v, want 150", got.MinOrderTotal)
	}
	if len(got.EligibleTiers) != 2 {
		t.Errorf("EligibleTiers = %v, want 2 entries", got.EligibleTiers)
	}
}

func TestCreateCoupon_DuplicateCode(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateCoupon(testCoupon("SAVE10")); err != nil {
		t.Fatal(err)
	}
	err := s.CreateCoupon(testCoupon("save10"))
	if err != types.ErrDuplicateCouponCode {
		t.Errorf("CreateCoupon error = %v, want ErrDuplicateCouponCode", err)
	}
}

func TestInsertCoupon_DuplicateConstraint(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateCoupon(testCoupon("SAVE10")); err != nil {
		t.Fatal(err)
	}

	// Insert directly, skipping CreateCoupon's pre-check, the way a
	// concurrent create would. The unique constraint must still surface
	// as ErrDuplicateCouponCode rather than a wrapped driver error.
	dup := testCoupon("SAVE10")
	dup.Code = types.CanonicalCode(dup.Code)
	err := s.insertCoupon(dup)
	if err != types.ErrDuplicateCouponCode {
		t.Errorf("insertCoupon error = %v, want ErrDuplicateCouponCode", err)
	}
}

func TestCouponsByCode(t *testing.T) {
	s := newTestStore(t)

	for _, code := range []string{"SAVE10", "WELCOME5"} {
		if err := s.CreateCoupon(testCoupon(code)); err != nil {
			t.Fatal(err)
		}
	}

	byCode, err := s.CouponsByCode(testTenant)
	if err != nil {
		t.Fatalf("CouponsByCode failed: %v", err)
	}
	if len(byCode) != 2 {
		t.Fatalf("len(byCode) = %d, want 2", len(byCode))
	}
	if _, ok := byCode["SAVE10"]; !ok {
		t.Error("SAVE10 missing from code map")
	}
}

func TestIncrementCouponUsage(t *testing.T) {
	s := newTestStore(t)

	coupon := testCoupon("ONCE")
	if err := s.CreateCoupon(coupon); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementCouponUsage(testTenant, coupon.ID); err != nil {
		t.Fatalf("IncrementCouponUsage failed: %v", err)
	}

	got, err := s.GetCoupon(testTenant, coupon.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	active := testRule("active", 1)
	inactive := testRule("inactive", 2)
	inactive.IsActive = false
	if err := s.CreateRule(active); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRule(inactive); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementRuleUsage(testTenant, active.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCoupon(testCoupon("SAVE10")); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(testTenant)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := types.Stats{TotalRules: 2, ActiveRules: 1, TotalUsages: 1, TotalCoupons: 1}
	if *stats != want {
		t.Errorf("Stats = %+v, want %+v", *stats, want)
	}
}
