package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tallyhq/pricekeeper/internal/types"
)

// copySuffix marks duplicated rules; duplicates start inactive so they can be
// edited before affecting live calculations.
const copySuffix = " (copy)"

type ruleRow struct {
	RuleID      string         `db:"rule_id"`
	TenantID    string         `db:"tenant_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	RuleType    string         `db:"rule_type"`
	Priority    int            `db:"priority"`
	IsActive    bool           `db:"is_active"`
	IsStackable bool           `db:"is_stackable"`
	StartDate   string         `db:"start_date"`
	EndDate     sql.NullString `db:"end_date"`
	MaxUsages   sql.NullInt64  `db:"max_usages"`
	UsageCount  int            `db:"usage_count"`
	Conditions  string         `db:"conditions"`
	Actions     string         `db:"actions"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (row *ruleRow) toRule() (*types.Rule, error) {
	var conditions []types.Condition
	if err := json.Unmarshal([]byte(row.Conditions), &conditions); err != nil {
		return nil, fmt.Errorf("rule %s: malformed conditions: %w", row.RuleID, err)
	}
	var actions []types.Action
	if err := json.Unmarshal([]byte(row.Actions), &actions); err != nil {
		return nil, fmt.Errorf("rule %s: malformed actions: %w", row.RuleID, err)
	}

	startDate, err := parseTime(row.StartDate)
	if err != nil {
		return nil, fmt.Errorf("rule %s: malformed start_date: %w", row.RuleID, err)
	}
	endDate, err := parseNullTime(row.EndDate)
	if err != nil {
		return nil, fmt.Errorf("rule %s: malformed end_date: %w", row.RuleID, err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("rule %s: malformed created_at: %w", row.RuleID, err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("rule %s: malformed updated_at: %w", row.RuleID, err)
	}

	return &types.Rule{
		ID:          types.RuleID(row.RuleID),
		TenantID:    types.TenantID(row.TenantID),
		Name:        row.Name,
		Description: row.Description,
		Type:        types.RuleType(row.RuleType),
		Priority:    row.Priority,
		IsActive:    row.IsActive,
		IsStackable: row.IsStackable,
		StartDate:   startDate,
		EndDate:     endDate,
		MaxUsages:   intPtr(row.MaxUsages),
		UsageCount:  row.UsageCount,
		Conditions:  conditions,
		Actions:     actions,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// validateRule enforces the structural limits on a rule before it is written.
func validateRule(r *types.Rule) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return types.ErrEmptyName
	}
	if len(name) > types.MaxNameLength {
		return types.ErrNameTooLong
	}
	if len(r.Conditions) > types.MaxConditionsPerRule {
		return types.ErrTooManyConditions
	}
	if len(r.Actions) > types.MaxActionsPerRule {
		return types.ErrTooManyActions
	}
	for _, c := range r.Conditions {
		if len(c.Values) > types.MaxInValues {
			return types.ErrTooManyInValues
		}
	}
	return nil
}

// CreateRule validates and inserts a rule, assigning an ID and timestamps.
// Fails with ErrRuleLimitExceeded once the tenant holds MaxRulesPerTenant rules.
func (s *Store) CreateRule(r *types.Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}

	var count int
	if err := s.q.Get("count-rules", &count, r.TenantID); err != nil {
		return fmt.Errorf("failed to count rules: %w", err)
	}
	if count >= types.MaxRulesPerTenant {
		return types.ErrRuleLimitExceeded
	}

	if r.ID == "" {
		r.ID = types.NewRuleID()
	}
	ts := now()
	r.CreatedAt = ts
	r.UpdatedAt = ts

	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	_, err = s.q.Exec("create-rule",
		r.ID, r.TenantID, strings.TrimSpace(r.Name), r.Description, r.Type, r.Priority,
		r.IsActive, r.IsStackable, formatTime(r.StartDate), formatNullTime(r.EndDate),
		nullInt(r.MaxUsages), r.UsageCount,
		string(conditions), string(actions), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// GetRule fetches a single rule scoped to the tenant.
func (s *Store) GetRule(tenantID types.TenantID, ruleID types.RuleID) (*types.Rule, error) {
	var row ruleRow
	err := s.q.Get("get-rule", &row, tenantID, ruleID)
	if err == sql.ErrNoRows {
		return nil, types.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule: %w", err)
	}
	return row.toRule()
}

// ListRules returns all of the tenant's rules in calculation order
// (priority, then creation time, then ID). Rows that fail to decode are
// skipped.
func (s *Store) ListRules(tenantID types.TenantID) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select("list-rules", &rows, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return decodeRules(rows), nil
}

// ListActiveRules returns the tenant's active rules in calculation order.
func (s *Store) ListActiveRules(tenantID types.TenantID) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select("list-active-rules", &rows, tenantID, true); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	return decodeRules(rows), nil
}

func decodeRules(rows []ruleRow) []types.Rule {
	rules := make([]types.Rule, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toRule()
		if err != nil {
			continue
		}
		rules = append(rules, *r)
	}
	return rules
}

// UpdateRule replaces the mutable fields of an existing rule.
// ID, tenant, usage count, and creation time never change through updates.
func (s *Store) UpdateRule(r *types.Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}

	r.UpdatedAt = now()

	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	res, err := s.q.Exec("update-rule",
		strings.TrimSpace(r.Name), r.Description, r.Type, r.Priority,
		r.IsActive, r.IsStackable, formatTime(r.StartDate), formatNullTime(r.EndDate),
		nullInt(r.MaxUsages), string(conditions), string(actions), formatTime(r.UpdatedAt),
		r.TenantID, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRow(res, types.ErrRuleNotFound)
}

// DeleteRule removes a rule permanently.
func (s *Store) DeleteRule(tenantID types.TenantID, ruleID types.RuleID) error {
	res, err := s.q.Exec("delete-rule", tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRow(res, types.ErrRuleNotFound)
}

// SetRuleActive flips a rule's active flag without touching anything else.
func (s *Store) SetRuleActive(tenantID types.TenantID, ruleID types.RuleID, active bool) error {
	res, err := s.q.Exec("set-rule-active", active, formatTime(now()), tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	return requireRow(res, types.ErrRuleNotFound)
}

// DuplicateRule copies an existing rule under a new ID. The copy starts
// inactive with a reset usage count and a name suffixed with " (copy)".
func (s *Store) DuplicateRule(tenantID types.TenantID, ruleID types.RuleID) (*types.Rule, error) {
	orig, err := s.GetRule(tenantID, ruleID)
	if err != nil {
		return nil, err
	}

	dup := *orig
	dup.ID = types.NewRuleID()
	dup.Name = copyName(orig.Name)
	dup.IsActive = false
	dup.UsageCount = 0

	if err := s.CreateRule(&dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

// copyName appends the duplicate suffix, trimming the base name if the
// result would exceed the name length limit. The cut backs up to a rune
// boundary so a multi-byte name never truncates mid-rune.
func copyName(name string) string {
	if len(name)+len(copySuffix) > types.MaxNameLength {
		cut := types.MaxNameLength - len(copySuffix)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name + copySuffix
}

// IncrementRuleUsage records one committed application of the rule.
// Calculation itself never calls this; usage recording is an explicit
// caller action after an order is placed.
func (s *Store) IncrementRuleUsage(tenantID types.TenantID, ruleID types.RuleID) error {
	res, err := s.q.Exec("increment-rule-usage", formatTime(now()), tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to increment rule usage: %w", err)
	}
	return requireRow(res, types.ErrRuleNotFound)
}

// requireRow maps a zero-row write to the given not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
