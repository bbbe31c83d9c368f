package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/pricekeeper/internal/types"
)

// ruleID parses the {ruleID} URL parameter, writing a 400 on malformed IDs.
func ruleID(w http.ResponseWriter, r *http.Request) (types.RuleID, bool) {
	id, err := types.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed rule id")
		return "", false
	}
	return id, true
}

// POST /v1/rules
func (s *Service) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule types.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		return
	}

	// Server-assigned identity: client-supplied IDs and counters are ignored.
	rule.ID = ""
	rule.TenantID = tenantFrom(r)
	rule.UsageCount = 0

	if err := s.store.CreateRule(&rule); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GET /v1/rules
func (s *Service) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rules == nil {
		rules = []types.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// GET /v1/rules/{ruleID}
func (s *Service) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	rule, err := s.store.GetRule(tenantFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// PUT /v1/rules/{ruleID}
func (s *Service) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	var rule types.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		return
	}
	rule.ID = id
	rule.TenantID = tenantFrom(r)

	if err := s.store.UpdateRule(&rule); err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.store.GetRule(rule.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /v1/rules/{ruleID}
func (s *Service) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteRule(tenantFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/rules/{ruleID}/toggle
func (s *Service) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	tenantID := tenantFrom(r)

	rule, err := s.store.GetRule(tenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.SetRuleActive(tenantID, id, !rule.IsActive); err != nil {
		writeDomainError(w, err)
		return
	}

	rule.IsActive = !rule.IsActive
	writeJSON(w, http.StatusOK, rule)
}

// POST /v1/rules/{ruleID}/duplicate
func (s *Service) handleDuplicateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	dup, err := s.store.DuplicateRule(tenantFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// POST /v1/rules/{ruleID}/usage
//
// Usage is recorded by the caller after an order commits; calculation itself
// never mutates counters.
func (s *Service) handleRuleUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	if err := s.store.IncrementRuleUsage(tenantFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
