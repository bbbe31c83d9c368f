package api

import (
	"net/http"
	"time"

	"github.com/tallyhq/pricekeeper/internal/core/auth"
	"github.com/tallyhq/pricekeeper/internal/types"
)

// tenantFrom returns the authenticated tenant for the request.
// The auth middleware guarantees it is present on every /v1 route.
func tenantFrom(r *http.Request) types.TenantID {
	return auth.TenantIDFromContext(r.Context())
}

// calculateRequest is the wire shape shared by the calculate and
// applicable-rules endpoints. AsOf defaults to the current time; pinning it
// makes calculations reproducible for support and testing.
type calculateRequest struct {
	Item        types.LineItem `json:"item"`
	Customer    types.Customer `json:"customer"`
	CouponCodes []string       `json:"coupon_codes,omitempty"`
	AsOf        *time.Time     `json:"as_of,omitempty"`
}

func (req *calculateRequest) context() *types.EvaluationContext {
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}
	return &types.EvaluationContext{
		Item:     req.Item,
		Customer: req.Customer,
		AsOf:     asOf,
	}
}

func (s *Service) validateCalculateRequest(w http.ResponseWriter, req *calculateRequest) bool {
	if req.Item.Quantity < 1 {
		writeDomainError(w, types.ErrInvalidQuantity)
		return false
	}
	if req.Item.UnitPrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_argument", "unit_price must not be negative")
		return false
	}
	if len(req.CouponCodes) > s.cfg.MaxCouponCodes {
		writeDomainError(w, types.ErrTooManyCoupons)
		return false
	}
	return true
}

// handleCalculate computes the full price breakdown for one line item.
// POST /v1/price/calculate
func (s *Service) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if !s.validateCalculateRequest(w, &req) {
		return
	}

	tenantID := tenantFrom(r)
	ruleSet, err := s.store.ListActiveRules(tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	coupons, err := s.store.CouponsByCode(tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	breakdown := s.calc.CalculatePrice(ruleSet, coupons, req.context(), req.CouponCodes)
	writeJSON(w, http.StatusOK, breakdown)
}

// handleApplicable returns the rules that would match the given context, in
// calculation order, before stacking resolution. Used by storefront UIs to
// preview promotions.
// POST /v1/rules/applicable
func (s *Service) handleApplicable(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if !s.validateCalculateRequest(w, &req) {
		return
	}

	ruleSet, err := s.store.ListActiveRules(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	matched := s.calc.ApplicableRules(ruleSet, req.context())
	if matched == nil {
		matched = []types.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": matched})
}
