package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/pricekeeper/internal/rules"
	"github.com/tallyhq/pricekeeper/internal/types"
)

// POST /v1/coupons
func (s *Service) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var coupon types.Coupon
	if err := decodeJSON(w, r, &coupon); err != nil {
		return
	}

	coupon.ID = ""
	coupon.TenantID = tenantFrom(r)
	coupon.UsageCount = 0

	if err := s.store.CreateCoupon(&coupon); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

// GET /v1/coupons
func (s *Service) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.store.ListCoupons(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if coupons == nil {
		coupons = []types.Coupon{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

// GET /v1/coupons/{code}
func (s *Service) handleGetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := s.store.GetCouponByCode(tenantFrom(r), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

// PUT /v1/coupons/{code}
//
// The URL code addresses the coupon; the body may rename it. Identity stays
// with the coupon ID, so renames do not orphan usage history.
func (s *Service) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	existing, err := s.store.GetCouponByCode(tenantID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var coupon types.Coupon
	if err := decodeJSON(w, r, &coupon); err != nil {
		return
	}
	coupon.ID = existing.ID
	coupon.TenantID = tenantID

	if err := s.store.UpdateCoupon(&coupon); err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.store.GetCoupon(tenantID, existing.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /v1/coupons/{code}
func (s *Service) handleDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	coupon, err := s.store.GetCouponByCode(tenantID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.DeleteCoupon(tenantID, coupon.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/coupons/{code}/usage
func (s *Service) handleCouponUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	coupon, err := s.store.GetCouponByCode(tenantID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.IncrementCouponUsage(tenantID, coupon.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateCouponRequest checks one code against an order context without
// applying it.
type validateCouponRequest struct {
	Code     string         `json:"code"`
	Item     types.LineItem `json:"item"`
	Customer types.Customer `json:"customer"`
	AsOf     *time.Time     `json:"as_of,omitempty"`
}

type validateCouponResponse struct {
	Code   string `json:"code"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// POST /v1/coupons/validate
//
// An unknown code is a negative validation result, not an HTTP error, so
// storefronts can surface the reason string directly.
func (s *Service) handleValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Item.Quantity < 1 {
		writeDomainError(w, types.ErrInvalidQuantity)
		return
	}

	code := types.CanonicalCode(req.Code)
	resp := validateCouponResponse{Code: code}

	coupon, err := s.store.GetCouponByCode(tenantFrom(r), code)
	if err == types.ErrCouponNotFound {
		resp.Reason = rules.ReasonUnknownCode
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	calcReq := calculateRequest{Item: req.Item, Customer: req.Customer, AsOf: req.AsOf}
	ctx := calcReq.context()
	check := rules.ValidateCoupon(coupon, ctx, ctx.Subtotal())

	resp.Valid = check.Valid
	resp.Reason = check.Reason
	writeJSON(w, http.StatusOK, resp)
}
