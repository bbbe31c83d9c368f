// Package api provides the HTTP handlers for the PriceKeeper pricing API.
//
// The service is a thin orchestration layer: request decoding, tenant
// scoping, and error mapping live here; all pricing semantics live in
// internal/rules and all persistence in internal/core/store.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tallyhq/pricekeeper/internal/core/config"
	"github.com/tallyhq/pricekeeper/internal/core/observability"
	"github.com/tallyhq/pricekeeper/internal/rules"
	"github.com/tallyhq/pricekeeper/internal/types"
)

// maxRequestBytes bounds request bodies; rule payloads are small and
// anything larger is a client error.
const maxRequestBytes = 1 << 20

// Store is the persistence surface the handlers depend on.
// Implemented by *store.Store; narrowed to an interface so handler tests can
// run against an in-memory fake.
type Store interface {
	CreateRule(r *types.Rule) error
	GetRule(tenantID types.TenantID, ruleID types.RuleID) (*types.Rule, error)
	ListRules(tenantID types.TenantID) ([]types.Rule, error)
	ListActiveRules(tenantID types.TenantID) ([]types.Rule, error)
	UpdateRule(r *types.Rule) error
	DeleteRule(tenantID types.TenantID, ruleID types.RuleID) error
	SetRuleActive(tenantID types.TenantID, ruleID types.RuleID, active bool) error
	DuplicateRule(tenantID types.TenantID, ruleID types.RuleID) (*types.Rule, error)
	IncrementRuleUsage(tenantID types.TenantID, ruleID types.RuleID) error

	CreateCoupon(c *types.Coupon) error
	GetCoupon(tenantID types.TenantID, couponID types.CouponID) (*types.Coupon, error)
	GetCouponByCode(tenantID types.TenantID, code string) (*types.Coupon, error)
	ListCoupons(tenantID types.TenantID) ([]types.Coupon, error)
	CouponsByCode(tenantID types.TenantID) (map[string]types.Coupon, error)
	UpdateCoupon(c *types.Coupon) error
	DeleteCoupon(tenantID types.TenantID, couponID types.CouponID) error
	IncrementCouponUsage(tenantID types.TenantID, couponID types.CouponID) error

	Stats(tenantID types.TenantID) (*types.Stats, error)
}

// Service implements the pricing HTTP API.
type Service struct {
	store Store
	calc  *rules.Calculator
	cfg   *config.ServerConfig
}

// NewService creates a Service with its dependencies.
func NewService(store Store, cfg *config.ServerConfig) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	return &Service{
		store: store,
		calc:  rules.NewCalculator(),
		cfg:   cfg,
	}, nil
}

// Router assembles the chi router: shared middleware, health endpoint, and
// the authenticated /v1 API group.
func (s *Service) Router(authMW func(http.Handler) http.Handler, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.Recovery(logger))
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "route_not_found", fmt.Sprintf("no route for %s", req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path))
	})

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(api chi.Router) {
		if authMW != nil {
			api.Use(authMW)
		}

		api.Post("/price/calculate", s.handleCalculate)
		api.Post("/rules/applicable", s.handleApplicable)

		api.Route("/rules", func(g chi.Router) {
			g.Post("/", s.handleCreateRule)
			g.Get("/", s.handleListRules)
			g.Get("/{ruleID}", s.handleGetRule)
			g.Put("/{ruleID}", s.handleUpdateRule)
			g.Delete("/{ruleID}", s.handleDeleteRule)
			g.Post("/{ruleID}/toggle", s.handleToggleRule)
			g.Post("/{ruleID}/duplicate", s.handleDuplicateRule)
			g.Post("/{ruleID}/usage", s.handleRuleUsage)
		})

		api.Route("/coupons", func(g chi.Router) {
			g.Post("/", s.handleCreateCoupon)
			g.Get("/", s.handleListCoupons)
			g.Post("/validate", s.handleValidateCoupon)
			g.Get("/{code}", s.handleGetCoupon)
			g.Put("/{code}", s.handleUpdateCoupon)
			g.Delete("/{code}", s.handleDeleteCoupon)
			g.Post("/{code}/usage", s.handleCouponUsage)
		})

		api.Get("/conflicts", s.handleConflicts)
		api.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleConflicts(w http.ResponseWriter, r *http.Request) {
	// Conflict detection is advisory and runs over active rules only;
	// disabled rules cannot collide with anything.
	active, err := s.store.ListActiveRules(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	conflicts := rules.DetectConflicts(active)
	if conflicts == nil {
		conflicts = []types.Conflict{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

// decodeJSON decodes a bounded request body into dest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed JSON body")
		return err
	}
	return nil
}
