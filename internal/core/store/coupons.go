package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tallyhq/pricekeeper/internal/types"
)

type couponRow struct {
	CouponID      string         `db:"coupon_id"`
	TenantID      string         `db:"tenant_id"`
	Code          string         `db:"code"`
	Description   string         `db:"description"`
	CouponType    string         `db:"coupon_type"`
	Value         string         `db:"value"`
	MinOrderTotal sql.NullString `db:"min_order_total"`
	StartDate     string         `db:"start_date"`
	EndDate       sql.NullString `db:"end_date"`
	MaxUsages     sql.NullInt64  `db:"max_usages"`
	UsageCount    int            `db:"usage_count"`
	IsActive      bool           `db:"is_active"`
	EligibleTiers string         `db:"eligible_tiers"`
	EligibleItems string         `db:"eligible_items"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

func (row *couponRow) toCoupon() (*types.Coupon, error) {
	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: malformed value: %w", row.CouponID, err)
	}

	var minTotal *decimal.Decimal
	if row.MinOrderTotal.Valid {
		d, err := decimal.NewFromString(row.MinOrderTotal.String)
		if err != nil {
			return nil, fmt.Errorf("coupon %s: malformed min_order_total: %w", row.CouponID, err)
		}
		minTotal = &d
	}

	var tiers, items []string
	if err := json.Unmarshal([]byte(row.EligibleTiers), &tiers); err != nil {
		return nil, fmt.Errorf("coupon %s: malformed eligible_tiers: %w", row.CouponID, err)
	}
	if err := json.Unmarshal([]byte(row.EligibleItems), &items); err != nil {
		return nil, fmt.Errorf("coupon %s: malformed eligible_items: %w", row.CouponID, err)
	}

	startDate, err := parseTime(row.StartDate)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: malformed start_date: %w", row.CouponID, err)
	}
	endDate, err := parseNullTime(row.EndDate)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: malformed end_date: %w", row.CouponID, err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: malformed created_at: %w", row.CouponID, err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: malformed updated_at: %w", row.CouponID, err)
	}

	return &types.Coupon{
		ID:            types.CouponID(row.CouponID),
		TenantID:      types.TenantID(row.TenantID),
		Code:          row.Code,
		Description:   row.Description,
		Type:          types.ActionType(row.CouponType),
		Value:         value,
		MinOrderTotal: minTotal,
		StartDate:     startDate,
		EndDate:       endDate,
		MaxUsages:     intPtr(row.MaxUsages),
		UsageCount:    row.UsageCount,
		IsActive:      row.IsActive,
		EligibleTiers: tiers,
		EligibleItems: items,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// validateCoupon enforces structural limits before a coupon is written.
// The canonical code doubles as the coupon's display name.
func validateCoupon(c *types.Coupon) error {
	if c.Code == "" {
		return types.ErrEmptyName
	}
	if len(c.Code) > types.MaxNameLength {
		return types.ErrNameTooLong
	}
	return nil
}

// CreateCoupon canonicalizes the code and inserts the coupon.
// A second coupon with the same canonical code for the tenant fails with
// ErrDuplicateCouponCode (backed by a unique constraint).
func (s *Store) CreateCoupon(c *types.Coupon) error {
	c.Code = types.CanonicalCode(c.Code)
	if err := validateCoupon(c); err != nil {
		return err
	}

	// Cheap pre-check for the common path; the unique constraint mapped in
	// insertCoupon closes the race between concurrent creates.
	if _, err := s.GetCouponByCode(c.TenantID, c.Code); err == nil {
		return types.ErrDuplicateCouponCode
	} else if err != types.ErrCouponNotFound {
		return err
	}

	return s.insertCoupon(c)
}

func (s *Store) insertCoupon(c *types.Coupon) error {
	if c.ID == "" {
		c.ID = types.NewCouponID()
	}
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts

	tiers, items, err := encodeEligibility(c)
	if err != nil {
		return err
	}

	_, err = s.q.Exec("create-coupon",
		c.ID, c.TenantID, c.Code, c.Description, c.Type, c.Value.String(),
		nullDecimal(c.MinOrderTotal), formatTime(c.StartDate), formatNullTime(c.EndDate),
		nullInt(c.MaxUsages), c.UsageCount, c.IsActive,
		tiers, items, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isDuplicateErr(err) {
			return types.ErrDuplicateCouponCode
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}
	return nil
}

// isDuplicateErr detects a unique-constraint violation from either driver.
func isDuplicateErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}

// GetCoupon fetches a coupon by ID scoped to the tenant.
func (s *Store) GetCoupon(tenantID types.TenantID, couponID types.CouponID) (*types.Coupon, error) {
	var row couponRow
	err := s.q.Get("get-coupon", &row, tenantID, couponID)
	if err == sql.ErrNoRows {
		return nil, types.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupon: %w", err)
	}
	return row.toCoupon()
}

// GetCouponByCode fetches a coupon by its canonical code.
func (s *Store) GetCouponByCode(tenantID types.TenantID, code string) (*types.Coupon, error) {
	var row couponRow
	err := s.q.Get("get-coupon-by-code", &row, tenantID, types.CanonicalCode(code))
	if err == sql.ErrNoRows {
		return nil, types.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupon: %w", err)
	}
	return row.toCoupon()
}

// ListCoupons returns all of the tenant's coupons ordered by code.
// Rows that fail to decode are skipped.
func (s *Store) ListCoupons(tenantID types.TenantID) ([]types.Coupon, error) {
	var rows []couponRow
	if err := s.q.Select("list-coupons", &rows, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	coupons := make([]types.Coupon, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toCoupon()
		if err != nil {
			continue
		}
		coupons = append(coupons, *c)
	}
	return coupons, nil
}

// CouponsByCode returns the tenant's coupons keyed by canonical code,
// the lookup shape the price calculator consumes.
func (s *Store) CouponsByCode(tenantID types.TenantID) (map[string]types.Coupon, error) {
	coupons, err := s.ListCoupons(tenantID)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]types.Coupon, len(coupons))
	for _, c := range coupons {
		byCode[c.Code] = c
	}
	return byCode, nil
}

// UpdateCoupon replaces the mutable fields of an existing coupon.
func (s *Store) UpdateCoupon(c *types.Coupon) error {
	c.Code = types.CanonicalCode(c.Code)
	if err := validateCoupon(c); err != nil {
		return err
	}

	c.UpdatedAt = now()

	tiers, items, err := encodeEligibility(c)
	if err != nil {
		return err
	}

	res, err := s.q.Exec("update-coupon",
		c.Code, c.Description, c.Type, c.Value.String(),
		nullDecimal(c.MinOrderTotal), formatTime(c.StartDate), formatNullTime(c.EndDate),
		nullInt(c.MaxUsages), c.IsActive, tiers, items, formatTime(c.UpdatedAt),
		c.TenantID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	return requireRow(res, types.ErrCouponNotFound)
}

// DeleteCoupon removes a coupon permanently.
func (s *Store) DeleteCoupon(tenantID types.TenantID, couponID types.CouponID) error {
	res, err := s.q.Exec("delete-coupon", tenantID, couponID)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	return requireRow(res, types.ErrCouponNotFound)
}

// IncrementCouponUsage records one committed redemption of the coupon.
func (s *Store) IncrementCouponUsage(tenantID types.TenantID, couponID types.CouponID) error {
	res, err := s.q.Exec("increment-coupon-usage", formatTime(now()), tenantID, couponID)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return requireRow(res, types.ErrCouponNotFound)
}

func encodeEligibility(c *types.Coupon) (tiers, items string, err error) {
	t, err := json.Marshal(emptyIfNil(c.EligibleTiers))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode eligible_tiers: %w", err)
	}
	i, err := json.Marshal(emptyIfNil(c.EligibleItems))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode eligible_items: %w", err)
	}
	return string(t), string(i), nil
}

// emptyIfNil keeps eligibility columns as valid JSON arrays, never "null".
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
