package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tallyhq/pricekeeper/internal/types"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the canonical JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

// writeDomainError maps a store or validation error onto the HTTP taxonomy.
// Unknown errors become 500 with a generic message so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrRuleNotFound),
		errors.Is(err, types.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, types.ErrDuplicateCouponCode):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, types.ErrRuleLimitExceeded):
		writeError(w, http.StatusUnprocessableEntity, "limit_exceeded", err.Error())
	case errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrNameTooLong),
		errors.Is(err, types.ErrTooManyConditions),
		errors.Is(err, types.ErrTooManyActions),
		errors.Is(err, types.ErrTooManyInValues),
		errors.Is(err, types.ErrTooManyCoupons),
		errors.Is(err, types.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
