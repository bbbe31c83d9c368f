// Package auth provides HMAC-based API key authentication for the HTTP API.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tallyhq/pricekeeper/internal/types"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// Queries interface defines database operations needed for authentication.
// Implemented by *db.Queries to allow query loading via LoadQueries().
type Queries interface {
	Get(name string, dest interface{}, args ...interface{}) error
	Exec(name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
	}
}

// Authenticate validates an API key and returns the tenant ID on success.
// Returns a specific error for each failure mode.
func (a *Authenticator) Authenticate(apiKey string) (types.TenantID, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	// O(1) lookup of HMAC secret using secret_id from key format
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// Query by key_hash using named query (unique constraint ensures single result)
	var result struct {
		APIKeyID   string         `db:"api_key_id"`
		TenantID   string         `db:"tenant_id"`
		RevokedAt  sql.NullString `db:"revoked_at"`
		LastUsedAt sql.NullString `db:"last_used_at"`
	}

	err = a.queries.Get("get-api-key-by-hash", &result, computedHash)
	if err == sql.ErrNoRows {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// Update last_used_at if >1 minute since last update
	// 1-minute throttle reduces write amplification for busy API keys
	if shouldUpdateLastUsed(result.LastUsedAt) {
		_, _ = a.queries.Exec("update-last-used", time.Now().UTC().Format(time.RFC3339), result.APIKeyID)
	}

	return types.TenantID(result.TenantID), nil
}

// shouldUpdateLastUsed implements the 1-minute write throttle.
// Timestamps are RFC3339 strings; an unparsable value forces a rewrite.
func shouldUpdateLastUsed(lastUsed sql.NullString) bool {
	if !lastUsed.Valid {
		return true
	}
	t, err := time.Parse(time.RFC3339, lastUsed.String)
	if err != nil {
		return true
	}
	return time.Since(t) > time.Minute
}

// Middleware authenticates requests via the X-API-Key header and injects
// the tenant ID into the request context.
// 401 for missing/invalid keys, 403 for revoked keys, 503 when the
// authentication backend cannot be reached.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", ErrMissingKey.Error())
				return
			}

			tenantID, err := a.Authenticate(apiKey)
			if err != nil {
				switch {
				case err == ErrKeyRevoked:
					writeAuthError(w, http.StatusForbidden, "permission_denied", err.Error())
				case strings.Contains(err.Error(), "database error"):
					writeAuthError(w, http.StatusServiceUnavailable, "unavailable", "authentication backend unavailable")
				default:
					writeAuthError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				}
				return
			}

			ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError emits the canonical JSON error envelope.
// Duplicated from the api package to keep auth free of handler imports.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

// TenantIDFromContext extracts the tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) types.TenantID {
	if tenantID, ok := ctx.Value(tenantIDKey).(types.TenantID); ok {
		return tenantID
	}
	return ""
}

// WithTenantID injects a tenant ID into the context. Intended for tests and
// internal callers that bypass HTTP authentication.
func WithTenantID(ctx context.Context, tenantID types.TenantID) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
