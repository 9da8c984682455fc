package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// AdminClaims is the token payload for the admin surface. An empty
// Tenants list grants access to every tenant; a non-empty list restricts
// the token to the named tenant IDs.
type AdminClaims struct {
	Tenants []string `json:"tenants,omitempty"`
	jwt.RegisteredClaims
}

// AllowsTenant reports whether the token may operate on tenantID.
func (c AdminClaims) AllowsTenant(tenantID string) bool {
	if len(c.Tenants) == 0 {
		return true
	}
	for _, t := range c.Tenants {
		if t == tenantID {
			return true
		}
	}
	return false
}

// AdminJWT enforces an HMAC-signed bearer token on the admin surface.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin access disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "bearer token required", http.StatusUnauthorized)
				return
			}
			claims := AdminClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid admin token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests whose admin token is scoped to other
// tenants than the {tenantID} route parameter. Mount inside AdminJWT.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid admin token", http.StatusUnauthorized)
			return
		}
		if tenantID := chi.URLParam(r, "tenantID"); !claims.AllowsTenant(tenantID) {
			http.Error(w, "token not scoped to this tenant", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminClaimsFromContext returns the verified admin claims if present.
func AdminClaimsFromContext(ctx context.Context) (AdminClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(AdminClaims)
	return claims, ok
}
