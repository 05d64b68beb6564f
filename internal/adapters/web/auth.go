package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token. Admin unlocks DELETE_CUSTOMER_DATA over the
// voice channel; everything else is operator-level.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

const tokenTTL = 12 * time.Hour

type authClaimsKey struct{}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RoleFromContext returns the authenticated role, or empty string.
func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(authClaimsKey{}).(string)
	return v
}

// login handles POST /api/v1/auth/login. The shop has no user accounts:
// a single operator PIN (and optionally an admin PIN) issues the token.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin" validate:"required,min=4"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "pin is required", http.StatusBadRequest)
		return
	}

	var role string
	switch {
	case h.adminPIN != "" && subtle.ConstantTimeCompare([]byte(req.PIN), []byte(h.adminPIN)) == 1:
		role = RoleAdmin
	case h.operatorPIN != "" && subtle.ConstantTimeCompare([]byte(req.PIN), []byte(h.operatorPIN)) == 1:
		role = RoleOperator
	default:
		writeError(w, "invalid pin", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	claims := &jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, "token generation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"role":      role,
		"expiresAt": now.Add(tokenTTL).UTC().Format(time.RFC3339),
	})
}

// RequireAuth validates the bearer token and stores the role in the request
// context. The websocket upgrade cannot set headers from a browser, so a
// `token` query parameter is accepted too.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
