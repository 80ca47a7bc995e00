package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// AdminJWT guards the admin surface with an HMAC-signed bearer token.
// Without a configured secret every admin request is refused outright.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				unauthorized(w, "admin API is not configured")
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseAdminToken(secret, r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), adminClaimsKey, claims)))
		})
	}
}

func parseAdminToken(secret, header string) (jwt.RegisteredClaims, error) {
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return jwt.RegisteredClaims{}, jwt.ErrTokenMalformed
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		// Operator tokens are minted with a lifetime; one without an
		// expiry was not minted by us.
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	return claims, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// AdminClaimsFromContext returns the claims the admin middleware verified.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}
