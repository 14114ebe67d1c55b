package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
)

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by RequireToken.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(jwtx.Claims)
	return c, ok
}

// TokenFromRequest reads a token from the named cookie, falling back to an
// Authorization bearer header.
func TokenFromRequest(r *http.Request, cookie string) string {
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireToken rejects requests without a valid token from cookie. Every
// method in amr must be present in the token's amr claim.
func RequireToken(v jwtx.Verifier, cookie string, amr ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r, cookie)
			if raw == "" {
				WriteResult(w, http.StatusUnauthorized, false, "Not authenticated")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("token rejected", "cookie", cookie, "err", err)
				WriteResult(w, http.StatusUnauthorized, false, "Not authenticated")
				return
			}
			for _, m := range amr {
				if !claims.HasAMR(m) {
					WriteResult(w, http.StatusUnauthorized, false, "Not authenticated")
					return
				}
			}

			ctx := slogx.With(WithClaims(r.Context(), claims), "sub", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
