package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/roadcall/roadcall/internal/auth"
	"github.com/roadcall/roadcall/internal/core/domain"
)

type ctxKey int

const plateKey ctxKey = 1

func PlateFromContext(ctx context.Context) (domain.Plate, bool) {
	p, ok := ctx.Value(plateKey).(domain.Plate)
	return p, ok
}

func withPlate(ctx context.Context, p domain.Plate) context.Context {
	return context.WithValue(ctx, plateKey, p)
}

// AuthMiddleware verifies the bearer token and binds the caller's plate to
// the request context. Websocket endpoints may pass the token as a query
// parameter since browsers cannot set headers on upgrade requests.
func AuthMiddleware(tokens auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r.Header.Get("Authorization"))
			if tok == "" {
				tok = r.URL.Query().Get("token")
			}
			if tok == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			plate, err := tokens.Verify(tok)
			if err != nil {
				writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withPlate(r.Context(), plate)))
		})
	}
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
