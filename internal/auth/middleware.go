package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"go.uber.org/zap"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id sales.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller, or the zero Identity when the request had none.
func FromContext(ctx context.Context) sales.Identity {
	id, _ := ctx.Value(ctxKey{}).(sales.Identity)
	return id
}

type Verifier interface {
	Verify(token string) (sales.Identity, error)
}

// Middleware resolves the Authorization header into a caller identity. A bad token
// never fails the request; it just leaves the caller anonymous.
func Middleware(v Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				log.Debug("token rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}
