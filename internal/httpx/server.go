package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// NewRouter mounts the GraphQL endpoint and the plumbing routes. Routes that
// depend on a caller run behind auth.Middleware.
func NewRouter(log *zap.Logger, verifier auth.Verifier, graphql http.Handler, catalog *CatalogHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		r.Handle("/graphql", graphql)
		if catalog != nil {
			catalog.Register(r)
		}
	})
	return r
}

// accessLog replaces chi's stdlib-logger middleware with one line per request on zap.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("req_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
