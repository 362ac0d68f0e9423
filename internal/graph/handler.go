package graph

import (
	"net/http"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/go-chi/chi/v5/middleware"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxQueryDepth = 8

// NewHandler serves the sales schema over HTTP (POST application/json).
func NewHandler(svc *sales.Service, log *zap.Logger) (http.Handler, error) {
	schema, err := graphql.ParseSchema(schemaSDL, &Resolver{svc: svc, log: log},
		graphql.MaxDepth(maxQueryDepth),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse graphql schema")
	}
	h := &relay.Handler{Schema: schema}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(sales.WithTraceID(r.Context(), id))
		}
		h.ServeHTTP(w, r)
	}), nil
}
