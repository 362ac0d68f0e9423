package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMiddleware(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	tok, err := iss.Issue(alice)
	require.NoError(t, err)

	var seen sales.Identity
	h := Middleware(iss, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		want   sales.Identity
	}{
		{"bearer token", "Bearer " + tok, alice},
		{"lowercase scheme", "bearer " + tok, alice},
		{"raw token", tok, alice},
		{"no header", "", sales.Identity{}},
		{"bad token", "Bearer nope", sales.Identity{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seen = sales.Identity{ID: "stale"}
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, c.want, seen)
		})
	}
}
