package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CatalogHandler is a small read-only REST view next to /graphql, for health
// checks and scripts that don't speak GraphQL.
type CatalogHandler struct {
	Svc *sales.Service
	Log *zap.Logger
}

type productJSON struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Stock int     `json:"stock"`
	Price float64 `json:"price"`
}

type orderJSON struct {
	ID       string          `json:"id"`
	ClientID string          `json:"client_id"`
	Status   string          `json:"status"`
	Items    []sales.ItemQty `json:"items"`
	Total    float64         `json:"total"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/orders/{id}", h.getOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *CatalogHandler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sales.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, sales.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not authorized"})
	default:
		h.Log.Error("catalog request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toProductJSON(p sales.Product) productJSON {
	return productJSON{ID: p.ID.String(), Name: p.Name, Stock: p.Stock, Price: float64(p.PriceCents) / 100}
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		ps  []sales.Product
		err error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		ps, err = h.Svc.SearchProducts(ctx, q)
	} else {
		ps, err = h.Svc.Products(ctx)
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]productJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Svc.Product(ctx, sales.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductJSON(p))
}

// getOrder hanya untuk pemilik order (butuh bearer token).
func (h *CatalogHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Order(ctx, auth.FromContext(ctx), sales.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	items := make([]sales.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, sales.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	writeJSON(w, http.StatusOK, orderJSON{
		ID:       o.ID.String(),
		ClientID: o.ClientID.String(),
		Status:   string(o.Status),
		Items:    items,
		Total:    float64(o.TotalCents) / 100,
	})
}
