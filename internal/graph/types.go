package graph

import (
	"context"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/pkg/errors"
)

func toFloat(cents int) float64 { return float64(cents) / 100 }

func gid(id sales.ID) graphql.ID { return graphql.ID(id) }

type userResolver struct{ u sales.User }

func (r *userResolver) ID() graphql.ID  { return gid(r.u.ID) }
func (r *userResolver) Name() string    { return r.u.Name }
func (r *userResolver) Surname() string { return r.u.Surname }
func (r *userResolver) Email() string   { return r.u.Email }
func (r *userResolver) CreatedAt() *graphql.Time {
	if r.u.CreatedAt.IsZero() {
		return nil
	}
	return &graphql.Time{Time: r.u.CreatedAt}
}

type tokenResolver struct{ token string }

func (r *tokenResolver) Token() string { return r.token }

type productResolver struct{ p sales.Product }

func (r *productResolver) ID() graphql.ID          { return gid(r.p.ID) }
func (r *productResolver) Name() string            { return r.p.Name }
func (r *productResolver) Stock() int32            { return int32(r.p.Stock) }
func (r *productResolver) Price() float64          { return toFloat(r.p.PriceCents) }
func (r *productResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.p.CreatedAt} }

func products(ps []sales.Product) []*productResolver {
	out := make([]*productResolver, 0, len(ps))
	for _, p := range ps {
		out = append(out, &productResolver{p})
	}
	return out
}

type clientResolver struct{ c sales.Client }

func (r *clientResolver) ID() graphql.ID          { return gid(r.c.ID) }
func (r *clientResolver) Name() string            { return r.c.Name }
func (r *clientResolver) Surname() string         { return r.c.Surname }
func (r *clientResolver) Company() string         { return r.c.Company }
func (r *clientResolver) Email() string           { return r.c.Email }
func (r *clientResolver) Owner() graphql.ID       { return gid(r.c.Owner) }
func (r *clientResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.c.CreatedAt} }
func (r *clientResolver) Phone() *string {
	if r.c.Phone == "" {
		return nil
	}
	return &r.c.Phone
}

func clients(cs []sales.Client) []*clientResolver {
	out := make([]*clientResolver, 0, len(cs))
	for _, c := range cs {
		out = append(out, &clientResolver{c})
	}
	return out
}

type lineItemResolver struct {
	svc *sales.Service
	it  sales.LineItem
}

func (r *lineItemResolver) ProductID() graphql.ID { return gid(r.it.ProductID) }
func (r *lineItemResolver) Quantity() int32       { return int32(r.it.Qty) }
func (r *lineItemResolver) Price() float64        { return toFloat(r.it.PriceCents) }

// Product is null once the product has been deleted from the catalogue.
func (r *lineItemResolver) Product(ctx context.Context) (*productResolver, error) {
	p, err := r.svc.Product(ctx, r.it.ProductID)
	if errors.Is(err, sales.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &productResolver{p}, nil
}

type orderResolver struct {
	svc *sales.Service
	o   sales.Order
}

func (r *orderResolver) ID() graphql.ID          { return gid(r.o.ID) }
func (r *orderResolver) ClientID() graphql.ID    { return gid(r.o.ClientID) }
func (r *orderResolver) Owner() graphql.ID       { return gid(r.o.Owner) }
func (r *orderResolver) Status() string          { return string(r.o.Status) }
func (r *orderResolver) Total() float64          { return toFloat(r.o.TotalCents) }
func (r *orderResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.o.CreatedAt} }

func (r *orderResolver) Items() []*lineItemResolver {
	out := make([]*lineItemResolver, 0, len(r.o.Items))
	for _, it := range r.o.Items {
		out = append(out, &lineItemResolver{svc: r.svc, it: it})
	}
	return out
}

// Client is resolved with the caller's rights; a deleted client resolves to null.
func (r *orderResolver) Client(ctx context.Context) (*clientResolver, error) {
	c, err := r.svc.Client(ctx, auth.FromContext(ctx), r.o.ClientID)
	if errors.Is(err, sales.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &clientResolver{c}, nil
}

func orders(svc *sales.Service, list []sales.Order) []*orderResolver {
	out := make([]*orderResolver, 0, len(list))
	for _, o := range list {
		out = append(out, &orderResolver{svc: svc, o: o})
	}
	return out
}

type topClientResolver struct{ r sales.ClientRank }

func (t *topClientResolver) Total() float64          { return toFloat(t.r.TotalCents) }
func (t *topClientResolver) Client() *clientResolver { return &clientResolver{t.r.Client} }

type topSalespersonResolver struct{ r sales.SalespersonRank }

func (t *topSalespersonResolver) Total() float64             { return toFloat(t.r.TotalCents) }
func (t *topSalespersonResolver) Salesperson() *userResolver { return &userResolver{t.r.Salesperson} }
