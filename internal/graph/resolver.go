package graph

import (
	"context"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Resolver is the root of both Query and Mutation.
type Resolver struct {
	svc *sales.Service
	log *zap.Logger
}

func (r *Resolver) fail(ctx context.Context, op string, err error) error {
	werr := wrap(err)
	var e *Error
	if errors.As(werr, &e) && e.Code == CodeInternal {
		r.log.Error("resolver failed",
			zap.String("op", op),
			zap.String("caller", auth.FromContext(ctx).ID.String()),
			zap.Error(err))
	}
	return werr
}

func id(v graphql.ID) sales.ID { return sales.ID(v) }

// ---- queries ----

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	who, err := r.svc.Me(ctx, auth.FromContext(ctx))
	if err != nil {
		return nil, r.fail(ctx, "me", err)
	}
	return &userResolver{sales.User{ID: who.ID, Name: who.Name, Surname: who.Surname, Email: who.Email}}, nil
}

func (r *Resolver) Products(ctx context.Context) ([]*productResolver, error) {
	ps, err := r.svc.Products(ctx)
	if err != nil {
		return nil, r.fail(ctx, "products", err)
	}
	return products(ps), nil
}

func (r *Resolver) Product(ctx context.Context, args struct{ ID graphql.ID }) (*productResolver, error) {
	p, err := r.svc.Product(ctx, id(args.ID))
	if err != nil {
		return nil, r.fail(ctx, "product", err)
	}
	return &productResolver{p}, nil
}

func (r *Resolver) SearchProducts(ctx context.Context, args struct{ Text string }) ([]*productResolver, error) {
	ps, err := r.svc.SearchProducts(ctx, args.Text)
	if err != nil {
		return nil, r.fail(ctx, "searchProducts", err)
	}
	return products(ps), nil
}

func (r *Resolver) MyClients(ctx context.Context) ([]*clientResolver, error) {
	cs, err := r.svc.MyClients(ctx, auth.FromContext(ctx))
	if err != nil {
		return nil, r.fail(ctx, "myClients", err)
	}
	return clients(cs), nil
}

func (r *Resolver) Client(ctx context.Context, args struct{ ID graphql.ID }) (*clientResolver, error) {
	c, err := r.svc.Client(ctx, auth.FromContext(ctx), id(args.ID))
	if err != nil {
		return nil, r.fail(ctx, "client", err)
	}
	return &clientResolver{c}, nil
}

func (r *Resolver) MyOrders(ctx context.Context) ([]*orderResolver, error) {
	list, err := r.svc.MyOrders(ctx, auth.FromContext(ctx))
	if err != nil {
		return nil, r.fail(ctx, "myOrders", err)
	}
	return orders(r.svc, list), nil
}

func (r *Resolver) Order(ctx context.Context, args struct{ ID graphql.ID }) (*orderResolver, error) {
	o, err := r.svc.Order(ctx, auth.FromContext(ctx), id(args.ID))
	if err != nil {
		return nil, r.fail(ctx, "order", err)
	}
	return &orderResolver{svc: r.svc, o: o}, nil
}

func (r *Resolver) OrdersByStatus(ctx context.Context, args struct{ Status string }) ([]*orderResolver, error) {
	list, err := r.svc.OrdersByStatus(ctx, auth.FromContext(ctx), sales.Status(args.Status))
	if err != nil {
		return nil, r.fail(ctx, "ordersByStatus", err)
	}
	return orders(r.svc, list), nil
}

func (r *Resolver) TopClients(ctx context.Context) ([]*topClientResolver, error) {
	ranks, err := r.svc.TopClients(ctx)
	if err != nil {
		return nil, r.fail(ctx, "topClients", err)
	}
	out := make([]*topClientResolver, 0, len(ranks))
	for _, x := range ranks {
		out = append(out, &topClientResolver{x})
	}
	return out, nil
}

func (r *Resolver) TopSalespeople(ctx context.Context) ([]*topSalespersonResolver, error) {
	ranks, err := r.svc.TopSalespeople(ctx)
	if err != nil {
		return nil, r.fail(ctx, "topSalespeople", err)
	}
	out := make([]*topSalespersonResolver, 0, len(ranks))
	for _, x := range ranks {
		out = append(out, &topSalespersonResolver{x})
	}
	return out, nil
}

// ---- mutations: users ----

type userInput struct {
	Name     string
	Surname  *string
	Email    string
	Password string
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input userInput }) (*userResolver, error) {
	u, err := r.svc.CreateUser(ctx, sales.UserInput{
		Name:     args.Input.Name,
		Surname:  deref(args.Input.Surname),
		Email:    args.Input.Email,
		Password: args.Input.Password,
	})
	if err != nil {
		return nil, r.fail(ctx, "createUser", err)
	}
	return &userResolver{u}, nil
}

func (r *Resolver) Authenticate(ctx context.Context, args struct{ Input sales.Credentials }) (*tokenResolver, error) {
	token, err := r.svc.Authenticate(ctx, args.Input)
	if err != nil {
		return nil, r.fail(ctx, "authenticate", err)
	}
	return &tokenResolver{token}, nil
}

// ---- mutations: products ----

type productInput struct {
	Name  string
	Stock int32
	Price float64
}

type productPatch struct {
	Name  *string
	Stock *int32
	Price *float64
}

func (r *Resolver) CreateProduct(ctx context.Context, args struct{ Input productInput }) (*productResolver, error) {
	cents, err := sales.CentsFromAmount(args.Input.Price)
	if err != nil {
		return nil, r.fail(ctx, "createProduct", err)
	}
	p, err := r.svc.CreateProduct(ctx, auth.FromContext(ctx), sales.ProductInput{
		Name:       args.Input.Name,
		Stock:      int(args.Input.Stock),
		PriceCents: cents,
	})
	if err != nil {
		return nil, r.fail(ctx, "createProduct", err)
	}
	return &productResolver{p}, nil
}

func (r *Resolver) UpdateProduct(ctx context.Context, args struct {
	ID    graphql.ID
	Input productPatch
}) (*productResolver, error) {
	patch := sales.ProductPatch{Name: args.Input.Name}
	if args.Input.Stock != nil {
		v := int(*args.Input.Stock)
		patch.Stock = &v
	}
	if args.Input.Price != nil {
		v, err := sales.CentsFromAmount(*args.Input.Price)
		if err != nil {
			return nil, r.fail(ctx, "updateProduct", err)
		}
		patch.PriceCents = &v
	}
	p, err := r.svc.UpdateProduct(ctx, auth.FromContext(ctx), id(args.ID), patch)
	if err != nil {
		return nil, r.fail(ctx, "updateProduct", err)
	}
	return &productResolver{p}, nil
}

func (r *Resolver) DeleteProduct(ctx context.Context, args struct{ ID graphql.ID }) (string, error) {
	if err := r.svc.DeleteProduct(ctx, auth.FromContext(ctx), id(args.ID)); err != nil {
		return "", r.fail(ctx, "deleteProduct", err)
	}
	return "Product deleted", nil
}

// ---- mutations: clients ----

type clientInput struct {
	Name    string
	Surname string
	Company string
	Email   string
	Phone   *string
}

func (r *Resolver) CreateClient(ctx context.Context, args struct{ Input clientInput }) (*clientResolver, error) {
	c, err := r.svc.CreateClient(ctx, auth.FromContext(ctx), sales.ClientInput{
		Name:    args.Input.Name,
		Surname: args.Input.Surname,
		Company: args.Input.Company,
		Email:   args.Input.Email,
		Phone:   deref(args.Input.Phone),
	})
	if err != nil {
		return nil, r.fail(ctx, "createClient", err)
	}
	return &clientResolver{c}, nil
}

func (r *Resolver) UpdateClient(ctx context.Context, args struct {
	ID    graphql.ID
	Input sales.ClientPatch
}) (*clientResolver, error) {
	c, err := r.svc.UpdateClient(ctx, auth.FromContext(ctx), id(args.ID), args.Input)
	if err != nil {
		return nil, r.fail(ctx, "updateClient", err)
	}
	return &clientResolver{c}, nil
}

func (r *Resolver) DeleteClient(ctx context.Context, args struct{ ID graphql.ID }) (string, error) {
	if err := r.svc.DeleteClient(ctx, auth.FromContext(ctx), id(args.ID)); err != nil {
		return "", r.fail(ctx, "deleteClient", err)
	}
	return "Client deleted", nil
}

// ---- mutations: orders ----

type lineItemInput struct {
	ID       graphql.ID
	Quantity int32
}

type placeOrderInput struct {
	Client graphql.ID
	Items  []lineItemInput
}

type reviseOrderInput struct {
	Client *graphql.ID
	Items  *[]lineItemInput
	Status *string
}

func items(in []lineItemInput) []sales.ItemInput {
	out := make([]sales.ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, sales.ItemInput{ProductID: id(it.ID), Qty: int(it.Quantity)})
	}
	return out
}

func (r *Resolver) PlaceOrder(ctx context.Context, args struct{ Input placeOrderInput }) (*orderResolver, error) {
	o, err := r.svc.PlaceOrder(ctx, auth.FromContext(ctx), sales.PlaceOrderInput{
		ClientID: id(args.Input.Client),
		Items:    items(args.Input.Items),
	})
	if err != nil {
		return nil, r.fail(ctx, "placeOrder", err)
	}
	return &orderResolver{svc: r.svc, o: o}, nil
}

func (r *Resolver) ReviseOrder(ctx context.Context, args struct {
	ID    graphql.ID
	Input reviseOrderInput
}) (*orderResolver, error) {
	var in sales.ReviseOrderInput
	if args.Input.Client != nil {
		c := id(*args.Input.Client)
		in.ClientID = &c
	}
	if args.Input.Items != nil {
		in.Items = items(*args.Input.Items)
	}
	if args.Input.Status != nil {
		s := sales.Status(*args.Input.Status)
		in.Status = &s
	}
	o, err := r.svc.ReviseOrder(ctx, auth.FromContext(ctx), id(args.ID), in)
	if err != nil {
		return nil, r.fail(ctx, "reviseOrder", err)
	}
	return &orderResolver{svc: r.svc, o: o}, nil
}

func (r *Resolver) DeleteOrder(ctx context.Context, args struct{ ID graphql.ID }) (string, error) {
	if err := r.svc.DeleteOrder(ctx, auth.FromContext(ctx), id(args.ID)); err != nil {
		return "", r.fail(ctx, "deleteOrder", err)
	}
	return "Order deleted", nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
