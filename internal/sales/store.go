package sales

import "context"

// Store is the persistence boundary. Lookups of missing ids return *NotFoundError and
// uniqueness violations on insert return *AlreadyExistsError.
type Store interface {
	UserStore
	ProductStore
	ClientStore
	OrderStore
	ReportStore
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	UserByID(ctx context.Context, id ID) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p Product) error
	Product(ctx context.Context, id ID) (Product, error)
	Products(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, text string, limit int) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id ID) error
}

type ClientStore interface {
	CreateClient(ctx context.Context, c Client) error
	Client(ctx context.Context, id ID) (Client, error)
	ClientByEmail(ctx context.Context, email string) (Client, error)
	Clients(ctx context.Context, f ClientFilter) ([]Client, error)
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id ID) error
}

type OrderStore interface {
	Order(ctx context.Context, id ID) (Order, error)
	Orders(ctx context.Context, f OrderFilter) ([]Order, error)
	DeleteOrder(ctx context.Context, id ID) error
	// CommitOrder applies every stock change and writes the order as one unit.
	// A change that would drive stock below zero fails the whole commit with
	// *InsufficientStockError. Credits to products that no longer exist are dropped.
	// A Replace whose expected version is stale fails with *ConflictError before
	// any stock moves.
	CommitOrder(ctx context.Context, plan Plan) (Order, error)
}

// ReportStore aggregates COMPLETED orders, highest total first.
type ReportStore interface {
	TopClients(ctx context.Context, limit int) ([]ClientRank, error)
	TopSalespeople(ctx context.Context, limit int) ([]SalespersonRank, error)
}

// StockChange adds Delta to a product's stock. Negative deltas reserve stock.
type StockChange struct {
	ProductID ID
	Delta     int
}

// Plan is a validated order placement or revision waiting to be committed.
type Plan struct {
	Changes []StockChange
	Order   Order
	// Replace overwrites an existing order instead of inserting a new one. It only
	// goes through while the stored order is at Order.Version-1.
	Replace bool
}
