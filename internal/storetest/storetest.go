// Package storetest holds the behaviour every sales.Store backend must share.
// Backends call Run from their own tests with a constructor for an empty store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the suite; open must return a store with no data in it.
func Run(t *testing.T, open func(t *testing.T) sales.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Products", func(t *testing.T) { testProducts(t, open(t)) })
	t.Run("Clients", func(t *testing.T) { testClients(t, open(t)) })
	t.Run("CommitOrder", func(t *testing.T) { testCommitOrder(t, open(t)) })
	t.Run("ReviseAndDelete", func(t *testing.T) { testReviseAndDelete(t, open(t)) })
	t.Run("ConcurrentRevisions", func(t *testing.T) { testConcurrentRevisions(t, open(t)) })
	t.Run("AbortedCommit", func(t *testing.T) { testAbortedCommit(t, open(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, open(t)) })
}

// now is truncated so backends with microsecond timestamps round-trip it.
func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func testUsers(t *testing.T, s sales.Store) {
	ctx := context.Background()
	u := sales.User{ID: sales.NewID(), Name: "Alice", Email: "alice@example.com", PasswordHash: "h", CreatedAt: now()}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "h", got.PasswordHash)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	dup := sales.User{ID: sales.NewID(), Name: "Other", Email: "alice@example.com", CreatedAt: now()}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), sales.ErrAlreadyExists)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, sales.ErrNotFound)
	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, sales.ErrNotFound)
}

func testProducts(t *testing.T, s sales.Store) {
	ctx := context.Background()
	pen := sales.Product{ID: sales.NewID(), Name: "Blue Pen", Stock: 10, PriceCents: 250, CreatedAt: now()}
	pad := sales.Product{ID: sales.NewID(), Name: "Note Pad", Stock: 3, PriceCents: 400, CreatedAt: now()}
	require.NoError(t, s.CreateProduct(ctx, pen))
	require.NoError(t, s.CreateProduct(ctx, pad))

	all, err := s.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := s.SearchProducts(ctx, "pen", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pen.ID, found[0].ID)

	pen.Stock, pen.PriceCents = 7, 300
	require.NoError(t, s.UpdateProduct(ctx, pen))
	got, err := s.Product(ctx, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
	assert.Equal(t, 300, got.PriceCents)

	require.NoError(t, s.DeleteProduct(ctx, pad.ID))
	_, err = s.Product(ctx, pad.ID)
	assert.ErrorIs(t, err, sales.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, pad.ID), sales.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProduct(ctx, pad), sales.ErrNotFound)
}

func testClients(t *testing.T, s sales.Store) {
	ctx := context.Background()
	a := sales.Client{ID: sales.NewID(), Name: "A", Surname: "A", Company: "X", Email: "a@x.test", Owner: "u-1", CreatedAt: now()}
	b := sales.Client{ID: sales.NewID(), Name: "B", Surname: "B", Company: "X", Email: "b@x.test", Owner: "u-2", CreatedAt: now()}
	require.NoError(t, s.CreateClient(ctx, a))
	require.NoError(t, s.CreateClient(ctx, b))

	dup := a
	dup.ID = sales.NewID()
	assert.ErrorIs(t, s.CreateClient(ctx, dup), sales.ErrAlreadyExists)

	got, err := s.ClientByEmail(ctx, "b@x.test")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	mine, err := s.Clients(ctx, sales.ClientFilter{Owner: "u-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	b.Email = "a@x.test"
	assert.ErrorIs(t, s.UpdateClient(ctx, b), sales.ErrAlreadyExists)
	b.Email, b.Company = "b@x.test", "Y"
	require.NoError(t, s.UpdateClient(ctx, b))
	got, err = s.Client(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Y", got.Company)

	require.NoError(t, s.DeleteClient(ctx, a.ID))
	_, err = s.Client(ctx, a.ID)
	assert.ErrorIs(t, err, sales.ErrNotFound)
}

func order(owner, client sales.ID, status sales.Status, items ...sales.LineItem) sales.Order {
	total := 0
	for _, it := range items {
		total += it.Qty * it.PriceCents
	}
	return sales.Order{
		ID: sales.NewID(), ClientID: client, Owner: owner, Status: status,
		Items: items, TotalCents: total, CreatedAt: now(), Version: 1,
	}
}

func stockOf(t *testing.T, s sales.Store, id sales.ID) int {
	t.Helper()
	p, err := s.Product(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func testCommitOrder(t *testing.T, s sales.Store) {
	ctx := context.Background()
	a := sales.Product{ID: sales.NewID(), Name: "A", Stock: 10, PriceCents: 100, CreatedAt: now()}
	b := sales.Product{ID: sales.NewID(), Name: "B", Stock: 1, PriceCents: 100, CreatedAt: now()}
	require.NoError(t, s.CreateProduct(ctx, a))
	require.NoError(t, s.CreateProduct(ctx, b))

	o := order("u-1", "c-1", sales.StatusPending, sales.LineItem{ProductID: a.ID, Qty: 4, PriceCents: 100})
	saved, err := s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: -4}},
		Order:   o,
	})
	require.NoError(t, err)
	assert.Equal(t, o.ID, saved.ID)
	assert.Equal(t, 6, stockOf(t, s, a.ID))

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, 400, got.TotalCents)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))

	// second change fails: the first must not stick
	bad := order("u-1", "c-1", sales.StatusPending)
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: -2}, {ProductID: b.ID, Delta: -5}},
		Order:   bad,
	})
	var ins *sales.InsufficientStockError
	require.True(t, errors.As(err, &ins), "got %v", err)
	assert.Equal(t, b.ID, ins.ProductID)
	assert.Equal(t, 1, ins.Available)
	assert.Equal(t, 6, stockOf(t, s, a.ID))
	assert.Equal(t, 1, stockOf(t, s, b.ID))
	_, err = s.Order(ctx, bad.ID)
	assert.ErrorIs(t, err, sales.ErrNotFound)

	_, err = s.CommitOrder(ctx, sales.Plan{Order: o})
	assert.ErrorIs(t, err, sales.ErrAlreadyExists)

	_, err = s.CommitOrder(ctx, sales.Plan{Order: order("u-1", "c-1", sales.StatusPending), Replace: true})
	assert.ErrorIs(t, err, sales.ErrNotFound)

	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: "missing", Delta: -1}},
		Order:   order("u-1", "c-1", sales.StatusPending),
	})
	assert.ErrorIs(t, err, sales.ErrNotFound)

	// giving stock back to a deleted product is dropped
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: "missing", Delta: 3}, {ProductID: a.ID, Delta: 1}},
		Order:   order("u-1", "c-1", sales.StatusPending),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, stockOf(t, s, a.ID))
}

func testReviseAndDelete(t *testing.T, s sales.Store) {
	ctx := context.Background()
	p := sales.Product{ID: sales.NewID(), Name: "P", Stock: 5, PriceCents: 100, CreatedAt: now()}
	require.NoError(t, s.CreateProduct(ctx, p))

	o := order("u-1", "c-1", sales.StatusPending, sales.LineItem{ProductID: p.ID, Qty: 2, PriceCents: 100})
	_, err := s.CommitOrder(ctx, sales.Plan{Changes: []sales.StockChange{{ProductID: p.ID, Delta: -2}}, Order: o})
	require.NoError(t, err)
	other := order("u-2", "c-2", sales.StatusPending)
	_, err = s.CommitOrder(ctx, sales.Plan{Order: other})
	require.NoError(t, err)

	o.Status = sales.StatusCanceled
	o.ClientID = "c-9"
	o.Version = 2
	_, err = s.CommitOrder(ctx, sales.Plan{Changes: []sales.StockChange{{ProductID: p.ID, Delta: 2}}, Order: o, Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, s, p.ID))

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCanceled, got.Status)
	assert.Equal(t, sales.ID("c-9"), got.ClientID)
	assert.Equal(t, 2, got.Version)

	list, err := s.Orders(ctx, sales.OrderFilter{Owner: "u-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = s.Orders(ctx, sales.OrderFilter{Owner: "u-2", Status: sales.StatusCanceled})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteOrder(ctx, o.ID))
	_, err = s.Order(ctx, o.ID)
	assert.ErrorIs(t, err, sales.ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, o.ID), sales.ErrNotFound)
}

// Two revisions read the same order version; only one may move stock.
func testConcurrentRevisions(t *testing.T, s sales.Store) {
	ctx := context.Background()
	p := sales.Product{ID: sales.NewID(), Name: "P", Stock: 5, PriceCents: 100, CreatedAt: now()}
	require.NoError(t, s.CreateProduct(ctx, p))

	o := order("u-1", "c-1", sales.StatusPending, sales.LineItem{ProductID: p.ID, Qty: 3, PriceCents: 100})
	_, err := s.CommitOrder(ctx, sales.Plan{Changes: []sales.StockChange{{ProductID: p.ID, Delta: -3}}, Order: o})
	require.NoError(t, err)
	require.Equal(t, 2, stockOf(t, s, p.ID))

	canceled := o
	canceled.Status = sales.StatusCanceled
	canceled.Version = 2

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CommitOrder(ctx, sales.Plan{
				Changes: []sales.StockChange{{ProductID: p.ID, Delta: 3}},
				Order:   canceled,
				Replace: true,
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, sales.ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 5, stockOf(t, s, p.ID))

	// a revision built from the old version is refused as well
	stale := o
	stale.Items = []sales.LineItem{{ProductID: p.ID, Qty: 1, PriceCents: 100}}
	stale.Version = 2
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: p.ID, Delta: 2}},
		Order:   stale,
		Replace: true,
	})
	var ce *sales.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, o.ID, ce.ID)
	assert.Equal(t, 5, stockOf(t, s, p.ID))

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCanceled, got.Status)
	assert.Equal(t, 2, got.Version)
}

// A commit that fails after some of its work went through must leave no trace.
func testAbortedCommit(t *testing.T, s sales.Store) {
	ctx := context.Background()
	a := sales.Product{ID: sales.NewID(), Name: "A", Stock: 10, PriceCents: 100, CreatedAt: now()}
	b := sales.Product{ID: sales.NewID(), Name: "B", Stock: 2, PriceCents: 100, CreatedAt: now()}
	require.NoError(t, s.CreateProduct(ctx, a))
	require.NoError(t, s.CreateProduct(ctx, b))

	o := order("u-1", "c-1", sales.StatusPending, sales.LineItem{ProductID: a.ID, Qty: 1, PriceCents: 100})
	_, err := s.CommitOrder(ctx, sales.Plan{Changes: []sales.StockChange{{ProductID: a.ID, Delta: -1}}, Order: o})
	require.NoError(t, err)
	require.Equal(t, 9, stockOf(t, s, a.ID))

	// stock applies, then the insert hits the existing id
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: -4}},
		Order:   o,
	})
	assert.ErrorIs(t, err, sales.ErrAlreadyExists)
	assert.Equal(t, 9, stockOf(t, s, a.ID))

	// the order is swapped, then the second stock change fails
	revised := o
	revised.Items = []sales.LineItem{
		{ProductID: a.ID, Qty: 3, PriceCents: 100},
		{ProductID: b.ID, Qty: 5, PriceCents: 100},
	}
	revised.TotalCents = 800
	revised.Version = 2
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: -2}, {ProductID: b.ID, Delta: -5}},
		Order:   revised,
		Replace: true,
	})
	assert.ErrorIs(t, err, sales.ErrInsufficientStock)
	assert.Equal(t, 9, stockOf(t, s, a.ID))
	assert.Equal(t, 2, stockOf(t, s, b.ID))

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, 100, got.TotalCents)

	// the restored order still takes a revision from version 1
	revised.Items = revised.Items[:1]
	revised.TotalCents = 300
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: -2}},
		Order:   revised,
		Replace: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, stockOf(t, s, a.ID))

	// revising an order deleted in the meantime moves no stock
	require.NoError(t, s.DeleteOrder(ctx, o.ID))
	revised.Version = 3
	_, err = s.CommitOrder(ctx, sales.Plan{
		Changes: []sales.StockChange{{ProductID: a.ID, Delta: 3}},
		Order:   revised,
		Replace: true,
	})
	assert.ErrorIs(t, err, sales.ErrNotFound)
	assert.Equal(t, 7, stockOf(t, s, a.ID))
}

func testReports(t *testing.T, s sales.Store) {
	ctx := context.Background()
	users := []sales.User{
		{ID: sales.NewID(), Name: "U1", Email: "u1@example.com", CreatedAt: now()},
		{ID: sales.NewID(), Name: "U2", Email: "u2@example.com", CreatedAt: now()},
	}
	for _, u := range users {
		require.NoError(t, s.CreateUser(ctx, u))
	}
	var clients []sales.Client
	for i, email := range []string{"c1@x.test", "c2@x.test", "c3@x.test"} {
		c := sales.Client{ID: sales.NewID(), Name: "C", Surname: "C", Company: "X", Email: email, Owner: users[i%2].ID, CreatedAt: now()}
		require.NoError(t, s.CreateClient(ctx, c))
		clients = append(clients, c)
	}

	commit := func(c sales.Client, status sales.Status, cents int) {
		o := order(c.Owner, c.ID, status, sales.LineItem{ProductID: "p", Qty: 1, PriceCents: cents})
		_, err := s.CommitOrder(ctx, sales.Plan{Order: o})
		require.NoError(t, err)
	}
	commit(clients[0], sales.StatusCompleted, 100) // u1
	commit(clients[0], sales.StatusCompleted, 150) // u1
	commit(clients[1], sales.StatusCompleted, 900) // u2
	commit(clients[2], sales.StatusCompleted, 50)  // u1
	commit(clients[2], sales.StatusPending, 10000)
	commit(clients[1], sales.StatusCanceled, 10000)

	top, err := s.TopClients(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, clients[1].ID, top[0].Client.ID)
	assert.Equal(t, 900, top[0].TotalCents)
	assert.Equal(t, clients[0].ID, top[1].Client.ID)
	assert.Equal(t, 250, top[1].TotalCents)

	people, err := s.TopSalespeople(ctx, 3)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, users[1].ID, people[0].Salesperson.ID)
	assert.Equal(t, 900, people[0].TotalCents)
	assert.Equal(t, 300, people[1].TotalCents)
}
