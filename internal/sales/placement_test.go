package sales_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-sales-graphql/internal/memstore"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderReservesStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Laptop", 5, 1250)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 5)})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPending, o.Status)
	assert.Equal(t, f.alice.ID, o.Owner)
	assert.Equal(t, c.ID, o.ClientID)
	assert.Equal(t, 5*1250, o.TotalCents)
	assert.Equal(t, []sales.LineItem{{ProductID: p.ID, Qty: 5, PriceCents: 1250}}, o.Items)
	assert.Equal(t, 0, f.stock(t, p.ID))

	_, err = f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 1)})
	require.ErrorIs(t, err, sales.ErrInsufficientStock)
	var ins *sales.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, p.ID, ins.ProductID)
	assert.Equal(t, 1, ins.Requested)
	assert.Equal(t, 0, ins.Available)
}

func TestPlaceOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 100)
	b := f.product(t, "B", 1, 100)
	c := f.client(t, f.alice)

	_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(a.ID, 2, b.ID, 1000)})
	require.ErrorIs(t, err, sales.ErrInsufficientStock)

	assert.Equal(t, 10, f.stock(t, a.ID))
	assert.Equal(t, 1, f.stock(t, b.ID))
	mine, err := f.svc.MyOrders(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Empty(t, f.pub.types())
}

func TestPlaceOrderCountsRepeatedLines(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", 3, 100)
	c := f.client(t, f.alice)

	_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 2, p.ID, 2)})
	var ins *sales.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, 4, ins.Requested)
	assert.Equal(t, 3, ins.Available)
	assert.Equal(t, 3, f.stock(t, p.ID))
}

func TestPlaceOrderForeignClient(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Desk", 4, 100)
	theirs := f.client(t, f.bob)

	_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: theirs.ID, Items: items(p.ID, 1)})
	require.ErrorIs(t, err, sales.ErrNotAuthorized)
	assert.Equal(t, 4, f.stock(t, p.ID))

	_, err = f.svc.PlaceOrder(f.ctx, sales.Identity{}, sales.PlaceOrderInput{ClientID: theirs.ID, Items: items(p.ID, 1)})
	require.ErrorIs(t, err, sales.ErrNotAuthorized)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Chair", 4, 100)
	c := f.client(t, f.alice)

	cases := map[string]sales.PlaceOrderInput{
		"no items":     {ClientID: c.ID},
		"zero qty":     {ClientID: c.ID, Items: items(p.ID, 0)},
		"negative qty": {ClientID: c.ID, Items: items(p.ID, -2)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(f.ctx, f.alice, in)
			require.ErrorIs(t, err, sales.ErrInvalidInput)
		})
	}

	_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(sales.ID("missing"), 1)})
	require.ErrorIs(t, err, sales.ErrNotFound)
	_, err = f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: "missing", Items: items(p.ID, 1)})
	require.ErrorIs(t, err, sales.ErrNotFound)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestPlacedOrderReadsBack(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 199)
	b := f.product(t, "B", 10, 1)
	c := f.client(t, f.alice)

	placed, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(a.ID, 2, b.ID, 3)})
	require.NoError(t, err)

	got, err := f.svc.Order(f.ctx, f.alice, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed, got)
	assert.Equal(t, 2*199+3*1, got.TotalCents)

	_, err = f.svc.Order(f.ctx, f.bob, placed.ID)
	require.ErrorIs(t, err, sales.ErrNotAuthorized)

	assert.Equal(t, []string{sales.EventOrderPlaced}, f.pub.types())
	assert.Equal(t, placed.ID.String(), f.pub.events[0].CorrelationID)
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Limited", 10, 100)
	c := f.client(t, f.alice)

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 1)})
			if err == nil {
				ok.Add(1)
				return
			}
			assert.ErrorIs(t, err, sales.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.Equal(t, 0, f.stock(t, p.ID))
	mine, err := f.svc.MyOrders(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, mine, 10)
}

func TestReviseOrderReservesOnlyTheDifference(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cable", 5, 50)
	q := f.product(t, "Plug", 5, 20)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, p.ID))

	// 3 held + 2 on the shelf
	o, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 5)})
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, p.ID))
	assert.Equal(t, 5*50, o.TotalCents)

	o, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 1, q.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, p.ID))
	assert.Equal(t, 3, f.stock(t, q.ID))
	assert.Equal(t, 50+2*20, o.TotalCents)
	assert.Equal(t, sales.StatusPending, o.Status)
}

func TestReviseOrderInsufficientLeavesOrderAlone(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cable", 5, 50)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)

	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 6)})
	var ins *sales.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, 6, ins.Requested)
	assert.Equal(t, 5, ins.Available)

	assert.Equal(t, 2, f.stock(t, p.ID))
	got, err := f.svc.Order(f.ctx, f.alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestCancelReleasesStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)

	canceled := sales.StatusCanceled
	o, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Status: &canceled})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCanceled, o.Status)
	assert.Equal(t, 5, f.stock(t, p.ID))

	// terminal
	pending := sales.StatusPending
	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Status: &pending})
	require.ErrorIs(t, err, sales.ErrInvalidInput)
	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 1)})
	require.ErrorIs(t, err, sales.ErrInvalidInput)
	assert.Equal(t, 5, f.stock(t, p.ID))
}

// lockstepStore holds every order read until all expected readers have arrived, so
// revisions all start from the same stored version.
type lockstepStore struct {
	*memstore.Store
	arrived sync.WaitGroup
}

func (s *lockstepStore) Order(ctx context.Context, id sales.ID) (sales.Order, error) {
	o, err := s.Store.Order(ctx, id)
	s.arrived.Done()
	s.arrived.Wait()
	return o, err
}

func reviseTogether(t *testing.T, f *fixture, id sales.ID, ins ...sales.ReviseOrderInput) []error {
	t.Helper()
	store := &lockstepStore{Store: f.store}
	store.arrived.Add(len(ins))
	svc := sales.NewService(store, plainHasher{}, staticTokens{}, nil)

	errs := make([]error, len(ins))
	var wg sync.WaitGroup
	for i, in := range ins {
		wg.Add(1)
		go func(i int, in sales.ReviseOrderInput) {
			defer wg.Done()
			_, errs[i] = svc.ReviseOrder(f.ctx, f.alice, id, in)
		}(i, in)
	}
	wg.Wait()
	return errs
}

func oneSucceeds(t *testing.T, errs []error) {
	t.Helper()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, sales.ErrConflict)
	}
	assert.Equal(t, 1, ok, "errs=%v", errs)
}

func TestConcurrentCancelsReleaseStockOnce(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	c := f.client(t, f.alice)
	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, p.ID))

	canceled := sales.StatusCanceled
	errs := reviseTogether(t, f, o.ID,
		sales.ReviseOrderInput{Status: &canceled},
		sales.ReviseOrderInput{Status: &canceled},
	)
	oneSucceeds(t, errs)
	assert.Equal(t, 5, f.stock(t, p.ID))

	got, err := f.svc.Order(f.ctx, f.alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCanceled, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestConcurrentItemRevisionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	c := f.client(t, f.alice)
	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)

	errs := reviseTogether(t, f, o.ID,
		sales.ReviseOrderInput{Items: items(p.ID, 1)},
		sales.ReviseOrderInput{Items: items(p.ID, 1)},
	)
	oneSucceeds(t, errs)
	assert.Equal(t, 4, f.stock(t, p.ID))

	// the loser can retry against the fresh version
	got, err := f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, 3, f.stock(t, p.ID))
}

func TestOrderTotalIsBounded(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Yacht", 1<<30, sales.MaxPriceCents)
	c := f.client(t, f.alice)

	_, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 1<<30)})
	var inv *sales.InvalidInputError
	require.True(t, errors.As(err, &inv), "got %v", err)
	assert.Equal(t, "items", inv.Field)
	assert.Equal(t, 1<<30, f.stock(t, p.ID))

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, 2*sales.MaxPriceCents, o.TotalCents)
}

func TestCompleteKeepsStockReserved(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 3)})
	require.NoError(t, err)

	completed := sales.StatusCompleted
	o, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCompleted, o.Status)
	assert.Equal(t, 2, f.stock(t, p.ID))

	// same status again is a no-op
	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Status: &completed})
	require.NoError(t, err)

	bogus := sales.Status("SHIPPED")
	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{Status: &bogus})
	require.ErrorIs(t, err, sales.ErrInvalidInput)
}

func TestReviseOrderOwnership(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	mine := f.client(t, f.alice)
	theirs := f.client(t, f.bob)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: mine.ID, Items: items(p.ID, 1)})
	require.NoError(t, err)

	_, err = f.svc.ReviseOrder(f.ctx, f.bob, o.ID, sales.ReviseOrderInput{Items: items(p.ID, 2)})
	require.ErrorIs(t, err, sales.ErrNotAuthorized)

	_, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{ClientID: &theirs.ID})
	require.ErrorIs(t, err, sales.ErrNotAuthorized)

	_, err = f.svc.ReviseOrder(f.ctx, f.alice, "missing", sales.ReviseOrderInput{})
	require.ErrorIs(t, err, sales.ErrNotFound)

	other := f.client(t, f.alice)
	o, err = f.svc.ReviseOrder(f.ctx, f.alice, o.ID, sales.ReviseOrderInput{ClientID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.ID, o.ClientID)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestDeleteOrderKeepsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", 5, 300)
	c := f.client(t, f.alice)

	o, err := f.svc.PlaceOrder(f.ctx, f.alice, sales.PlaceOrderInput{ClientID: c.ID, Items: items(p.ID, 2)})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteOrder(f.ctx, f.bob, o.ID), sales.ErrNotAuthorized)
	require.NoError(t, f.svc.DeleteOrder(f.ctx, f.alice, o.ID))

	_, err = f.svc.Order(f.ctx, f.alice, o.ID)
	require.ErrorIs(t, err, sales.ErrNotFound)
	assert.Equal(t, 3, f.stock(t, p.ID))
	assert.Equal(t, []string{sales.EventOrderPlaced, sales.EventOrderDeleted}, f.pub.types())
}
