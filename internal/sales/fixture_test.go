package sales_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ariefcatur/go-sales-graphql/internal/memstore"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }

func (plainHasher) Compare(hash, p string) error {
	if hash != "h:"+p {
		return errors.New("password mismatch")
	}
	return nil
}

type staticTokens struct{}

func (staticTokens) Issue(id sales.Identity) (string, error) { return "token-" + id.ID.String(), nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []sales.Envelope
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev sales.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	ctx   context.Context
	svc   *sales.Service
	store *memstore.Store
	pub   *recordingPublisher
	alice sales.Identity
	bob   sales.Identity
	n     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{
		ctx:   context.Background(),
		svc:   sales.NewService(store, plainHasher{}, staticTokens{}, nil),
		store: store,
		pub:   &recordingPublisher{},
	}
	f.svc.Publisher = f.pub
	f.alice = f.user(t, "Alice", "alice@example.com")
	f.bob = f.user(t, "Bob", "bob@example.com")
	return f
}

func (f *fixture) user(t *testing.T, name, email string) sales.Identity {
	t.Helper()
	u, err := f.svc.CreateUser(f.ctx, sales.UserInput{Name: name, Email: email, Password: "secret123"})
	require.NoError(t, err)
	return u.Identity()
}

func (f *fixture) product(t *testing.T, name string, stock, priceCents int) sales.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, f.alice, sales.ProductInput{Name: name, Stock: stock, PriceCents: priceCents})
	require.NoError(t, err)
	return p
}

func (f *fixture) client(t *testing.T, owner sales.Identity) sales.Client {
	t.Helper()
	f.n++
	c, err := f.svc.CreateClient(f.ctx, owner, sales.ClientInput{
		Name:    "Client",
		Surname: fmt.Sprint(f.n),
		Company: "ACME",
		Email:   fmt.Sprintf("client%d@acme.test", f.n),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) stock(t *testing.T, id sales.ID) int {
	t.Helper()
	p, err := f.store.Product(f.ctx, id)
	require.NoError(t, err)
	return p.Stock
}

func items(pairs ...any) []sales.ItemInput {
	out := make([]sales.ItemInput, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, sales.ItemInput{ProductID: pairs[i].(sales.ID), Qty: pairs[i+1].(int)})
	}
	return out
}
