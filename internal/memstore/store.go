// Package memstore is an in-process sales.Store used by tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
)

type Store struct {
	mu       sync.RWMutex
	users    map[sales.ID]sales.User
	products map[sales.ID]sales.Product
	clients  map[sales.ID]sales.Client
	orders   map[sales.ID]sales.Order
}

var _ sales.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    map[sales.ID]sales.User{},
		products: map[sales.ID]sales.Product{},
		clients:  map[sales.ID]sales.Client{},
		orders:   map[sales.ID]sales.Order{},
	}
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u sales.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return &sales.AlreadyExistsError{Kind: sales.KindUser, Key: u.ID.String()}
	}
	for _, x := range s.users {
		if x.Email == u.Email {
			return &sales.AlreadyExistsError{Kind: sales.KindUser, Key: u.Email}
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByID(_ context.Context, id sales.ID) (sales.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return sales.User{}, sales.NotFound(sales.KindUser, id)
	}
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (sales.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return sales.User{}, sales.NotFound(sales.KindUser, sales.ID(email))
}

// ---- products ----

func (s *Store) CreateProduct(_ context.Context, p sales.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return &sales.AlreadyExistsError{Kind: sales.KindProduct, Key: p.ID.String()}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) Product(_ context.Context, id sales.ID) (sales.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return sales.Product{}, sales.NotFound(sales.KindProduct, id)
	}
	return p, nil
}

func (s *Store) Products(_ context.Context) ([]sales.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sales.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

// SearchProducts matches products whose name contains every word of text.
func (s *Store) SearchProducts(_ context.Context, text string, limit int) ([]sales.Product, error) {
	words := strings.Fields(strings.ToLower(text))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sales.Product
	for _, p := range s.products {
		name := strings.ToLower(p.Name)
		match := len(words) > 0
		for _, w := range words {
			if !strings.Contains(name, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, p)
		}
	}
	sortProducts(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, p sales.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return sales.NotFound(sales.KindProduct, p.ID)
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id sales.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return sales.NotFound(sales.KindProduct, id)
	}
	delete(s.products, id)
	return nil
}

// ---- clients ----

func (s *Store) CreateClient(_ context.Context, c sales.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return &sales.AlreadyExistsError{Kind: sales.KindClient, Key: c.ID.String()}
	}
	if s.clientEmailTaken(c.Email, c.ID) {
		return &sales.AlreadyExistsError{Kind: sales.KindClient, Key: c.Email}
	}
	s.clients[c.ID] = c
	return nil
}

func (s *Store) clientEmailTaken(email string, self sales.ID) bool {
	for _, x := range s.clients {
		if x.Email == email && x.ID != self {
			return true
		}
	}
	return false
}

func (s *Store) Client(_ context.Context, id sales.ID) (sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return sales.Client{}, sales.NotFound(sales.KindClient, id)
	}
	return c, nil
}

func (s *Store) ClientByEmail(_ context.Context, email string) (sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.Email == email {
			return c, nil
		}
	}
	return sales.Client{}, sales.NotFound(sales.KindClient, sales.ID(email))
}

func (s *Store) Clients(_ context.Context, f sales.ClientFilter) ([]sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sales.Client
	for _, c := range s.clients {
		if f.Owner == "" || c.Owner == f.Owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateClient(_ context.Context, c sales.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		return sales.NotFound(sales.KindClient, c.ID)
	}
	if s.clientEmailTaken(c.Email, c.ID) {
		return &sales.AlreadyExistsError{Kind: sales.KindClient, Key: c.Email}
	}
	s.clients[c.ID] = c
	return nil
}

func (s *Store) DeleteClient(_ context.Context, id sales.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return sales.NotFound(sales.KindClient, id)
	}
	delete(s.clients, id)
	return nil
}

// ---- orders ----

func (s *Store) Order(_ context.Context, id sales.ID) (sales.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return sales.Order{}, sales.NotFound(sales.KindOrder, id)
	}
	return cloneOrder(o), nil
}

func (s *Store) Orders(_ context.Context, f sales.OrderFilter) ([]sales.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sales.Order
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteOrder(_ context.Context, id sales.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return sales.NotFound(sales.KindOrder, id)
	}
	delete(s.orders, id)
	return nil
}

// CommitOrder validates every change under the write lock before touching anything.
func (s *Store) CommitOrder(_ context.Context, plan sales.Plan) (sales.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.orders[plan.Order.ID]
	switch {
	case plan.Replace && !exists:
		return sales.Order{}, sales.NotFound(sales.KindOrder, plan.Order.ID)
	case plan.Replace && cur.Version != plan.Order.Version-1:
		return sales.Order{}, &sales.ConflictError{Kind: sales.KindOrder, ID: plan.Order.ID}
	case !plan.Replace && exists:
		return sales.Order{}, &sales.AlreadyExistsError{Kind: sales.KindOrder, Key: plan.Order.ID.String()}
	}

	next := make(map[sales.ID]int, len(plan.Changes))
	for _, c := range plan.Changes {
		p, ok := s.products[c.ProductID]
		if !ok {
			if c.Delta > 0 {
				continue
			}
			return sales.Order{}, sales.NotFound(sales.KindProduct, c.ProductID)
		}
		stock, seen := next[p.ID]
		if !seen {
			stock = p.Stock
		}
		if stock+c.Delta < 0 {
			return sales.Order{}, &sales.InsufficientStockError{
				ProductID: p.ID, Name: p.Name, Requested: -c.Delta, Available: stock,
			}
		}
		next[p.ID] = stock + c.Delta
	}

	for id, stock := range next {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	o := cloneOrder(plan.Order)
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

// ---- reports ----

func (s *Store) TopClients(_ context.Context, limit int) ([]sales.ClientRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := s.completedTotals(func(o sales.Order) sales.ID { return o.ClientID })
	out := make([]sales.ClientRank, 0, len(totals))
	for _, t := range totals {
		c, ok := s.clients[t.key]
		if !ok {
			continue
		}
		out = append(out, sales.ClientRank{Client: c, TotalCents: t.total})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) TopSalespeople(_ context.Context, limit int) ([]sales.SalespersonRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := s.completedTotals(func(o sales.Order) sales.ID { return o.Owner })
	out := make([]sales.SalespersonRank, 0, len(totals))
	for _, t := range totals {
		u, ok := s.users[t.key]
		if !ok {
			continue
		}
		out = append(out, sales.SalespersonRank{Salesperson: u, TotalCents: t.total})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type groupTotal struct {
	key   sales.ID
	total int
}

// completedTotals groups COMPLETED orders by key, highest total first.
func (s *Store) completedTotals(key func(sales.Order) sales.ID) []groupTotal {
	sums := map[sales.ID]int{}
	for _, o := range s.orders {
		if o.Status == sales.StatusCompleted {
			sums[key(o)] += o.TotalCents
		}
	}
	out := make([]groupTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, groupTotal{key: k, total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].total != out[j].total {
			return out[i].total > out[j].total
		}
		return out[i].key < out[j].key
	})
	return out
}

func sortProducts(ps []sales.Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

func cloneOrder(o sales.Order) sales.Order {
	o.Items = append([]sales.LineItem(nil), o.Items...)
	return o
}
