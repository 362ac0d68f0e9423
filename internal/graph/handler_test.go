package graph

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/ariefcatur/go-sales-graphql/internal/memstore"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type gqlError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

type testServer struct {
	t *testing.T
	h http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	iss := auth.NewIssuer("test-secret", time.Hour)
	svc := sales.NewService(memstore.New(), auth.Bcrypt{}, iss, zap.NewNop())
	h, err := NewHandler(svc, zap.NewNop())
	require.NoError(t, err)
	return &testServer{t: t, h: auth.Middleware(iss, zap.NewNop())(h)}
}

func (s *testServer) do(token, query string, vars map[string]interface{}, out interface{}) []gqlError {
	s.t.Helper()
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": vars})
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())

	var resp gqlResponse
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	if out != nil && len(resp.Errors) == 0 {
		require.NoError(s.t, json.Unmarshal(resp.Data, out))
	}
	return resp.Errors
}

func (s *testServer) mustDo(token, query string, vars map[string]interface{}, out interface{}) {
	s.t.Helper()
	errs := s.do(token, query, vars, out)
	require.Empty(s.t, errs)
}

func (s *testServer) signUp(name, email string) string {
	s.t.Helper()
	s.mustDo("", `mutation($in: UserInput!) { createUser(input: $in) { id } }`,
		map[string]interface{}{"in": map[string]interface{}{"name": name, "email": email, "password": "secret123"}}, nil)
	var out struct {
		Authenticate struct{ Token string }
	}
	s.mustDo("", `mutation($in: AuthInput!) { authenticate(input: $in) { token } }`,
		map[string]interface{}{"in": map[string]interface{}{"email": email, "password": "secret123"}}, &out)
	require.NotEmpty(s.t, out.Authenticate.Token)
	return out.Authenticate.Token
}

func (s *testServer) createProduct(token, name string, stock int, price float64) string {
	s.t.Helper()
	var out struct {
		CreateProduct struct{ ID string }
	}
	s.mustDo(token, `mutation($in: ProductInput!) { createProduct(input: $in) { id } }`,
		map[string]interface{}{"in": map[string]interface{}{"name": name, "stock": stock, "price": price}}, &out)
	return out.CreateProduct.ID
}

func (s *testServer) createClient(token, email string) string {
	s.t.Helper()
	var out struct {
		CreateClient struct{ ID string }
	}
	s.mustDo(token, `mutation($in: ClientInput!) { createClient(input: $in) { id } }`,
		map[string]interface{}{"in": map[string]interface{}{
			"name": "Dana", "surname": "Lee", "company": "Lee Co", "email": email,
		}}, &out)
	return out.CreateClient.ID
}

const placeOrder = `mutation($in: PlaceOrderInput!) {
	placeOrder(input: $in) {
		id status total owner
		client { email }
		items { quantity price product { name stock } }
	}
}`

func orderInput(client, product string, qty int) map[string]interface{} {
	return map[string]interface{}{"in": map[string]interface{}{
		"client": client,
		"items":  []interface{}{map[string]interface{}{"id": product, "quantity": qty}},
	}}
}

func TestSalesFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("Alice", "alice@example.com")

	var me struct{ Me struct{ Email string } }
	s.mustDo(alice, `{ me { email } }`, nil, &me)
	assert.Equal(t, "alice@example.com", me.Me.Email)

	product := s.createProduct(alice, "Laptop", 5, 12.5)
	client := s.createClient(alice, "dana@lee.test")

	var placed struct {
		PlaceOrder struct {
			ID     string
			Status string
			Total  float64
			Client struct{ Email string }
			Items  []struct {
				Quantity int
				Price    float64
				Product  struct {
					Name  string
					Stock int
				}
			}
		}
	}
	s.mustDo(alice, placeOrder, orderInput(client, product, 5), &placed)
	o := placed.PlaceOrder
	assert.Equal(t, "PENDING", o.Status)
	assert.InDelta(t, 62.5, o.Total, 0.001)
	assert.Equal(t, "dana@lee.test", o.Client.Email)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, 0, o.Items[0].Product.Stock)

	errs := s.do(alice, placeOrder, orderInput(client, product, 1), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInsufficientStock, errs[0].Extensions["code"])
	assert.Equal(t, product, errs[0].Extensions["productId"])
	assert.EqualValues(t, 1, errs[0].Extensions["requested"])
	assert.EqualValues(t, 0, errs[0].Extensions["available"])

	var revised struct {
		ReviseOrder struct{ Status string }
	}
	s.mustDo(alice, `mutation($id: ID!) { reviseOrder(id: $id, input: {status: COMPLETED}) { status } }`,
		map[string]interface{}{"id": o.ID}, &revised)
	assert.Equal(t, "COMPLETED", revised.ReviseOrder.Status)

	var top struct {
		TopClients []struct {
			Total  float64
			Client struct{ ID string }
		}
		TopSalespeople []struct {
			Total       float64
			Salesperson struct{ Email string }
		}
	}
	s.mustDo("", `{ topClients { total client { id } } topSalespeople { total salesperson { email } } }`, nil, &top)
	require.Len(t, top.TopClients, 1)
	assert.Equal(t, client, top.TopClients[0].Client.ID)
	assert.InDelta(t, 62.5, top.TopClients[0].Total, 0.001)
	require.Len(t, top.TopSalespeople, 1)
	assert.Equal(t, "alice@example.com", top.TopSalespeople[0].Salesperson.Email)

	var del struct{ DeleteOrder string }
	s.mustDo(alice, `mutation($id: ID!) { deleteOrder(id: $id) }`, map[string]interface{}{"id": o.ID}, &del)
	assert.Equal(t, "Order deleted", del.DeleteOrder)
}

func TestOwnershipErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("Alice", "alice@example.com")
	bob := s.signUp("Bob", "bob@example.com")

	product := s.createProduct(alice, "Desk", 3, 100)
	client := s.createClient(alice, "dana@lee.test")

	errs := s.do(bob, placeOrder, orderInput(client, product, 1), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotAuthorized, errs[0].Extensions["code"])

	errs = s.do(bob, `query($id: ID!) { client(id: $id) { id } }`, map[string]interface{}{"id": client}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotAuthorized, errs[0].Extensions["code"])

	errs = s.do("", `{ myClients { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotAuthorized, errs[0].Extensions["code"])

	errs = s.do("garbage-token", `{ myOrders { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotAuthorized, errs[0].Extensions["code"])

	var mine struct{ MyClients []struct{ ID string } }
	s.mustDo(bob, `{ myClients { id } }`, nil, &mine)
	assert.Empty(t, mine.MyClients)

	var p struct{ Product struct{ Stock int } }
	s.mustDo("", `query($id: ID!) { product(id: $id) { stock } }`, map[string]interface{}{"id": product}, &p)
	assert.Equal(t, 3, p.Product.Stock)
}

func TestInputErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("Alice", "alice@example.com")

	errs := s.do("", `mutation { createUser(input: {name: "A", email: "alice@example.com", password: "secret123"}) { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeAlreadyExists, errs[0].Extensions["code"])

	errs = s.do("", `mutation { authenticate(input: {email: "alice@example.com", password: "nope"}) { token } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidCredentials, errs[0].Extensions["code"])

	errs = s.do(alice, `mutation { createProduct(input: {name: "", stock: 1, price: 1}) { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidInput, errs[0].Extensions["code"])
	assert.Equal(t, "name", errs[0].Extensions["field"])

	errs = s.do(alice, `mutation { createProduct(input: {name: "Yacht", stock: 1, price: 1e300}) { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidInput, errs[0].Extensions["code"])
	assert.Equal(t, "price", errs[0].Extensions["field"])

	errs = s.do("", `query { product(id: "missing") { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotFound, errs[0].Extensions["code"])
}
