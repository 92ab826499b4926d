package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhhieu1/electronic-store/internal/domain/auth"
	"github.com/minhhieu1/electronic-store/internal/domain/basket"
	"github.com/minhhieu1/electronic-store/internal/domain/deal"
	"github.com/minhhieu1/electronic-store/internal/domain/discount"
	"github.com/minhhieu1/electronic-store/internal/domain/order"
	"github.com/minhhieu1/electronic-store/internal/domain/product"
	"github.com/minhhieu1/electronic-store/internal/domain/stock"
)

const (
	testPepper   = "test-pepper"
	customerKey  = "customer-secret"
	adminKey     = "admin-secret"
	customerUser = "u1"
)

// --- in-memory stores backing the full HTTP stack ---

type memProducts struct {
	products map[string]*product.Product
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) DecrementStock(_ context.Context, id string, qty int) error {
	p, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return product.ErrStockConflict
	}
	p.Stock -= qty
	return nil
}

func (m *memProducts) IncrementStock(_ context.Context, id string, qty int) error {
	p, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock += qty
	return nil
}

type memBaskets struct {
	baskets []*basket.Basket
}

func (m *memBaskets) newest(userID string) *basket.Basket {
	for i := len(m.baskets) - 1; i >= 0; i-- {
		if m.baskets[i].UserID == userID {
			return m.baskets[i]
		}
	}
	return nil
}

func copyBasket(b *basket.Basket) *basket.Basket {
	cp := *b
	cp.Items = append([]basket.Item(nil), b.Items...)
	return &cp
}

func (m *memBaskets) GetActiveByUser(_ context.Context, userID string) (*basket.Basket, error) {
	for i := len(m.baskets) - 1; i >= 0; i-- {
		b := m.baskets[i]
		if b.UserID == userID && b.Status == basket.StatusActive {
			return copyBasket(b), nil
		}
	}
	return nil, basket.ErrNotFound
}

func (m *memBaskets) GetNewestByUser(_ context.Context, userID string) (*basket.Basket, error) {
	b := m.newest(userID)
	if b == nil {
		return nil, basket.ErrNotFound
	}
	return copyBasket(b), nil
}

func (m *memBaskets) CreateActive(_ context.Context, userID string) (*basket.Basket, error) {
	for _, b := range m.baskets {
		if b.UserID == userID && b.Status == basket.StatusActive {
			b.Status = basket.StatusExpired
		}
	}
	b := &basket.Basket{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    basket.StatusActive,
		CreatedAt: time.Now(),
	}
	m.baskets = append(m.baskets, b)
	return copyBasket(b), nil
}

func (m *memBaskets) byID(basketID string) *basket.Basket {
	for _, b := range m.baskets {
		if b.ID == basketID {
			return b
		}
	}
	return nil
}

func (m *memBaskets) UpsertItem(_ context.Context, basketID, productID string, qty int) error {
	b := m.byID(basketID)
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			b.Items[i].Quantity = qty
			return nil
		}
	}
	b.Items = append(b.Items, basket.Item{BasketID: basketID, ProductID: productID, Quantity: qty})
	return nil
}

func (m *memBaskets) DeleteItem(_ context.Context, basketID, productID string) (bool, error) {
	b := m.byID(basketID)
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memBaskets) ClearItems(_ context.Context, basketID string) error {
	m.byID(basketID).Items = nil
	return nil
}

func (m *memBaskets) TransitionStatus(_ context.Context, basketID string, from, to basket.Status) error {
	b := m.byID(basketID)
	if b == nil {
		return basket.ErrNotFound
	}
	if b.Status != from {
		return &basket.InvalidStateError{Status: b.Status}
	}
	b.Status = to
	return nil
}

type memDeals struct {
	types map[string]deal.Type
	deals []deal.Deal
}

func (m *memDeals) ActiveForProducts(_ context.Context, productIDs []string, now time.Time) (map[string][]deal.Deal, error) {
	ids := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		ids[id] = struct{}{}
	}
	out := make(map[string][]deal.Deal)
	for _, d := range m.deals {
		if _, ok := ids[d.ProductID]; ok && d.ActiveAt(now) {
			out[d.ProductID] = append(out[d.ProductID], d)
		}
	}
	return out, nil
}

func (m *memDeals) Create(_ context.Context, d *deal.Deal) error {
	for _, existing := range m.deals {
		if existing.ProductID == d.ProductID && existing.Type.ID == d.Type.ID &&
			existing.ActiveAt(time.Now()) {
			return &deal.DuplicateError{ProductName: d.ProductID, DealTypeName: d.Type.Name}
		}
	}
	m.deals = append(m.deals, *d)
	return nil
}

func (m *memDeals) ListTypes(context.Context) ([]deal.Type, error) {
	out := make([]deal.Type, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDeals) GetType(_ context.Context, id string) (*deal.Type, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, deal.ErrTypeNotFound
	}
	return &t, nil
}

type memOrders struct {
	orders []order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	for i := range m.orders {
		if m.orders[i].ID == id {
			return &m.orders[i], nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

type memAPIKeys struct {
	byHash map[string]*auth.Identity
}

func (m *memAPIKeys) FindByHash(_ context.Context, hash string) (*auth.Identity, error) {
	id, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return id, nil
}

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// --- test server ---

type env struct {
	mux      *http.ServeMux
	products *memProducts
	baskets  *memBaskets
	deals    *memDeals
	orders   *memOrders
}

func newEnv() *env {
	products := &memProducts{products: map[string]*product.Product{
		"laptop": {ID: "laptop", Name: "Laptop", Price: dec("1000.00"), Stock: 10, Category: "computers", Available: true},
		"mouse":  {ID: "mouse", Name: "Mouse", Price: dec("24.50"), Stock: 100, Category: "accessories", Available: true},
	}}
	baskets := &memBaskets{}
	deals := &memDeals{types: map[string]deal.Type{
		"percentage-off": {ID: "percentage-off", Name: "Percentage Off", StrategyID: discount.StrategyPercentage},
		"flat-discount":  {ID: "flat-discount", Name: "Flat Discount", StrategyID: discount.StrategyFixedAmount},
	}}
	orders := &memOrders{}

	ledger := stock.NewLedger(products)
	engine := discount.NewEngine(deals, discount.NewRegistry())

	h := NewHandler(
		basket.NewService(baskets, products, ledger),
		order.NewService(orders, baskets, products, ledger, engine),
		deal.NewService(deals, products),
		products,
	)

	apikeys := &memAPIKeys{byHash: map[string]*auth.Identity{
		hashKey(customerKey): {ID: "k1", KeyHash: hashKey(customerKey), Name: "Customer", UserID: customerUser},
		hashKey(adminKey):    {ID: "k2", KeyHash: hashKey(adminKey), Name: "Admin", UserID: "admin", Scopes: []string{auth.ScopeAdmin}},
	}}

	apiMux := http.NewServeMux()
	h.Register(apiMux, RequireScope(auth.ScopeAdmin))

	mux := http.NewServeMux()
	mux.Handle("/api/", APIKeyAuth(apikeys, []byte(testPepper))(apiMux))

	return &env{mux: mux, products: products, baskets: baskets, deals: deals, orders: orders}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *env) do(t *testing.T, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// --- tests ---

func TestAuth_MissingKey(t *testing.T) {
	e := newEnv()
	w := e.do(t, http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_WrongKey(t *testing.T) {
	e := newEnv()
	w := e.do(t, http.MethodGet, "/api/products", "who-dis", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListProducts(t *testing.T) {
	e := newEnv()
	w := e.do(t, http.MethodGet, "/api/products", customerKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	list := decodeList(t, w)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "laptop", first["id"])
	assert.Equal(t, 1000.0, first["price"])
}

func TestGetProduct_NotFound(t *testing.T) {
	e := newEnv()
	w := e.do(t, http.MethodGet, "/api/products/ghost", customerKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBasketFlow(t *testing.T) {
	e := newEnv()

	// Empty basket is created on first read.
	w := e.do(t, http.MethodGet, "/api/basket", customerKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	b := decodeBody(t, w)
	assert.Equal(t, "active", b["status"])
	assert.Empty(t, b["items"])

	// Add two laptops.
	w = e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	b = decodeBody(t, w)
	items := b["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].(map[string]any)["quantity"])

	// Update quantity to 5.
	w = e.do(t, http.MethodPut, "/api/basket/items/laptop", customerKey, `{"quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	b = decodeBody(t, w)
	assert.Equal(t, 5.0, b["items"].([]any)[0].(map[string]any)["quantity"])

	// Update to zero deletes the line.
	w = e.do(t, http.MethodPut, "/api/basket/items/laptop", customerKey, `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	b = decodeBody(t, w)
	assert.Empty(t, b["items"])
}

func TestAddItem_Validation(t *testing.T) {
	e := newEnv()

	w := e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing productId")

	w = e.do(t, http.MethodPost, "/api/basket/items", customerKey, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"ghost","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":999}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRemoveItem_NotInBasket(t *testing.T) {
	e := newEnv()
	e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":1}`)

	w := e.do(t, http.MethodDelete, "/api/basket/items/mouse", customerKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearBasket(t *testing.T) {
	e := newEnv()
	e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":1}`)

	w := e.do(t, http.MethodDelete, "/api/basket/items", customerKey, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, http.MethodGet, "/api/basket", customerKey, "")
	assert.Empty(t, decodeBody(t, w)["items"])
}

func TestCheckout(t *testing.T) {
	e := newEnv()
	e.deals.deals = []deal.Deal{{
		ID:              "d1",
		ProductID:       "laptop",
		Type:            deal.Type{ID: "percentage-off", Name: "Percentage Off", StrategyID: discount.StrategyPercentage},
		ExpirationDate:  time.Now().Add(time.Hour),
		DiscountPercent: decimalPtr("10"),
	}}

	e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":2}`)

	w := e.do(t, http.MethodPost, "/api/basket/checkout", customerKey, "")
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	o := decodeBody(t, w)
	assert.Equal(t, 2000.0, o["totalAmount"])
	assert.Equal(t, 200.0, o["totalDiscount"])
	assert.Equal(t, 1800.0, o["finalAmount"])
	assert.Equal(t, "Applied Deals: Percentage Off on Laptop", o["note"])

	assert.Equal(t, 8, e.products.products["laptop"].Stock)

	// The basket is checked out; a second checkout conflicts.
	w = e.do(t, http.MethodPost, "/api/basket/checkout", customerKey, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Order history shows the new order.
	w = e.do(t, http.MethodGet, "/api/orders", customerKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	// The order can be fetched by id, but only by its owner.
	orderID := o["id"].(string)
	w = e.do(t, http.MethodGet, "/api/orders/"+orderID, customerKey, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/orders/"+orderID, adminKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/orders/ghost", customerKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout_EmptyBasket(t *testing.T) {
	e := newEnv()
	e.do(t, http.MethodGet, "/api/basket", customerKey, "")

	w := e.do(t, http.MethodPost, "/api/basket/checkout", customerKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPriceBasket(t *testing.T) {
	e := newEnv()
	e.deals.deals = []deal.Deal{{
		ID:              "d1",
		ProductID:       "laptop",
		Type:            deal.Type{ID: "percentage-off", Name: "Percentage Off", StrategyID: discount.StrategyPercentage},
		ExpirationDate:  time.Now().Add(time.Hour),
		DiscountPercent: decimalPtr("10"),
	}}
	e.do(t, http.MethodPost, "/api/basket/items", customerKey, `{"productId":"laptop","quantity":1}`)

	w := e.do(t, http.MethodGet, "/api/basket/price", customerKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 100.0, body["totalDiscount"])

	// Pricing does not commit stock.
	assert.Equal(t, 10, e.products.products["laptop"].Stock)
}

func TestListDealTypes(t *testing.T) {
	e := newEnv()
	w := e.do(t, http.MethodGet, "/api/deal-types", customerKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 2)
}

func TestCreateDeal_RequiresAdminScope(t *testing.T) {
	e := newEnv()
	body := `{"productId":"laptop","dealTypeId":"percentage-off","expirationDate":"2030-01-01T00:00:00Z","discountPercent":15}`

	w := e.do(t, http.MethodPost, "/api/admin/deals", customerKey, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/admin/deals", adminKey, body)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	d := decodeBody(t, w)
	assert.Equal(t, "laptop", d["productId"])
	assert.Equal(t, 15.0, d["discountPercent"])

	// A second active deal for the same pair conflicts.
	w = e.do(t, http.MethodPost, "/api/admin/deals", adminKey, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateDeal_BadRequest(t *testing.T) {
	e := newEnv()

	w := e.do(t, http.MethodPost, "/api/admin/deals", adminKey, `{"productId":"laptop"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/admin/deals", adminKey,
		`{"productId":"ghost","dealTypeId":"percentage-off","expirationDate":"2030-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func decimalPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
