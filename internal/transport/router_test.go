package transport

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ordbot/storefront/internal/checkout"
	"github.com/ordbot/storefront/internal/domain"
	"github.com/ordbot/storefront/internal/order"
	"github.com/ordbot/storefront/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mu       sync.Mutex
	messages []string
	photos   []string
}

func (m *mockSender) SendMessage(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

func (m *mockSender) EditMessage(_ context.Context, _ int64, _ int64, text string) error {
	return m.SendMessage(context.Background(), 0, text)
}

func (m *mockSender) SendPhoto(_ context.Context, _ int64, photoRef, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, photoRef)
	m.messages = append(m.messages, caption)
	return nil
}

func (m *mockSender) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1]
}

type mockCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	nextID   int64
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{products: make(map[int64]*domain.Product), nextID: 1}
}

func (m *mockCatalog) CreateProduct(_ context.Context, name, description, photo string, stock int) (*domain.Product, error) {
	if stock < 1 || stock > 1000 {
		return nil, domain.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &domain.Product{ID: m.nextID, Name: name, Description: description, Photo: photo, Stock: stock, Tiers: domain.DefaultTiers}
	m.products[p.ID] = p
	m.nextID++
	return p, nil
}

func (m *mockCatalog) Product(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) Products(_ context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) SetStock(_ context.Context, productID int64, stock int) error {
	if stock < 0 || stock > 1000 {
		return domain.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func (m *mockCatalog) ReplaceTiers(_ context.Context, productID int64, input string) ([]domain.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if strings.TrimSpace(input) == "bad" {
		return nil, domain.ErrValidation
	}
	tiers := []domain.Tier{{Qty: 1, Price: 5}}
	p.Tiers = tiers
	return tiers, nil
}

type mockCarts struct {
	mu     sync.Mutex
	lines  map[int64][]domain.CartLine
	nextID int64
	addErr error
}

func newMockCarts() *mockCarts {
	return &mockCarts{lines: make(map[int64][]domain.CartLine), nextID: 1}
}

func (m *mockCarts) AddLine(_ context.Context, customerID, productID int64, quantity, unitPrice float64) (*domain.CartLine, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := domain.CartLine{ID: m.nextID, CustomerID: customerID, ProductID: productID, ProductName: "Widget", Quantity: quantity, UnitPrice: unitPrice}
	m.lines[customerID] = append(m.lines[customerID], l)
	m.nextID++
	return &l, nil
}

func (m *mockCarts) Lines(_ context.Context, customerID int64) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[customerID], nil
}

func (m *mockCarts) RemoveLine(_ context.Context, lineID, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.lines[customerID] {
		if l.ID == lineID {
			m.lines[customerID] = append(m.lines[customerID][:i], m.lines[customerID][i+1:]...)
			return nil
		}
	}
	return domain.ErrLineNotFound
}

func (m *mockCarts) Clear(_ context.Context, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, customerID)
	return nil
}

type mockOrders struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	admins  map[int64]bool
	created []checkout.Draft
}

func newMockOrders(adminIDs ...int64) *mockOrders {
	admins := make(map[int64]bool)
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &mockOrders{orders: make(map[string]*domain.Order), admins: admins}
}

func (m *mockOrders) Create(_ context.Context, customerID int64, draft checkout.Draft) (*domain.Order, order.PaymentInstruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &domain.Order{ID: "abc12345", CustomerID: customerID, TotalFiat: 77, TotalCrypto: 1.4, Status: domain.OrderStatusAwaitingPayment}
	m.orders[o.ID] = o
	m.created = append(m.created, draft)
	return o, order.PaymentInstruction{Amount: 1.4, Address: "pay-here"}, nil
}

func (m *mockOrders) ClaimPayment(_ context.Context, customerID int64, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}
	return o, nil
}

func (m *mockOrders) transition(adminID int64, orderID string, from, to domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.admins[adminID] {
		return nil, domain.ErrUnauthorized
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	o.Status = to
	return o, nil
}

func (m *mockOrders) Confirm(_ context.Context, adminID int64, orderID string) (*domain.Order, error) {
	return m.transition(adminID, orderID, domain.OrderStatusAwaitingPayment, domain.OrderStatusPaid)
}

func (m *mockOrders) Reject(_ context.Context, adminID int64, orderID string) (*domain.Order, error) {
	return m.transition(adminID, orderID, domain.OrderStatusAwaitingPayment, domain.OrderStatusRejected)
}

func (m *mockOrders) Dispatch(_ context.Context, adminID int64, orderID string) (*domain.Order, error) {
	return m.transition(adminID, orderID, domain.OrderStatusPaid, domain.OrderStatusDispatched)
}

func (m *mockOrders) ListOrders(_ context.Context, customerID int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) ListAllOrders(_ context.Context, adminID int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.admins[adminID] {
		return nil, domain.ErrUnauthorized
	}
	var out []*domain.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrders) IsAdmin(id int64) bool { return m.admins[id] }

type mockReviews struct {
	mu        sync.Mutex
	submitted []domain.Review
}

func (m *mockReviews) Submit(_ context.Context, customerID int64, orderID string, stars int, text string) (*domain.Review, error) {
	if stars < 1 || stars > 5 {
		return nil, domain.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := domain.Review{OrderID: orderID, CustomerID: customerID, Stars: stars, Text: text}
	m.submitted = append(m.submitted, r)
	return &r, nil
}

func (m *mockReviews) Recent(_ context.Context) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted, nil
}

type routerFixture struct {
	sender  *mockSender
	catalog *mockCatalog
	carts   *mockCarts
	orders  *mockOrders
	reviews *mockReviews
	router  *Router
}

const testAdminID = int64(999)

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		sender:  &mockSender{},
		catalog: newMockCatalog(),
		carts:   newMockCarts(),
		orders:  newMockOrders(testAdminID),
		reviews: &mockReviews{},
	}
	f.router = NewRouter(f.sender, f.catalog, f.carts, f.orders, f.reviews, checkout.NewMachine(checkout.NewStore()))
	return f
}

func (f *routerFixture) send(t *testing.T, upd Update) {
	t.Helper()
	require.NoError(t, f.router.Handle(context.Background(), upd))
}

func TestPickTierAddsToBasket(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Callback: "pick_1_3.5_5"})
	assert.Contains(t, f.sender.last(), "Added Widget")
	assert.Len(t, f.carts.lines[7], 1)
}

func TestOutOfStockReply(t *testing.T) {
	f := newRouterFixture()
	f.carts.addErr = domain.ErrOutOfStock

	f.send(t, Update{CustomerID: 7, Callback: "pick_1_3.5_5"})
	assert.Contains(t, f.sender.last(), "out of stock")
}

func TestMalformedCallbackNeverPanics(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Callback: "pick_zzz"})
	assert.Contains(t, f.sender.last(), "expired")
}

func TestRemoveLineShowsBasket(t *testing.T) {
	f := newRouterFixture()
	f.send(t, Update{CustomerID: 7, Callback: "pick_1_3.5_5"})
	f.send(t, Update{CustomerID: 7, Callback: "remove_1"})
	assert.Contains(t, f.sender.last(), "basket is empty")
}

func TestFullCheckoutConversation(t *testing.T) {
	f := newRouterFixture()
	f.send(t, Update{CustomerID: 7, Callback: "pick_1_7_28"})

	f.send(t, Update{CustomerID: 7, Callback: "checkout"})
	assert.Contains(t, f.sender.last(), "name")

	f.send(t, Update{CustomerID: 7, Text: "Alice"})
	assert.Contains(t, f.sender.last(), "address")

	f.send(t, Update{CustomerID: 7, Text: "1 High Street"})
	assert.Contains(t, f.sender.last(), "Shipping")

	f.send(t, Update{CustomerID: 7, Text: "tracked"})
	assert.Contains(t, f.sender.last(), "Discount")

	f.send(t, Update{CustomerID: 7, Text: "SAVE10"})
	assert.Contains(t, f.sender.last(), "confirm")

	f.send(t, Update{CustomerID: 7, Callback: "confirm"})
	assert.Contains(t, f.sender.last(), "Order abc12345 placed")
	assert.Contains(t, f.sender.last(), "pay-here")

	require.Len(t, f.orders.created, 1)
	draft := f.orders.created[0]
	assert.Equal(t, "Alice", draft.Name)
	assert.Equal(t, pricing.ShippingTracked, draft.Shipping)
	assert.Equal(t, "SAVE10", draft.DiscountCode)
}

func TestCheckoutWithEmptyBasketRefused(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Callback: "checkout"})
	assert.Contains(t, f.sender.last(), "basket is empty")
}

func TestUnknownDiscountCodeNotice(t *testing.T) {
	f := newRouterFixture()
	f.send(t, Update{CustomerID: 7, Callback: "pick_1_7_28"})
	f.send(t, Update{CustomerID: 7, Callback: "checkout"})
	f.send(t, Update{CustomerID: 7, Text: "Alice"})
	f.send(t, Update{CustomerID: 7, Text: "1 High Street"})
	f.send(t, Update{CustomerID: 7, Text: "standard"})
	f.send(t, Update{CustomerID: 7, Text: "BOGUS42"})

	found := false
	for _, msg := range f.sender.messages {
		if strings.Contains(msg, "not recognised") {
			found = true
		}
	}
	assert.True(t, found)
	assert.Contains(t, f.sender.last(), "confirm")
}

func TestCancelDiscardsCheckout(t *testing.T) {
	f := newRouterFixture()
	f.send(t, Update{CustomerID: 7, Callback: "pick_1_7_28"})
	f.send(t, Update{CustomerID: 7, Callback: "checkout"})
	f.send(t, Update{CustomerID: 7, Text: "Alice"})

	f.send(t, Update{CustomerID: 7, Text: "/cancel"})
	assert.Contains(t, f.sender.last(), "Cancelled")

	f.send(t, Update{CustomerID: 7, Callback: "confirm"})
	assert.Contains(t, f.sender.last(), "No checkout in progress")
}

func TestClaimPaidFlow(t *testing.T) {
	f := newRouterFixture()
	f.orders.orders["abc12345"] = &domain.Order{ID: "abc12345", CustomerID: 7, Status: domain.OrderStatusAwaitingPayment}

	f.send(t, Update{CustomerID: 7, Callback: "paid_abc12345"})
	assert.Contains(t, f.sender.last(), "checked shortly")

	f.send(t, Update{CustomerID: 8, Callback: "paid_abc12345"})
	assert.Contains(t, f.sender.last(), "not allowed")
}

func TestAdminTransitionButtons(t *testing.T) {
	f := newRouterFixture()
	f.orders.orders["abc12345"] = &domain.Order{ID: "abc12345", CustomerID: 7, Status: domain.OrderStatusAwaitingPayment}

	f.send(t, Update{CustomerID: testAdminID, Callback: "adm_ok_abc12345"})
	assert.Contains(t, f.sender.last(), "marked paid")

	f.send(t, Update{CustomerID: testAdminID, Callback: "adm_go_abc12345"})
	assert.Contains(t, f.sender.last(), "dispatched")

	// terminal now
	f.send(t, Update{CustomerID: testAdminID, Callback: "adm_no_abc12345"})
	assert.Contains(t, f.sender.last(), "already moved on")
}

func TestAdminButtonsRejectNonAdmins(t *testing.T) {
	f := newRouterFixture()
	f.orders.orders["abc12345"] = &domain.Order{ID: "abc12345", CustomerID: 7, Status: domain.OrderStatusAwaitingPayment}

	f.send(t, Update{CustomerID: 7, Callback: "adm_ok_abc12345"})
	assert.Contains(t, f.sender.last(), "not allowed")

	f.send(t, Update{CustomerID: 7, Callback: "adm_add"})
	assert.Contains(t, f.sender.last(), "not allowed")
}

func TestReviewConversation(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Callback: "review_abc12345"})
	assert.Contains(t, f.sender.last(), "stars")

	f.send(t, Update{CustomerID: 7, Callback: "stars_4"})
	assert.Contains(t, f.sender.last(), "few words")

	f.send(t, Update{CustomerID: 7, Text: "great stuff"})
	assert.Contains(t, f.sender.last(), "Thanks for the review")

	require.Len(t, f.reviews.submitted, 1)
	assert.Equal(t, 4, f.reviews.submitted[0].Stars)
	assert.Equal(t, "great stuff", f.reviews.submitted[0].Text)
	assert.Equal(t, "abc12345", f.reviews.submitted[0].OrderID)
}

func TestStarsWithoutReviewSession(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Callback: "stars_5"})
	assert.Contains(t, f.sender.last(), "Pick an order")
}

func TestAdminAddProductConversation(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: testAdminID, Callback: "adm_add"})
	assert.Contains(t, f.sender.last(), "photo")

	// text before the photo re-prompts
	f.send(t, Update{CustomerID: testAdminID, Text: "Widget"})
	assert.Contains(t, f.sender.last(), "photo")

	f.send(t, Update{CustomerID: testAdminID, PhotoRef: "photo-123"})
	assert.Contains(t, f.sender.last(), "name")

	f.send(t, Update{CustomerID: testAdminID, Text: "Widget"})
	assert.Contains(t, f.sender.last(), "Description")

	f.send(t, Update{CustomerID: testAdminID, Text: "A fine widget"})
	assert.Contains(t, f.sender.last(), "Stock")

	f.send(t, Update{CustomerID: testAdminID, Text: "nope"})
	assert.Contains(t, f.sender.last(), "Stock")

	f.send(t, Update{CustomerID: testAdminID, Text: "5000"})
	assert.Contains(t, f.sender.last(), "Stock")

	f.send(t, Update{CustomerID: testAdminID, Text: "50"})
	assert.Contains(t, f.sender.last(), "Created Widget")

	p, err := f.catalog.Product(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "photo-123", p.Photo)
	assert.Equal(t, 50, p.Stock)
}

func TestAdminEditTiersConversation(t *testing.T) {
	f := newRouterFixture()
	_, err := f.catalog.CreateProduct(context.Background(), "Widget", "desc", "photo", 10)
	require.NoError(t, err)

	f.send(t, Update{CustomerID: testAdminID, Callback: "tiers_1"})
	assert.Contains(t, f.sender.last(), "qty,price")

	f.send(t, Update{CustomerID: testAdminID, Text: "bad"})
	assert.Contains(t, f.sender.last(), "Try again")

	f.send(t, Update{CustomerID: testAdminID, Text: "1,5"})
	assert.Contains(t, f.sender.last(), "Tiers updated")
}

func TestAdminEditStockConversation(t *testing.T) {
	f := newRouterFixture()
	_, err := f.catalog.CreateProduct(context.Background(), "Widget", "desc", "photo", 10)
	require.NoError(t, err)

	f.send(t, Update{CustomerID: testAdminID, Callback: "stock_1"})
	assert.Contains(t, f.sender.last(), "stock quantity")

	f.send(t, Update{CustomerID: testAdminID, Text: "nope"})
	assert.Contains(t, f.sender.last(), "stock quantity")

	f.send(t, Update{CustomerID: testAdminID, Text: "2000"})
	assert.Contains(t, f.sender.last(), "stock quantity")

	f.send(t, Update{CustomerID: testAdminID, Text: "0"})
	assert.Contains(t, f.sender.last(), "Stock set to 0")

	p, err := f.catalog.Product(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, p.Stock)
}

func TestEditStockRejectsNonAdmins(t *testing.T) {
	f := newRouterFixture()
	_, err := f.catalog.CreateProduct(context.Background(), "Widget", "desc", "photo", 10)
	require.NoError(t, err)

	f.send(t, Update{CustomerID: 7, Callback: "stock_1"})
	assert.Contains(t, f.sender.last(), "not allowed")
}

func TestMenuMentionsAdminOnlyForAdmins(t *testing.T) {
	f := newRouterFixture()

	f.send(t, Update{CustomerID: 7, Text: "/start"})
	assert.NotContains(t, f.sender.last(), "/admin")

	f.send(t, Update{CustomerID: testAdminID, Text: "/start"})
	assert.Contains(t, f.sender.last(), "/admin")
}

func TestShowOrdersOffersContextButtons(t *testing.T) {
	f := newRouterFixture()
	f.orders.orders["aaa"] = &domain.Order{ID: "aaa", CustomerID: 7, Status: domain.OrderStatusAwaitingPayment, TotalFiat: 10}
	f.orders.orders["bbb"] = &domain.Order{ID: "bbb", CustomerID: 7, Status: domain.OrderStatusPaid, TotalFiat: 20}

	f.send(t, Update{CustomerID: 7, Callback: "orders"})
	msg := f.sender.last()
	assert.Contains(t, msg, "paid_aaa")
	assert.Contains(t, msg, "review_bbb")
}

func TestShowProductsSendsPhotos(t *testing.T) {
	f := newRouterFixture()
	_, err := f.catalog.CreateProduct(context.Background(), "Widget", "desc", "photo-1", 10)
	require.NoError(t, err)

	f.send(t, Update{CustomerID: 7, Callback: "products"})
	assert.Equal(t, []string{"photo-1"}, f.sender.photos)
	assert.Contains(t, f.sender.last(), "pick_1_1_10")
}
