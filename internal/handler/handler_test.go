package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgtech/storefront/internal/domain/cart"
	"github.com/dgtech/storefront/internal/domain/coupon"
	"github.com/dgtech/storefront/internal/domain/order"
	"github.com/dgtech/storefront/internal/domain/payment"
	"github.com/dgtech/storefront/internal/domain/product"
	"github.com/dgtech/storefront/internal/domain/review"
	"github.com/dgtech/storefront/internal/notify"
)

type memProducts struct {
	product.Repository
	products map[string]product.Product
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memCarts struct {
	cart.Repository
	lines  map[string]*cart.Line // user|product
	nextID int64
}

func (m *memCarts) AddOrIncrement(_ context.Context, line *cart.Line) error {
	if m.lines == nil {
		m.lines = map[string]*cart.Line{}
	}
	key := line.UserID + "|" + line.ProductID
	if existing, ok := m.lines[key]; ok {
		existing.Quantity += line.Quantity
		*line = *existing
		return nil
	}
	m.nextID++
	line.ID = m.nextID
	cp := *line
	m.lines[key] = &cp
	return nil
}

func (m *memCarts) ListByUser(_ context.Context, userID string) ([]cart.Line, error) {
	var out []cart.Line
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memCarts) GetByIDs(_ context.Context, ids []int64) ([]cart.Line, error) {
	var out []cart.Line
	for _, l := range m.lines {
		for _, id := range ids {
			if l.ID == id {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

func (m *memCarts) DeleteByUser(_ context.Context, userID string) error {
	for k, l := range m.lines {
		if l.UserID == userID {
			delete(m.lines, k)
		}
	}
	return nil
}

type memCoupons struct {
	coupons map[string]*coupon.Coupon
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCoupons) IncrementUses(_ context.Context, code string) error {
	c, ok := m.coupons[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.UsedCount >= c.UsageLimit {
		return coupon.ErrExhausted
	}
	c.UsedCount++
	return nil
}

type memOrders struct {
	orders     map[string]*order.Order
	deliveries map[string]*order.Delivery
	stock      map[string]int
}

func newMemOrders(stock map[string]int) *memOrders {
	return &memOrders{
		orders:     map[string]*order.Order{},
		deliveries: map[string]*order.Delivery{},
		stock:      stock,
	}
}

func (m *memOrders) Create(_ context.Context, o *order.Order, _ []int64) error {
	for _, it := range o.Items {
		if m.stock[it.ProductID] < it.Quantity {
			return order.InsufficientStockError{ProductID: it.ProductID}
		}
	}
	for _, it := range o.Items {
		m.stock[it.ProductID] -= it.Quantity
	}
	cp := *o
	m.orders[o.ID] = &cp
	if o.Delivery != nil {
		m.deliveries[o.ID] = o.Delivery
	}
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	cp.Delivery = m.deliveries[id]
	return &cp, nil
}

func (m *memOrders) List(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id, status string) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrders) AttachDelivery(_ context.Context, d *order.Delivery, newStatus string) error {
	o, ok := m.orders[d.OrderID]
	if !ok {
		return order.ErrNotFound
	}
	m.deliveries[d.OrderID] = d
	o.Status = newStatus
	return nil
}

func (m *memOrders) Exists(_ context.Context, id string) (bool, error) {
	_, ok := m.orders[id]
	return ok, nil
}

func (m *memOrders) DeliveryExists(_ context.Context, orderID string) (bool, error) {
	_, ok := m.deliveries[orderID]
	return ok, nil
}

func (m *memOrders) SetDeliveryPaymentStatus(_ context.Context, orderID, status string) error {
	if d, ok := m.deliveries[orderID]; ok {
		d.PaymentStatus = status
	}
	return nil
}

func (m *memOrders) OrderExists(ctx context.Context, orderID string) (bool, error) {
	return m.Exists(ctx, orderID)
}

func (m *memOrders) SetOrderStatus(ctx context.Context, orderID, status string) error {
	return m.UpdateStatus(ctx, orderID, status)
}

type memPayments struct {
	rows map[string]*payment.Payment
}

func (m *memPayments) Create(_ context.Context, p *payment.Payment) error {
	if m.rows == nil {
		m.rows = map[string]*payment.Payment{}
	}
	m.rows[p.IntentID] = p
	return nil
}

func (m *memPayments) GetByIntentID(_ context.Context, intentID string) (*payment.Payment, error) {
	p, ok := m.rows[intentID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return p, nil
}

func (m *memPayments) UpdateStatus(_ context.Context, intentID, status, chargeID string) error {
	p, ok := m.rows[intentID]
	if !ok {
		return payment.ErrNotFound
	}
	p.Status = status
	if chargeID != "" {
		p.ChargeID = chargeID
	}
	return nil
}

type staticProcessor struct{}

func (staticProcessor) CreateIntent(_ context.Context, amountCents int64, currency, _ string, _ map[string]string) (*payment.Intent, error) {
	return &payment.Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Status:       "requires_payment_method",
		AmountCents:  amountCents,
		Currency:     currency,
	}, nil
}

func (staticProcessor) GetIntent(_ context.Context, intentID string) (*payment.Intent, error) {
	return &payment.Intent{ID: intentID, Status: "succeeded", ChargeID: "ch_test"}, nil
}

type staticVerifier struct {
	event *payment.Event
	err   error
}

func (v staticVerifier) VerifyAndParse(context.Context, []byte, string) (*payment.Event, error) {
	return v.event, v.err
}

type memReviews struct {
	review.Repository
	ratings  map[string][]int
	comments []review.Comment
}

func (m *memReviews) UpsertRating(_ context.Context, r *review.Rating) error {
	if m.ratings == nil {
		m.ratings = map[string][]int{}
	}
	m.ratings[r.ProductID] = append(m.ratings[r.ProductID], r.Value)
	return nil
}

func (m *memReviews) RatingSummary(_ context.Context, productID string) (*review.Summary, error) {
	vals := m.ratings[productID]
	s := &review.Summary{ProductID: productID, Count: len(vals)}
	for _, v := range vals {
		s.Average += float64(v)
	}
	if len(vals) > 0 {
		s.Average /= float64(len(vals))
	}
	return s, nil
}

func (m *memReviews) AddComment(_ context.Context, c *review.Comment) error {
	c.ID = int64(len(m.comments) + 1)
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memReviews) ListComments(_ context.Context, productID string) ([]review.Comment, error) {
	var out []review.Comment
	for _, c := range m.comments {
		if c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fixture struct {
	mux      *http.ServeMux
	orders   *memOrders
	payments *memPayments
	coupons  *memCoupons
	verifier *staticVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProducts{products: map[string]product.Product{
		"gaming-laptop": {ID: "gaming-laptop", Name: "Gaming Laptop", Price: decimal.RequireFromString("2500.00"), Stock: 5, Available: true},
		"usb-mouse":     {ID: "usb-mouse", Name: "USB Mouse", Price: decimal.RequireFromString("10.00"), Stock: 2, Available: true},
	}}
	carts := &memCarts{}
	couponRepo := &memCoupons{coupons: map[string]*coupon.Coupon{
		"SAVE10": {Code: "SAVE10", Percentage: 10, Active: true, ExpiresAt: time.Now().Add(24 * time.Hour), UsageLimit: 5},
		"EXPIRED": {
			Code: "EXPIRED", Percentage: 10, Active: true,
			ExpiresAt: time.Now().Add(-24 * time.Hour), UsageLimit: 5,
		},
	}}
	orders := newMemOrders(map[string]int{"gaming-laptop": 5, "usb-mouse": 2})
	payments := &memPayments{}
	verifier := &staticVerifier{}

	engine := coupon.NewEngine(couponRepo)
	cartSvc := cart.NewService(products, carts)
	orderSvc := order.NewService(products, carts, orders, engine, notify.NewLogSink(zap.NewNop()), nil)
	paySvc := payment.NewService(payments, staticProcessor{}, verifier, orders, "usd")
	reviewSvc := review.NewService(products, &memReviews{})

	h := New(Config{ImageBaseURL: "https://img.example.com/"},
		products, cartSvc, engine, orderSvc, paySvc, reviewSvc)
	return &fixture{mux: h.Mux(), orders: orders, payments: payments, coupons: couponRepo, verifier: verifier}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestProductEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = f.do(t, http.MethodGet, "/api/products/gaming-laptop", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/products/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/cart/", "", `{"product_id": "usb-mouse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "identity header is mandatory")

	rec = f.do(t, http.MethodPost, "/api/cart/", "u1", `{"product_id": "usb-mouse", "quantity": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Adding again accumulates into the same line.
	rec = f.do(t, http.MethodPost, "/api/cart/", "u1", `{"product_id": "usb-mouse", "quantity": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var line cartLineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &line))
	assert.Equal(t, 5, line.Quantity)

	rec = f.do(t, http.MethodPost, "/api/cart/", "u1", `{"product_id": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/cart/", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var lines []cartLineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	assert.Len(t, lines, 1)
}

func TestApplyCouponEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/coupon/apply", "", `{"code": "SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.coupons.coupons["SAVE10"].UsedCount, "apply consumes one use")

	rec = f.do(t, http.MethodPost, "/api/coupon/apply", "", `{"code": "EXPIRED"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/coupon/apply", "", `{"code": "NOPE"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutEndpoint(t *testing.T) {
	f := newFixture(t)

	body := `{
		"items": [{"product_id": "gaming-laptop", "quantity": 1}],
		"coupon_code": "SAVE10",
		"delivery": {"phone_number": "+15550100", "shipping_address": "1 Main St"}
	}`
	rec := f.do(t, http.MethodPost, "/api/checkout/", "u1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, order.StatusPlaced, resp.Status)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("2250.00")), "total is subtotal minus coupon discount")

	// More units than stock covers.
	rec = f.do(t, http.MethodPost, "/api/checkout/", "u1", `{
		"items": [{"product_id": "usb-mouse", "quantity": 50}],
		"delivery": {"phone_number": "+15550100", "shipping_address": "1 Main St"}
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/checkout/", "u1", `{
		"items": [{"product_id": "usb-mouse", "quantity": 1}],
		"delivery": {"shipping_address": "1 Main St"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing phone number")
}

func TestOrderStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkout/", "u1", `{
		"items": [{"product_id": "usb-mouse", "quantity": 1}],
		"delivery": {"phone_number": "+15550100", "shipping_address": "1 Main St"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", "", `{"status": "Dispatched"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", "", `{"status": "Shipped"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "status outside the lifecycle set")

	rec = f.do(t, http.MethodGet, "/api/orders/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/payments/intent", "u1",
		`{"email": "a@b.com", "amount_cents": 2500}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi_test", resp.IntentID)
	assert.Equal(t, "pi_test_secret", resp.ClientSecret)

	rec = f.do(t, http.MethodPost, "/api/payments/intent", "u1",
		`{"email": "a@b.com", "amount_cents": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/payments/pi_test/confirm", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payment.StatusSucceeded, f.payments.rows["pi_test"].Status)

	// Stripe.js posts the intent ID and client secret back on redirect.
	rec = f.do(t, http.MethodPost, "/api/payments/pi_test/confirm", "",
		`{"payment_intent_id": "pi_test", "payment_intent_client_secret": "pi_test_secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var confirmed struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, payment.StatusSucceeded, confirmed.Status)
	assert.NotContains(t, rec.Body.String(), "pi_test_secret")

	rec = f.do(t, http.MethodGet, "/api/payments/pi_missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStripeWebhookEndpoint(t *testing.T) {
	f := newFixture(t)

	// Events for intents this service never saw are acknowledged.
	f.verifier.event = &payment.Event{Type: payment.EventIntentSucceeded, IntentID: "pi_unknown"}
	rec := f.do(t, http.MethodPost, "/api/webhook/stripe", "", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.verifier.event = nil
	f.verifier.err = payment.ErrInvalidEvent
	rec = f.do(t, http.MethodPost, "/api/webhook/stripe", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/products/usb-mouse/rating", "u1", `{"value": 4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/products/usb-mouse/rating", "u1", `{"value": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "rating outside 1..5")

	rec = f.do(t, http.MethodGet, "/api/products/usb-mouse/rating", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Average float64 `json:"average"`
		Count   int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, 4.0, summary.Average)

	rec = f.do(t, http.MethodPost, "/api/products/usb-mouse/comments", "u1", `{"body": "clicks nicely"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/products/usb-mouse/comments", "u1", `{"body": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty comment is rejected, not a server error")

	rec = f.do(t, http.MethodGet, "/api/products/usb-mouse/comments", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []commentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "clicks nicely", comments[0].Body)
}
