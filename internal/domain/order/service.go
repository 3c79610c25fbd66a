package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dgtech/storefront/internal/domain/cart"
	"github.com/dgtech/storefront/internal/domain/coupon"
	"github.com/dgtech/storefront/internal/domain/product"
	"github.com/dgtech/storefront/internal/notify"
)

// DefaultPaymentMethod is recorded on a delivery when the client does not
// name one.
const DefaultPaymentMethod = "COD"

// ItemRequest is a single ad-hoc item in a checkout request, referencing a
// catalog product by ID.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Color     string
}

// CheckoutRequest describes a full checkout: items taken from the user's
// cart by line ID, ad-hoc items, an optional coupon code, and the delivery
// details. CartIDs and Items may be combined; at least one item must result.
type CheckoutRequest struct {
	UserID     string
	CartIDs    []int64
	Items      []ItemRequest
	CouponCode string
	Delivery   Delivery
}

// CouponApplier validates and consumes a coupon code.
type CouponApplier interface {
	Apply(ctx context.Context, code string) (*coupon.Discount, error)
}

// Service orchestrates order creation and lifecycle transitions.
type Service struct {
	products   product.Repository
	carts      cart.Repository
	orders     Repository
	coupons    CouponApplier
	sink       notify.Sink
	recipients []string

	newID func() string
	now   func() time.Time
}

// NewService constructs an order service. Order placement emails are sent to
// recipients; an empty list disables them.
func NewService(products product.Repository, carts cart.Repository, orders Repository, coupons CouponApplier, sink notify.Sink, recipients []string) *Service {
	return &Service{
		products:   products,
		carts:      carts,
		orders:     orders,
		coupons:    coupons,
		sink:       sink,
		recipients: recipients,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Checkout creates a Placed order from the request's cart lines and ad-hoc
// items. The order, its items and its delivery are written in one transaction
// together with the stock decrement and the removal of the consumed cart
// lines, so a failed checkout leaves stock and cart untouched. On success the
// user's remaining cart is cleared and a notification is enqueued, neither of
// which can fail the checkout.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	d := req.Delivery
	if err := d.Validate(); err != nil {
		return nil, err
	}

	items, consumed, err := s.resolveItems(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		ID:        s.newID(),
		UserID:    req.UserID,
		Status:    StatusPlaced,
		Items:     items,
		CreatedAt: s.now(),
	}

	subtotal := o.Subtotal()
	discount := decimal.Zero
	if req.CouponCode != "" {
		disc, err := s.coupons.Apply(ctx, req.CouponCode)
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
		discount = disc.AmountFor(subtotal)
	}

	d.OrderID = o.ID
	d.Subtotal = subtotal
	d.Discount = discount
	d.PaymentAmount = subtotal.Sub(discount).Add(d.ShippingFee)
	if d.PaymentMethod == "" {
		d.PaymentMethod = DefaultPaymentMethod
	}
	d.PaymentStatus = PaymentPending
	d.CreatedAt = s.now()
	o.Delivery = &d

	if err := s.orders.Create(ctx, o, consumed); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if req.UserID != "" {
		if err := s.carts.DeleteByUser(ctx, req.UserID); err != nil {
			zctx.From(ctx).Warn("clear cart after checkout",
				zap.String("user_id", req.UserID), zap.Error(err))
		}
	}
	s.notifyPlaced(ctx, o)
	return o, nil
}

// resolveItems turns cart line IDs and ad-hoc item requests into order items,
// merging duplicate (product, price) pairs. It returns the cart line IDs that
// were actually consumed.
func (s *Service) resolveItems(ctx context.Context, req CheckoutRequest) ([]Item, []int64, error) {
	var (
		items    []Item
		consumed []int64
	)
	if len(req.CartIDs) > 0 {
		lines, err := s.carts.GetByIDs(ctx, req.CartIDs)
		if err != nil {
			return nil, nil, errors.Wrap(err, "fetch cart lines")
		}
		for _, l := range lines {
			if l.UserID != req.UserID {
				continue
			}
			items = append(items, Item{
				ProductID: l.ProductID,
				Name:      l.ProductName,
				Color:     l.Color,
				Quantity:  l.Quantity,
				Price:     l.Price,
				ImageURL:  l.ImageURL,
			})
			consumed = append(consumed, l.ID)
		}
	}
	if len(req.Items) > 0 {
		ids := make([]string, 0, len(req.Items))
		for _, it := range req.Items {
			if it.Quantity < 1 {
				return nil, nil, InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
			}
			ids = append(ids, it.ProductID)
		}
		prods, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, nil, errors.Wrap(err, "fetch products")
		}
		byID := make(map[string]*product.Product, len(prods))
		for i := range prods {
			byID[prods[i].ID] = &prods[i]
		}
		for _, it := range req.Items {
			p, ok := byID[it.ProductID]
			if !ok {
				return nil, nil, ProductNotFoundError{ProductID: it.ProductID}
			}
			items = append(items, Item{
				ProductID: p.ID,
				Name:      p.Name,
				Color:     it.Color,
				Quantity:  it.Quantity,
				Price:     p.Price,
				ImageURL:  p.ImageURL,
			})
		}
	}
	return mergeItems(items), consumed, nil
}

// mergeItems collapses lines sharing a product and price into one line,
// summing quantities. Order items are unique per (product, price).
func mergeItems(items []Item) []Item {
	type key struct {
		product string
		price   string
	}
	idx := make(map[key]int, len(items))
	out := items[:0]
	for _, it := range items {
		k := key{product: it.ProductID, price: it.Price.String()}
		if i, ok := idx[k]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, it)
	}
	return out
}

// AttachDelivery validates and attaches delivery details to an existing
// order, moving it to Placed.
func (s *Service) AttachDelivery(ctx context.Context, orderID string, d Delivery) error {
	if err := d.Validate(); err != nil {
		return err
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	d.OrderID = o.ID
	if d.Subtotal.IsZero() {
		d.Subtotal = o.Subtotal()
	}
	if d.PaymentAmount.IsZero() {
		d.PaymentAmount = d.Subtotal.Sub(d.Discount).Add(d.ShippingFee)
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = DefaultPaymentMethod
	}
	d.PaymentStatus = PaymentPending
	d.CreatedAt = s.now()
	return s.orders.AttachDelivery(ctx, &d, StatusPlaced)
}

// UpdateStatus moves an order to the given lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) error {
	if !ValidStatus(status) {
		return UnknownStatusError{Status: status}
	}
	return s.orders.UpdateStatus(ctx, orderID, status)
}

// Get returns an order with its items and delivery.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// List returns a user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.List(ctx, userID)
}

func (s *Service) notifyPlaced(ctx context.Context, o *Order) {
	if len(s.recipients) == 0 {
		return
	}
	email := notify.Email{
		Subject: "New Order Placed",
		Body:    renderPlacedBody(o),
		To:      s.recipients,
	}
	if err := s.sink.Enqueue(ctx, email); err != nil {
		zctx.From(ctx).Warn("enqueue order notification",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}

func renderPlacedBody(o *Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s has been placed.\n\n", o.ID)
	if o.UserID != "" {
		fmt.Fprintf(&b, "Customer: %s\n", o.UserID)
	}
	b.WriteString("Items:\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  %d x %s @ %s\n", it.Quantity, it.Name, it.Price.StringFixed(2))
	}
	if o.Delivery != nil {
		fmt.Fprintf(&b, "\nShip to: %s, %s %s\n", o.Delivery.ShippingAddress, o.Delivery.City, o.Delivery.ZipCode)
		fmt.Fprintf(&b, "Total: %s\n", o.Delivery.PaymentAmount.StringFixed(2))
	}
	return b.String()
}

var _ CouponApplier = (*coupon.Engine)(nil)
