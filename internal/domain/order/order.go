// Package order implements the checkout flow: turning cart lines or ad-hoc
// item requests into a persisted order with delivery details, and moving the
// order through its status lifecycle.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status values an order moves through. Every transition goes through
// Service.UpdateStatus, which accepts any member of this set.
const (
	StatusPending    = "Pending"
	StatusPlaced     = "Placed"
	StatusDispatched = "Dispatched"
	StatusCancelled  = "Cancelled"
	StatusCleared    = "Cleared"
)

// Payment states recorded on a delivery.
const (
	PaymentPending   = "Pending"
	PaymentCompleted = "Completed"
)

var (
	// ErrNotFound is returned when no order exists for an ID.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyOrder is returned when a checkout request resolves to zero items.
	ErrEmptyOrder = errors.New("order has no items")
)

// ProductNotFoundError is returned when an order references a product that
// does not exist in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InvalidQuantityError is returned when an item requests a non-positive
// quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// InsufficientStockError is returned when the guarded stock decrement fails
// because a product does not have enough units on hand.
type InsufficientStockError struct {
	ProductID string
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// ValidationError is returned when a required delivery field is missing or
// malformed.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// UnknownStatusError is returned when a status update names a value outside
// the order lifecycle.
type UnknownStatusError struct {
	Status string
}

func (e UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown order status: %s", e.Status)
}

// Order is a placed purchase. Items carry the price at the time the order
// was created, not the product's current price.
type Order struct {
	ID        string
	UserID    string
	Status    string
	Items     []Item
	Delivery  *Delivery
	CreatedAt time.Time
}

// Item is a single order line. An order holds at most one line per
// (product, price) pair.
type Item struct {
	ID        int64
	ProductID string
	Name      string
	Color     string
	Quantity  int
	Price     decimal.Decimal
	ImageURL  string
}

// Subtotal sums quantity times price over all items.
func (o *Order) Subtotal() decimal.Decimal {
	var sum decimal.Decimal
	for _, it := range o.Items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Delivery holds the shipping and payment details attached to an order.
// Phone number and shipping address are mandatory.
type Delivery struct {
	ID              int64
	OrderID         string
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	ShippingAddress string
	City            string
	ZipCode         string
	PaymentMethod   string
	PaymentStatus   string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	ShippingFee     decimal.Decimal
	PaymentAmount   decimal.Decimal
	CreatedAt       time.Time
}

// Validate checks the mandatory delivery fields.
func (d *Delivery) Validate() error {
	if d.PhoneNumber == "" {
		return ValidationError{Field: "phone_number", Msg: "required"}
	}
	if d.ShippingAddress == "" {
		return ValidationError{Field: "shipping_address", Msg: "required"}
	}
	return nil
}

// ValidStatus reports whether s is a member of the order status set.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPlaced, StatusDispatched, StatusCancelled, StatusCleared:
		return true
	}
	return false
}

// Repository persists orders, their items and deliveries.
type Repository interface {
	// Create inserts the order, its items and, when o.Delivery is set, the
	// delivery in one transaction, decrementing product stock with a guard on
	// the available quantity and deleting the consumed cart lines. It returns
	// InsufficientStockError when any product cannot cover its requested
	// quantity, leaving nothing written.
	Create(ctx context.Context, o *Order, consumedCartIDs []int64) error
	// Get returns the order with its items and delivery, or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns all orders for a user, newest first, items included.
	List(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus sets the order status, returning ErrNotFound on a miss.
	UpdateStatus(ctx context.Context, id, status string) error
	// AttachDelivery inserts the delivery and moves the order to newStatus in
	// one transaction.
	AttachDelivery(ctx context.Context, d *Delivery, newStatus string) error
	// Exists reports whether an order with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)
	// DeliveryExists reports whether the order has a delivery attached.
	DeliveryExists(ctx context.Context, orderID string) (bool, error)
	// SetDeliveryPaymentStatus updates the payment status on an order's
	// delivery, if one exists.
	SetDeliveryPaymentStatus(ctx context.Context, orderID, status string) error
}
