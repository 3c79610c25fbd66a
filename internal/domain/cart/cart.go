package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound is returned when a cart has no line for a product.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity is returned for quantity updates below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Line is a single entry in a user's cart. A product appears at most once per
// user; repeated adds accumulate into the existing line's quantity. The unit
// price is captured when the line is created, so auction-priced items keep
// the price the buyer saw.
type Line struct {
	ID        int64
	UserID    string
	ProductID string
	Color     string
	Quantity  int
	Price     decimal.Decimal

	// Denormalized product fields, populated on reads.
	ProductName string
	ImageURL    string
}

// Repository defines persistence operations for cart lines. The
// (user, product) uniqueness constraint lives in storage; AddOrIncrement
// leans on it so concurrent adds cannot create duplicate lines.
type Repository interface {
	// AddOrIncrement inserts a line, or adds its quantity to the existing
	// line for the same (user, product).
	AddOrIncrement(ctx context.Context, line *Line) error
	// SetQuantity overwrites the quantity of an existing line.
	// Returns ErrLineNotFound when the line does not exist.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	// Delete removes a line. Returns ErrLineNotFound when absent.
	Delete(ctx context.Context, userID, productID string) error
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Line, error)
	DeleteByUser(ctx context.Context, userID string) error
}
