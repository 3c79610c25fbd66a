package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/product"
)

// Service manages per-user carts.
type Service struct {
	products product.Repository
	lines    Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(products product.Repository, lines Repository) *Service {
	return &Service{products: products, lines: lines}
}

// AddRequest holds the input for adding a product to a cart.
type AddRequest struct {
	ProductID string
	Color     string
	Quantity  int
	Price     decimal.Decimal
}

// Add puts quantity units of a product into the user's cart, accumulating
// onto an existing line when the product is already there. The given price is
// recorded as the line's unit price; when zero, the product's current price
// is used. Returns product.ErrNotFound for an unknown product.
func (s *Service) Add(ctx context.Context, userID string, req AddRequest) (*Line, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", req.ProductID)
	}

	price := req.Price
	if price.IsZero() {
		price = p.Price
	}

	line := &Line{
		UserID:      userID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Color:       req.Color,
		Quantity:    req.Quantity,
		Price:       price,
	}
	if err := s.lines.AddOrIncrement(ctx, line); err != nil {
		return nil, errors.Wrap(err, "add cart line")
	}
	return line, nil
}

// Update sets the absolute quantity of an existing cart line.
func (s *Service) Update(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if err := s.lines.SetQuantity(ctx, userID, productID, quantity); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "set quantity")
	}
	return nil
}

// Remove deletes a product's line from the user's cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.lines.Delete(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// MergeItem is one entry of an anonymous-session cart being merged in.
type MergeItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// MergeResult reports the outcome of a merge. Skipped counts the items whose
// product ID did not resolve; those are dropped instead of failing the merge,
// and the count makes the drop visible to the caller.
type MergeResult struct {
	Lines   []Line
	Skipped int
}

// Merge folds a client-held guest cart into the user's server-side cart.
// Quantities accumulate onto existing lines. Items with unknown product IDs
// are skipped, not reported as errors.
func (s *Service) Merge(ctx context.Context, userID string, items []MergeItem) (*MergeResult, error) {
	res := &MergeResult{}
	for _, item := range items {
		if item.ProductID == "" {
			res.Skipped++
			continue
		}

		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				res.Skipped++
				continue
			}
			return nil, errors.Wrapf(err, "get product %s", item.ProductID)
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		price := item.Price
		if price.IsZero() {
			price = p.Price
		}

		line := &Line{
			UserID:      userID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			Price:       price,
		}
		if err := s.lines.AddOrIncrement(ctx, line); err != nil {
			return nil, errors.Wrapf(err, "merge cart line %s", item.ProductID)
		}
		res.Lines = append(res.Lines, *line)
	}
	return res, nil
}

// List returns the user's cart lines with denormalized product data.
func (s *Service) List(ctx context.Context, userID string) ([]Line, error) {
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart")
	}
	return lines, nil
}
