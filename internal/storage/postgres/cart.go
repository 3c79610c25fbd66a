package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/cart"
)

const cartLineColumns = `c.id, c.user_id, c.product_id, c.color, c.quantity, c.price, p.name, p.image_url`

const (
	// The (user_id, product_id) unique constraint makes concurrent adds for
	// the same product collapse into one accumulated line.
	addCartLineSQL = `INSERT INTO cart_items (user_id, product_id, color, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity`

	setCartQuantitySQL = `UPDATE cart_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2`

	deleteCartLineSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	listCartByUserSQL = `SELECT ` + cartLineColumns + `
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 ORDER BY c.id`

	getCartByIDsSQL = `SELECT ` + cartLineColumns + `
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.id = ANY($1)`

	deleteCartByUserSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// AddOrIncrement inserts a line or accumulates quantity into the existing one
// for the same (user, product). The line's ID and Quantity are updated to the
// stored values.
func (r *CartRepository) AddOrIncrement(ctx context.Context, line *cart.Line) error {
	err := r.pool.QueryRow(ctx, addCartLineSQL,
		line.UserID, line.ProductID, line.Color, line.Quantity, line.Price,
	).Scan(&line.ID, &line.Quantity)
	if err != nil {
		return fmt.Errorf("adding cart line for %q: %w", line.ProductID, err)
	}
	return nil
}

// SetQuantity overwrites an existing line's quantity.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, setCartQuantitySQL, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart line for %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Delete removes a user's line for a product.
func (r *CartRepository) Delete(ctx context.Context, userID, productID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting cart line for %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// ListByUser returns a user's cart lines with product name and image joined in.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// GetByIDs returns the lines matching any of the given IDs.
func (r *CartRepository) GetByIDs(ctx context.Context, ids []int64) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, getCartByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// DeleteByUser clears a user's entire cart.
func (r *CartRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartByUserSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(
		&l.ID, &l.UserID, &l.ProductID, &l.Color, &l.Quantity, &l.Price,
		&l.ProductName, &l.ImageURL,
	)
	return l, err
}
