package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/order"
	"github.com/dgtech/storefront/internal/domain/payment"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, color, quantity, price, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	// The stock guard turns the decrement into a compare-and-set; zero rows
	// affected means the product cannot cover the quantity.
	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	deleteCartLinesSQL = `DELETE FROM cart_items WHERE id = ANY($1)`

	getOrderSQL = `SELECT id, user_id, status, created_at FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, user_id, status, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT order_id, id, product_id, name, color, quantity, price, image_url
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	createDeliverySQL = `INSERT INTO deliveries (order_id, first_name, last_name, email, phone_number,
			shipping_address, city, zip_code, payment_method, payment_status,
			subtotal, discount, shipping_fee, payment_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	getDeliverySQL = `SELECT id, order_id, first_name, last_name, email, phone_number,
			shipping_address, city, zip_code, payment_method, payment_status,
			subtotal, discount, shipping_fee, payment_amount, created_at
		FROM deliveries WHERE order_id = $1`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	deliveryExistsSQL = `SELECT EXISTS (SELECT 1 FROM deliveries WHERE order_id = $1)`

	setDeliveryPaymentStatusSQL = `UPDATE deliveries SET payment_status = $2 WHERE order_id = $1`
)

var (
	_ order.Repository    = (*OrderRepository)(nil)
	_ payment.OrderLinker = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. It also
// serves as the payment flow's view onto orders.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its items, its delivery when one is set, the
// stock decrements and the removal of the consumed cart lines in one
// transaction. Any guarded stock decrement that affects zero rows aborts the
// transaction with InsufficientStockError.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, consumedCartIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, createOrderSQL, o.ID, o.UserID, o.Status, o.CreatedAt); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	for i := range o.Items {
		it := &o.Items[i]
		err := tx.QueryRow(ctx, createOrderItemSQL,
			o.ID, it.ProductID, it.Name, it.Color, it.Quantity, it.Price, it.ImageURL,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", it.ProductID, err)
		}

		tag, err := tx.Exec(ctx, decrementStockSQL, it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing stock for %q: %w", it.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.InsufficientStockError{ProductID: it.ProductID}
		}
	}
	if len(consumedCartIDs) > 0 {
		if _, err := tx.Exec(ctx, deleteCartLinesSQL, consumedCartIDs); err != nil {
			return fmt.Errorf("consuming cart lines: %w", err)
		}
	}
	if d := o.Delivery; d != nil {
		err := tx.QueryRow(ctx, createDeliverySQL,
			o.ID, d.FirstName, d.LastName, d.Email, d.PhoneNumber,
			d.ShippingAddress, d.City, d.ZipCode, d.PaymentMethod, d.PaymentStatus,
			d.Subtotal, d.Discount, d.ShippingFee, d.PaymentAmount, d.CreatedAt,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("creating delivery for %q: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order with its items and delivery.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	items, err := r.itemsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]

	o.Delivery, err = r.deliveryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns a user's orders, newest first, items included.
func (r *OrderRepository) List(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt)
	return o, err
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("getting order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]order.Item)
	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.Name, &it.Color, &it.Quantity, &it.Price, &it.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (r *OrderRepository) deliveryFor(ctx context.Context, orderID string) (*order.Delivery, error) {
	rows, err := r.pool.Query(ctx, getDeliverySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting delivery for %q: %w", orderID, err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[order.Delivery])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting delivery for %q: %w", orderID, err)
	}
	return &d, nil
}

// UpdateStatus sets the order's status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AttachDelivery inserts the delivery and moves the order to newStatus in one
// transaction.
func (r *OrderRepository) AttachDelivery(ctx context.Context, d *order.Delivery, newStatus string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, createDeliverySQL,
		d.OrderID, d.FirstName, d.LastName, d.Email, d.PhoneNumber,
		d.ShippingAddress, d.City, d.ZipCode, d.PaymentMethod, d.PaymentStatus,
		d.Subtotal, d.Discount, d.ShippingFee, d.PaymentAmount, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("creating delivery for %q: %w", d.OrderID, err)
	}

	tag, err := tx.Exec(ctx, updateOrderStatusSQL, d.OrderID, newStatus)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", d.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delivery for %q: %w", d.OrderID, err)
	}
	return nil
}

// Exists reports whether an order with the given ID exists.
func (r *OrderRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order %q: %w", id, err)
	}
	return exists, nil
}

// OrderExists implements payment.OrderLinker.
func (r *OrderRepository) OrderExists(ctx context.Context, orderID string) (bool, error) {
	return r.Exists(ctx, orderID)
}

// DeliveryExists reports whether the order has a delivery attached.
func (r *OrderRepository) DeliveryExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, deliveryExistsSQL, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking delivery for %q: %w", orderID, err)
	}
	return exists, nil
}

// SetOrderStatus implements payment.OrderLinker.
func (r *OrderRepository) SetOrderStatus(ctx context.Context, orderID, status string) error {
	return r.UpdateStatus(ctx, orderID, status)
}

// SetDeliveryPaymentStatus updates the payment status on an order's delivery.
// Orders without a delivery are left untouched.
func (r *OrderRepository) SetDeliveryPaymentStatus(ctx context.Context, orderID, status string) error {
	if _, err := r.pool.Exec(ctx, setDeliveryPaymentStatusSQL, orderID, status); err != nil {
		return fmt.Errorf("updating delivery payment for %q: %w", orderID, err)
	}
	return nil
}
