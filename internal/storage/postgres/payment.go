package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/payment"
)

const (
	createPaymentSQL = `INSERT INTO payments (intent_id, order_id, user_id, email, amount, currency,
			status, charge_id, linked_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	getPaymentSQL = `SELECT id, intent_id, order_id, user_id, email, amount, currency,
			status, charge_id, linked_order, created_at, updated_at
		FROM payments WHERE intent_id = $1`

	updatePaymentStatusSQL = `UPDATE payments
		SET status = $2, charge_id = CASE WHEN $3 = '' THEN charge_id ELSE $3 END, updated_at = now()
		WHERE intent_id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.pool.QueryRow(ctx, createPaymentSQL,
		p.IntentID, p.OrderID, p.UserID, p.Email, p.Amount, p.Currency,
		p.Status, p.ChargeID, p.LinkedOrder, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating payment %q: %w", p.IntentID, err)
	}
	return nil
}

// GetByIntentID returns the payment for an intent ID.
func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentSQL, intentID)
	if err != nil {
		return nil, fmt.Errorf("getting payment %q: %w", intentID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[payment.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment %q: %w", intentID, err)
	}
	return &p, nil
}

// UpdateStatus sets the status and, when non-empty, the charge ID.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, intentID, status, chargeID string) error {
	tag, err := r.pool.Exec(ctx, updatePaymentStatusSQL, intentID, status, chargeID)
	if err != nil {
		return fmt.Errorf("updating payment %q: %w", intentID, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}
