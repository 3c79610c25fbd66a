package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/coupon"
)

const (
	findCouponSQL = `SELECT code, amount, percentage, active, expires_at, usage_limit, used_count
		FROM coupons WHERE code = $1`

	// The used_count guard makes the increment a compare-and-set, so
	// concurrent applications cannot push past the limit.
	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND used_count < usage_limit`

	upsertCouponSQL = `INSERT INTO coupons (code, amount, percentage, active, expires_at, usage_limit, used_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode returns the coupon for code, or coupon.ErrNotFound.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[coupon.Coupon])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUses bumps the coupon's used count, guarded by the usage limit.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

// Upsert inserts a coupon, keeping the existing row on a code collision. Used
// by the seeding and bulk import tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.Code, c.Amount, c.Percentage, c.Active, c.ExpiresAt, c.UsageLimit, c.UsedCount,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}
