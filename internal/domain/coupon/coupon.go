package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon's expiry date has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when a coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrInactive is returned when a coupon has been deactivated.
	ErrInactive = errors.New("coupon inactive")
)

// Coupon is a discount code carrying either a flat amount or a percentage.
// A coupon is valid iff it is active, not expired, and its used count is
// below the usage limit.
type Coupon struct {
	Code       string
	Amount     decimal.Decimal
	Percentage int
	Active     bool
	ExpiresAt  time.Time
	UsageLimit int
	UsedCount  int
}

// DiscountFor computes the discount this coupon grants on the given subtotal:
// the flat amount when set, otherwise the percentage of the subtotal. The
// result is capped at the subtotal and rounded to 2 decimal places.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	return discountFor(c.Amount, c.Percentage, subtotal)
}

// Discount holds the terms returned to a caller that applied a coupon.
type Discount struct {
	Code       string
	Amount     decimal.Decimal
	Percentage int
}

// AmountFor computes the monetary value of the discount on the given
// subtotal, using the same rules as Coupon.DiscountFor.
func (d *Discount) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	return discountFor(d.Amount, d.Percentage, subtotal)
}

func discountFor(amount decimal.Decimal, percentage int, subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch {
	case amount.IsPositive():
		d = amount
	case percentage > 0:
		d = subtotal.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100))
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d.Round(2)
}

// Repository provides lookup and usage accounting for coupons.
type Repository interface {
	// FindByCode returns the coupon for code, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUses bumps used_count by one. The storage layer guards the
	// increment with used_count < usage_limit and returns ErrExhausted when
	// the guard fails, so concurrent applications cannot overshoot the limit.
	IncrementUses(ctx context.Context, code string) error
}
