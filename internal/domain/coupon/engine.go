package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Engine validates discount codes and records their usage.
//
// Apply consumes one usage unit at validation time, independent of whether an
// order is ultimately placed. That mirrors how the checkout flow calls it:
// the coupon endpoint is fire-and-forget from the order's perspective.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Validate looks up the coupon for code and checks it against its active
// flag, expiry date, and usage ceiling. It returns the coupon without
// consuming a usage unit.
func (e *Engine) Validate(ctx context.Context, code string) (*Coupon, error) {
	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}

	// Expiry is date-granular: a coupon expiring today is still usable today.
	today := dateOf(e.now())
	if !c.ExpiresAt.IsZero() && dateOf(c.ExpiresAt).Before(today) {
		return nil, ErrExpired
	}

	if c.UsedCount >= c.UsageLimit {
		return nil, ErrExhausted
	}

	return c, nil
}

// Apply re-validates the coupon, increments its usage counter, and returns
// the discount terms. The increment is a guarded compare-and-swap in storage,
// so two concurrent applications of the last usage unit cannot both succeed.
func (e *Engine) Apply(ctx context.Context, code string) (*Discount, error) {
	c, err := e.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := e.repo.IncrementUses(ctx, code); err != nil {
		if errors.Is(err, ErrExhausted) {
			return nil, ErrExhausted
		}
		return nil, errors.Wrap(err, "increment coupon uses")
	}

	return &Discount{
		Code:       c.Code,
		Amount:     c.Amount,
		Percentage: c.Percentage,
	}, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
