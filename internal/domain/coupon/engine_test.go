package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupon        *Coupon
	err           error
	incrementErr  error
	incrementCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	return m.coupon, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.coupon.UsedCount++
	return nil
}

func TestEngine_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := fixedNow.Add(-24 * time.Hour)
	nextWeek := fixedNow.Add(7 * 24 * time.Hour)

	tests := []struct {
		name    string
		repo    *mockCouponRepo
		wantErr error
	}{
		{
			name: "valid coupon passes",
			repo: &mockCouponRepo{coupon: &Coupon{
				Code: "SAVE10", Percentage: 10, Active: true,
				ExpiresAt: nextWeek, UsageLimit: 5, UsedCount: 0,
			}},
		},
		{
			name:    "unknown code",
			repo:    &mockCouponRepo{err: ErrNotFound},
			wantErr: ErrNotFound,
		},
		{
			name: "expired regardless of usage headroom",
			repo: &mockCouponRepo{coupon: &Coupon{
				Code: "OLD", Percentage: 10, Active: true,
				ExpiresAt: yesterday, UsageLimit: 100, UsedCount: 0,
			}},
			wantErr: ErrExpired,
		},
		{
			name: "exhausted regardless of expiry headroom",
			repo: &mockCouponRepo{coupon: &Coupon{
				Code: "USED", Percentage: 10, Active: true,
				ExpiresAt: nextWeek, UsageLimit: 3, UsedCount: 3,
			}},
			wantErr: ErrExhausted,
		},
		{
			name: "inactive",
			repo: &mockCouponRepo{coupon: &Coupon{
				Code: "OFF", Percentage: 10, Active: false,
				ExpiresAt: nextWeek, UsageLimit: 3, UsedCount: 0,
			}},
			wantErr: ErrInactive,
		},
		{
			name: "expiring today is still valid",
			repo: &mockCouponRepo{coupon: &Coupon{
				Code: "TODAY", Percentage: 10, Active: true,
				ExpiresAt: fixedNow, UsageLimit: 1, UsedCount: 0,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.repo)
			e.now = func() time.Time { return fixedNow }

			got, err := e.Validate(context.Background(), "X")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}

func TestEngine_Apply_ConsumesUsage(t *testing.T) {
	repo := &mockCouponRepo{coupon: &Coupon{
		Code: "FLAT500", Amount: decimal.NewFromInt(500), Active: true,
		ExpiresAt: time.Now().Add(24 * time.Hour), UsageLimit: 2, UsedCount: 0,
	}}

	e := NewEngine(repo)
	d, err := e.Apply(context.Background(), "FLAT500")

	require.NoError(t, err)
	assert.Equal(t, "FLAT500", repo.incrementCode)
	assert.True(t, decimal.NewFromInt(500).Equal(d.Amount))
	assert.Equal(t, 0, d.Percentage)
	assert.Equal(t, 1, repo.coupon.UsedCount)
}

func TestEngine_Apply_ExhaustedByIncrementGuard(t *testing.T) {
	// The validation read saw headroom, but the guarded increment lost the
	// race to a concurrent application.
	repo := &mockCouponRepo{
		coupon: &Coupon{
			Code: "LAST", Percentage: 5, Active: true,
			ExpiresAt: time.Now().Add(24 * time.Hour), UsageLimit: 10, UsedCount: 9,
		},
		incrementErr: ErrExhausted,
	}

	e := NewEngine(repo)
	_, err := e.Apply(context.Background(), "LAST")
	require.ErrorIs(t, err, ErrExhausted)
}

func TestEngine_Apply_IncrementError(t *testing.T) {
	repo := &mockCouponRepo{
		coupon: &Coupon{
			Code: "DB", Percentage: 5, Active: true,
			ExpiresAt: time.Now().Add(24 * time.Hour), UsageLimit: 10,
		},
		incrementErr: errors.New("db error"),
	}

	e := NewEngine(repo)
	_, err := e.Apply(context.Background(), "DB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment coupon uses")
}

func TestCoupon_DiscountFor(t *testing.T) {
	subtotal := decimal.RequireFromString("2500.00")

	flat := &Coupon{Amount: decimal.NewFromInt(300)}
	assert.True(t, decimal.RequireFromString("300.00").Equal(flat.DiscountFor(subtotal)))

	pct := &Coupon{Percentage: 10}
	assert.True(t, decimal.RequireFromString("250.00").Equal(pct.DiscountFor(subtotal)))

	// Flat amount larger than the subtotal is capped.
	huge := &Coupon{Amount: decimal.NewFromInt(99999)}
	assert.True(t, subtotal.Equal(huge.DiscountFor(subtotal)))

	none := &Coupon{}
	assert.True(t, decimal.Zero.Equal(none.DiscountFor(subtotal)))
}
