package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgtech/storefront/internal/domain/product"
)

type stubProducts struct {
	product.Repository
	known map[string]bool
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	if !s.known[id] {
		return nil, product.ErrNotFound
	}
	return &product.Product{ID: id}, nil
}

type stubReviews struct {
	Repository
	ratings  map[string]int // user|product -> value
	comments []Comment
}

func (s *stubReviews) UpsertRating(_ context.Context, r *Rating) error {
	if s.ratings == nil {
		s.ratings = map[string]int{}
	}
	s.ratings[r.UserID+"|"+r.ProductID] = r.Value
	return nil
}

func (s *stubReviews) AddComment(_ context.Context, c *Comment) error {
	s.comments = append(s.comments, *c)
	return nil
}

func TestServiceRate(t *testing.T) {
	reviews := &stubReviews{}
	svc := NewService(&stubProducts{known: map[string]bool{"mouse": true}}, reviews)

	require.NoError(t, svc.Rate(context.Background(), "u1", "mouse", 4))
	require.NoError(t, svc.Rate(context.Background(), "u1", "mouse", 2), "rating again overwrites")
	assert.Equal(t, 2, reviews.ratings["u1|mouse"])

	err := svc.Rate(context.Background(), "u1", "mouse", 6)
	var invalid InvalidRatingError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 6, invalid.Value)

	err = svc.Rate(context.Background(), "u1", "ghost", 3)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestServiceComment(t *testing.T) {
	reviews := &stubReviews{}
	svc := NewService(&stubProducts{known: map[string]bool{"mouse": true}}, reviews)

	require.NoError(t, svc.Comment(context.Background(), "u1", "mouse", "works great"))
	require.Len(t, reviews.comments, 1)
	assert.Equal(t, "works great", reviews.comments[0].Body)

	assert.ErrorIs(t, svc.Comment(context.Background(), "u1", "mouse", ""), ErrEmptyComment)
	assert.ErrorIs(t, svc.Comment(context.Background(), "u1", "ghost", "hi"), product.ErrNotFound)
}
