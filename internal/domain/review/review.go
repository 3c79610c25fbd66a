// Package review holds product ratings and comments.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/dgtech/storefront/internal/domain/product"
)

// ErrNotFound is returned when a product has no rating from a user.
var ErrNotFound = errors.New("review not found")

// ErrEmptyComment is returned when a comment has no body.
var ErrEmptyComment = errors.New("empty comment")

// InvalidRatingError is returned when a rating value is outside 1..5.
type InvalidRatingError struct {
	Value int
}

func (e InvalidRatingError) Error() string {
	return fmt.Sprintf("rating must be between 1 and 5, got %d", e.Value)
}

// Rating is a user's score for a product. A user holds at most one rating
// per product; rating again overwrites the previous value.
type Rating struct {
	ID        int64
	UserID    string
	ProductID string
	Value     int
	CreatedAt time.Time
}

// Comment is a free-form product comment.
type Comment struct {
	ID        int64
	UserID    string
	ProductID string
	Body      string
	CreatedAt time.Time
}

// Summary aggregates a product's ratings.
type Summary struct {
	ProductID string
	Average   float64
	Count     int
}

// Repository persists ratings and comments.
type Repository interface {
	// UpsertRating inserts the rating or overwrites the user's previous one
	// for the same product.
	UpsertRating(ctx context.Context, r *Rating) error
	// RatingSummary aggregates all ratings for a product.
	RatingSummary(ctx context.Context, productID string) (*Summary, error)
	// AddComment inserts a comment.
	AddComment(ctx context.Context, c *Comment) error
	// ListComments returns a product's comments, newest first.
	ListComments(ctx context.Context, productID string) ([]Comment, error)
}

// Service validates and stores reviews.
type Service struct {
	products product.Repository
	reviews  Repository

	now func() time.Time
}

// NewService constructs a review service.
func NewService(products product.Repository, reviews Repository) *Service {
	return &Service{products: products, reviews: reviews, now: time.Now}
}

// Rate records a user's rating for a product, replacing any earlier one.
func (s *Service) Rate(ctx context.Context, userID, productID string, value int) error {
	if value < 1 || value > 5 {
		return InvalidRatingError{Value: value}
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	return s.reviews.UpsertRating(ctx, &Rating{
		UserID:    userID,
		ProductID: productID,
		Value:     value,
		CreatedAt: s.now(),
	})
}

// Summary aggregates a product's ratings.
func (s *Service) Summary(ctx context.Context, productID string) (*Summary, error) {
	return s.reviews.RatingSummary(ctx, productID)
}

// Comment stores a product comment.
func (s *Service) Comment(ctx context.Context, userID, productID, body string) error {
	if body == "" {
		return ErrEmptyComment
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	return s.reviews.AddComment(ctx, &Comment{
		UserID:    userID,
		ProductID: productID,
		Body:      body,
		CreatedAt: s.now(),
	})
}

// Comments lists a product's comments, newest first.
func (s *Service) Comments(ctx context.Context, productID string) ([]Comment, error) {
	return s.reviews.ListComments(ctx, productID)
}
