package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/review"
)

const (
	upsertRatingSQL = `INSERT INTO ratings (user_id, product_id, value, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET value = EXCLUDED.value, created_at = EXCLUDED.created_at
		RETURNING id`

	ratingSummarySQL = `SELECT COALESCE(AVG(value), 0), COUNT(*) FROM ratings WHERE product_id = $1`

	addCommentSQL = `INSERT INTO comments (user_id, product_id, body, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`

	listCommentsSQL = `SELECT id, user_id, product_id, body, created_at
		FROM comments WHERE product_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// UpsertRating inserts or overwrites a user's rating for a product.
func (r *ReviewRepository) UpsertRating(ctx context.Context, rating *review.Rating) error {
	err := r.pool.QueryRow(ctx, upsertRatingSQL,
		rating.UserID, rating.ProductID, rating.Value, rating.CreatedAt,
	).Scan(&rating.ID)
	if err != nil {
		return fmt.Errorf("rating product %q: %w", rating.ProductID, err)
	}
	return nil
}

// RatingSummary aggregates all ratings for a product.
func (r *ReviewRepository) RatingSummary(ctx context.Context, productID string) (*review.Summary, error) {
	s := review.Summary{ProductID: productID}
	err := r.pool.QueryRow(ctx, ratingSummarySQL, productID).Scan(&s.Average, &s.Count)
	if err != nil {
		return nil, fmt.Errorf("summarizing ratings for %q: %w", productID, err)
	}
	return &s, nil
}

// AddComment inserts a comment.
func (r *ReviewRepository) AddComment(ctx context.Context, c *review.Comment) error {
	err := r.pool.QueryRow(ctx, addCommentSQL,
		c.UserID, c.ProductID, c.Body, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("commenting on %q: %w", c.ProductID, err)
	}
	return nil
}

// ListComments returns a product's comments, newest first.
func (r *ReviewRepository) ListComments(ctx context.Context, productID string) ([]review.Comment, error) {
	rows, err := r.pool.Query(ctx, listCommentsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing comments for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[review.Comment])
}
