package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgtech/storefront/internal/domain/product"
)

const productColumns = `id, name, seo_friendly_name, category, brand, price, old_price, auction,
		base_price, description, meta_description, meta_keywords, image_url, stock, available, published_at`

const (
	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE available ORDER BY published_at DESC, id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, brand = EXCLUDED.brand,
			price = EXCLUDED.price, old_price = EXCLUDED.old_price, auction = EXCLUDED.auction,
			base_price = EXCLUDED.base_price, image_url = EXCLUDED.image_url,
			stock = EXCLUDED.stock, available = EXCLUDED.available`

	updateProductContentSQL = `UPDATE products
		SET seo_friendly_name = $2, description = $3, meta_description = $4, meta_keywords = $5
		WHERE id = $1`

	productIDExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the available catalog, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its slug.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given slugs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.Name, p.SEOFriendlyName, p.Category, p.Brand,
		p.Price, p.OldPrice, p.Auction, p.BasePrice,
		p.Description, p.MetaDescription, p.MetaKeywords,
		p.ImageURL, p.Stock, p.Available, p.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts a product or refreshes an existing row's commercial fields.
// Text content written by the catalog rewrite tool is left alone. Used by the
// seeding tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.SEOFriendlyName, p.Category, p.Brand,
		p.Price, p.OldPrice, p.Auction, p.BasePrice,
		p.Description, p.MetaDescription, p.MetaKeywords,
		p.ImageURL, p.Stock, p.Available, p.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// UpdateContent rewrites a product's text fields.
func (r *ProductRepository) UpdateContent(ctx context.Context, id string, c product.ContentUpdate) error {
	tag, err := r.pool.Exec(ctx, updateProductContentSQL,
		id, c.SEOFriendlyName, c.Description, c.MetaDescription, c.MetaKeywords,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// IDExists reports whether a product slug is already taken.
func (r *ProductRepository) IDExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, productIDExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking product %q: %w", id, err)
	}
	return exists, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.SEOFriendlyName, &p.Category, &p.Brand,
		&p.Price, &p.OldPrice, &p.Auction, &p.BasePrice,
		&p.Description, &p.MetaDescription, &p.MetaKeywords,
		&p.ImageURL, &p.Stock, &p.Available, &p.PublishedAt,
	)
	return p, err
}
