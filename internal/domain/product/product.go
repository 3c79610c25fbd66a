package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. The ID is a
// URL-safe slug derived from the product name at creation time.
type Product struct {
	ID              string
	Name            string
	SEOFriendlyName string
	Category        string
	Brand           string
	Price           decimal.Decimal
	OldPrice        decimal.Decimal
	Auction         bool
	BasePrice       decimal.Decimal
	Description     string
	MetaDescription string
	MetaKeywords    string
	ImageURL        string
	Stock           int
	Available       bool
	PublishedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// UpdateContent rewrites the text fields of a product. Used by the
	// catalog-rewrite batch tool.
	UpdateContent(ctx context.Context, id string, c ContentUpdate) error
	IDExists(ctx context.Context, id string) (bool, error)
}

// ContentUpdate carries the rewritable text fields of a product.
type ContentUpdate struct {
	SEOFriendlyName string
	Description     string
	MetaDescription string
	MetaKeywords    string
}
