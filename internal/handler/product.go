package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/product"
)

type productResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	SEOFriendlyName string          `json:"seo_friendly_name,omitempty"`
	Category        string          `json:"category,omitempty"`
	Brand           string          `json:"brand,omitempty"`
	Price           decimal.Decimal `json:"price"`
	OldPrice        decimal.Decimal `json:"old_price"`
	Auction         bool            `json:"auction"`
	Description     string          `json:"description,omitempty"`
	MetaDescription string          `json:"meta_description,omitempty"`
	MetaKeywords    string          `json:"meta_keywords,omitempty"`
	Image           string          `json:"image"`
	Stock           int             `json:"stock"`
	Available       bool            `json:"available"`
}

// ListProducts returns the available catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = h.toProductResponse(&p)
	}
	respond(w, http.StatusOK, out)
}

// GetProduct returns a single product by slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.toProductResponse(p))
}

// toProductResponse converts a domain product into its JSON shape. Relative
// image paths are prefixed with the configured image base URL.
func (h *Handler) toProductResponse(p *product.Product) productResponse {
	image := p.ImageURL
	if image != "" && h.imageBaseURL != "" && !strings.HasPrefix(image, "http") {
		image = h.imageBaseURL + image
	}
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		SEOFriendlyName: p.SEOFriendlyName,
		Category:        p.Category,
		Brand:           p.Brand,
		Price:           p.Price,
		OldPrice:        p.OldPrice,
		Auction:         p.Auction,
		Description:     p.Description,
		MetaDescription: p.MetaDescription,
		MetaKeywords:    p.MetaKeywords,
		Image:           image,
		Stock:           p.Stock,
		Available:       p.Available,
	}
}
