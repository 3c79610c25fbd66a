package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/cart"
)

type cartLineResponse struct {
	ID          int64           `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
}

func toCartLineResponse(l *cart.Line) cartLineResponse {
	return cartLineResponse{
		ID:          l.ID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Color:       l.Color,
		Quantity:    l.Quantity,
		Price:       l.Price,
		Image:       l.ImageURL,
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := userID(r)
	if uid == "" {
		respond(w, http.StatusUnauthorized, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "missing " + userIDHeader + " header",
		})
		return "", false
	}
	return uid, true
}

// ListCart returns the caller's cart lines.
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	lines, err := h.carts.List(r.Context(), uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]cartLineResponse, len(lines))
	for i := range lines {
		out[i] = toCartLineResponse(&lines[i])
	}
	respond(w, http.StatusOK, out)
}

// AddToCart puts a product into the caller's cart, accumulating quantity onto
// an existing line.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ProductID string          `json:"product_id"`
		Color     string          `json:"color"`
		Quantity  int             `json:"quantity"`
		Price     decimal.Decimal `json:"price"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "product_id is required")
		return
	}

	line, err := h.carts.Add(r.Context(), uid, cart.AddRequest{
		ProductID: req.ProductID,
		Color:     req.Color,
		Quantity:  req.Quantity,
		Price:     req.Price,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartLineResponse(line))
}

// MergeCart folds a client-held guest cart into the caller's server-side cart.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []struct {
			ProductID string          `json:"product_id"`
			Quantity  int             `json:"quantity"`
			Price     decimal.Decimal `json:"price"`
		} `json:"items"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	items := make([]cart.MergeItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.MergeItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	res, err := h.carts.Merge(r.Context(), uid, items)
	if err != nil {
		respondError(w, r, err)
		return
	}

	lines := make([]cartLineResponse, len(res.Lines))
	for i := range res.Lines {
		lines[i] = toCartLineResponse(&res.Lines[i])
	}
	respond(w, http.StatusOK, struct {
		Lines   []cartLineResponse `json:"lines"`
		Skipped int                `json:"skipped"`
	}{Lines: lines, Skipped: res.Skipped})
}

// UpdateCartLine overwrites the quantity of a cart line.
func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if err := h.carts.Update(r.Context(), uid, r.PathValue("productID"), req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}{ProductID: r.PathValue("productID"), Quantity: req.Quantity})
}

// RemoveCartLine deletes a cart line.
func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.carts.Remove(r.Context(), uid, r.PathValue("productID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
