package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// ApplyCoupon validates a coupon code, consumes one use and returns its
// discount terms.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if req.Code == "" {
		badRequest(w, "code is required")
		return
	}

	disc, err := h.coupons.Apply(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		Code       string          `json:"code"`
		Amount     decimal.Decimal `json:"amount"`
		Percentage int             `json:"percentage"`
	}{Code: disc.Code, Amount: disc.Amount, Percentage: disc.Percentage})
}
