package handler

import (
	"net/http"
	"time"
)

// RateProduct records the caller's 1..5 rating for a product, replacing any
// earlier one.
func (h *Handler) RateProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Value int `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	id := r.PathValue("id")
	if err := h.reviews.Rate(r.Context(), uid, id, req.Value); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		ProductID string `json:"product_id"`
		Value     int    `json:"value"`
	}{ProductID: id, Value: req.Value})
}

// GetRating returns a product's aggregated rating.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	s, err := h.reviews.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		ProductID string  `json:"product_id"`
		Average   float64 `json:"average"`
		Count     int     `json:"count"`
	}{ProductID: s.ProductID, Average: s.Average, Count: s.Count})
}

// AddComment stores a product comment.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if req.Body == "" {
		badRequest(w, "body is required")
		return
	}

	if err := h.reviews.Comment(r.Context(), uid, r.PathValue("id"), req.Body); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type commentResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ListComments returns a product's comments, newest first.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.reviews.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]commentResponse, len(comments))
	for i, c := range comments {
		out[i] = commentResponse{ID: c.ID, UserID: c.UserID, Body: c.Body, CreatedAt: c.CreatedAt}
	}
	respond(w, http.StatusOK, out)
}
