// Package handler exposes the storefront over HTTP. Routes are declared on a
// net/http ServeMux using method and wildcard patterns; request and response
// bodies are plain JSON.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dgtech/storefront/internal/domain/cart"
	"github.com/dgtech/storefront/internal/domain/coupon"
	"github.com/dgtech/storefront/internal/domain/order"
	"github.com/dgtech/storefront/internal/domain/payment"
	"github.com/dgtech/storefront/internal/domain/product"
	"github.com/dgtech/storefront/internal/domain/review"
)

// userIDHeader carries the caller identity set by the gateway in front of
// this service.
const userIDHeader = "X-User-ID"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	coupons      *coupon.Engine
	orders       *order.Service
	payments     *payment.Service
	reviews      *review.Service
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	coupons *coupon.Engine,
	orders *order.Service,
	payments *payment.Service,
	reviews *review.Service,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		coupons:      coupons,
		orders:       orders,
		payments:     payments,
		reviews:      reviews,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Mux returns the route table for the API.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products/{$}", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/products/{id}/rating", h.GetRating)
	mux.HandleFunc("POST /api/products/{id}/rating", h.RateProduct)
	mux.HandleFunc("GET /api/products/{id}/comments", h.ListComments)
	mux.HandleFunc("POST /api/products/{id}/comments", h.AddComment)

	mux.HandleFunc("GET /api/cart/{$}", h.ListCart)
	mux.HandleFunc("POST /api/cart/{$}", h.AddToCart)
	mux.HandleFunc("POST /api/cart/merge", h.MergeCart)
	mux.HandleFunc("PUT /api/cart/{productID}", h.UpdateCartLine)
	mux.HandleFunc("DELETE /api/cart/{productID}", h.RemoveCartLine)

	mux.HandleFunc("POST /api/coupon/apply", h.ApplyCoupon)

	mux.HandleFunc("POST /api/checkout/{$}", h.Checkout)
	mux.HandleFunc("POST /api/delivery/{$}", h.AttachDelivery)
	mux.HandleFunc("GET /api/orders/{$}", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.UpdateOrderStatus)

	mux.HandleFunc("POST /api/payments/intent", h.CreatePaymentIntent)
	mux.HandleFunc("GET /api/payments/{intentID}", h.GetPayment)
	mux.HandleFunc("POST /api/payments/{intentID}/confirm", h.ConfirmPayment)
	mux.HandleFunc("POST /api/webhook/stripe", h.StripeWebhook)

	return mux
}

// userID extracts the gateway-provided caller identity.
func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	respond(w, status, errorResponse{Code: status, Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	respond(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: msg})
}

// errorStatus folds domain errors onto HTTP status codes.
func errorStatus(err error) (int, string) {
	var (
		productMissing    order.ProductNotFoundError
		invalidQuantity   order.InvalidQuantityError
		unknownStatus     order.UnknownStatusError
		validation        order.ValidationError
		insufficientStock order.InsufficientStockError
		payValidation     payment.ValidationError
		payInvalid        payment.InvalidRequestError
		invalidRating     review.InvalidRatingError
	)
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.As(err, &productMissing),
		errors.As(err, &invalidQuantity),
		errors.As(err, &unknownStatus),
		errors.As(err, &validation),
		errors.As(err, &payValidation),
		errors.As(err, &payInvalid),
		errors.As(err, &invalidRating),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, review.ErrEmptyComment),
		errors.Is(err, payment.ErrInvalidEvent):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrInactive):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.As(err, &insufficientStock):
		return http.StatusConflict, err.Error()

	case errors.Is(err, payment.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()

	case errors.Is(err, payment.ErrUnauthenticated),
		errors.Is(err, payment.ErrProcessor),
		errors.Is(err, payment.ErrNetwork):
		return http.StatusBadGateway, "payment processor unavailable"

	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
