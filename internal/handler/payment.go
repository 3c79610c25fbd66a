package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/payment"
)

// Processors cap webhook payloads well below this, anything larger is junk.
const maxWebhookBody = 64 << 10

type paymentResponse struct {
	IntentID  string          `json:"intent_id"`
	OrderID   string          `json:"order_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		IntentID:  p.IntentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

// CreatePaymentIntent opens a payment intent with the processor and returns
// the client secret the frontend needs to collect the card.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID     string `json:"order_id"`
		Email       string `json:"email"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	p, clientSecret, err := h.payments.CreateIntent(r.Context(), payment.CreateIntentRequest{
		UserID:      userID(r),
		OrderID:     req.OrderID,
		Email:       req.Email,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, struct {
		paymentResponse
		ClientSecret string `json:"client_secret"`
	}{paymentResponse: toPaymentResponse(p), ClientSecret: clientSecret})
}

// ConfirmPayment reconciles the local payment record against the processor's
// view of the intent. The body is optional: Stripe.js clients post the intent
// ID and client secret back, but the intent in the path is authoritative and
// the secret is never stored.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentIntentID     string `json:"payment_intent_id"`
		PaymentClientSecret string `json:"payment_intent_client_secret"`
	}
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "malformed request body")
		return
	}

	p, err := h.payments.ConfirmIntent(r.Context(), r.PathValue("intentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toPaymentResponse(p))
}

// GetPayment returns the local payment record for an intent.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.GetStatus(r.Context(), r.PathValue("intentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toPaymentResponse(p))
}

// StripeWebhook receives processor events and folds them into local state.
// The processor retries non-2xx responses, so only verification and storage
// failures are reported as errors.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{Received: true})
}
