// Package stripeclient adapts the Stripe API to the payment package's
// processor interfaces.
package stripeclient

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/dgtech/storefront/internal/domain/payment"
)

// Client wraps a Stripe API client. The zero value is not usable; construct
// with New.
type Client struct {
	api *client.API
}

// New builds a Stripe-backed processor client using the given secret key.
func New(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

var _ payment.ProcessorClient = (*Client)(nil)

// CreateIntent opens a payment intent with automatic payment methods.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency, email string, metadata map[string]string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

// GetIntent fetches the intent's current state from Stripe.
func (c *Client) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	pi, err := c.api.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	in := &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		in.ChargeID = pi.LatestCharge.ID
	}
	return in
}

// mapError folds Stripe API errors onto the payment package's taxonomy.
func mapError(err error) error {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return errors.Wrap(payment.ErrNetwork, err.Error())
	}
	switch {
	case sErr.HTTPStatusCode == http.StatusTooManyRequests:
		return payment.ErrRateLimited
	case sErr.HTTPStatusCode == http.StatusUnauthorized:
		return payment.ErrUnauthenticated
	case sErr.Type == stripe.ErrorTypeInvalidRequest:
		return payment.InvalidRequestError{Msg: sErr.Msg}
	default:
		return errors.Wrap(payment.ErrProcessor, sErr.Msg)
	}
}
