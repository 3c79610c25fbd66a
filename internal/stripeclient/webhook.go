package stripeclient

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/dgtech/storefront/internal/domain/payment"
)

// WebhookVerifier checks Stripe webhook signatures. With an empty secret the
// signature check is skipped and payloads are parsed as-is, which keeps local
// environments without a configured endpoint secret working; every such
// request is logged.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier builds a verifier for the given endpoint secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

var _ payment.EventVerifier = (*WebhookVerifier)(nil)

// VerifyAndParse validates the payload signature and reduces the event to the
// fields reconciliation needs.
func (v *WebhookVerifier) VerifyAndParse(ctx context.Context, payload []byte, signature string) (*payment.Event, error) {
	var event stripe.Event
	if v.secret == "" {
		zctx.From(ctx).Warn("webhook secret not configured, accepting unverified payload")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "parse event")
		}
	} else {
		ev, err := webhook.ConstructEvent(payload, signature, v.secret)
		if err != nil {
			return nil, errors.Wrap(err, "verify signature")
		}
		event = ev
	}
	return reduceEvent(&event)
}

func reduceEvent(event *stripe.Event) (*payment.Event, error) {
	out := &payment.Event{Type: string(event.Type)}
	switch {
	case event.Type == payment.EventDisputeCreated:
		var d stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &d); err != nil {
			return nil, errors.Wrap(err, "parse dispute")
		}
		if d.Charge != nil {
			out.ChargeID = d.Charge.ID
		}
		if d.PaymentIntent != nil {
			out.IntentID = d.PaymentIntent.ID
		}
	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, errors.Wrap(err, "parse payment intent")
		}
		out.IntentID = pi.ID
		if pi.LatestCharge != nil {
			out.ChargeID = pi.LatestCharge.ID
		}
	}
	return out, nil
}
