package stripeclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/dgtech/storefront/internal/domain/payment"
)

func TestWebhookVerifierUnverifiedFallback(t *testing.T) {
	v := NewWebhookVerifier("")

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_42", "latest_charge": {"id": "ch_7"}}}
	}`)
	ev, err := v.VerifyAndParse(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, payment.EventIntentSucceeded, ev.Type)
	assert.Equal(t, "pi_42", ev.IntentID)
	assert.Equal(t, "ch_7", ev.ChargeID)

	_, err = v.VerifyAndParse(context.Background(), []byte("not json"), "")
	assert.Error(t, err)
}

func TestWebhookVerifierRejectsBadSignature(t *testing.T) {
	v := NewWebhookVerifier("whsec_test")
	_, err := v.VerifyAndParse(context.Background(), []byte(`{}`), "t=1,v1=bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify signature")
}

func TestReduceEventDispute(t *testing.T) {
	var event stripe.Event
	event.Type = "charge.dispute.created"
	event.Data = &stripe.EventData{Raw: []byte(`{"id": "dp_1", "charge": {"id": "ch_9"}, "payment_intent": {"id": "pi_9"}}`)}

	ev, err := reduceEvent(&event)
	require.NoError(t, err)
	assert.Equal(t, "ch_9", ev.ChargeID)
	assert.Equal(t, "pi_9", ev.IntentID)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "rate limited",
			err:  &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests},
			want: payment.ErrRateLimited,
		},
		{
			name: "bad key",
			err:  &stripe.Error{HTTPStatusCode: http.StatusUnauthorized},
			want: payment.ErrUnauthenticated,
		},
		{
			name: "processor failure",
			err:  &stripe.Error{HTTPStatusCode: http.StatusInternalServerError, Type: stripe.ErrorTypeAPI},
			want: payment.ErrProcessor,
		},
		{
			name: "network",
			err:  assert.AnError,
			want: payment.ErrNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	t.Run("invalid request", func(t *testing.T) {
		err := mapError(&stripe.Error{
			HTTPStatusCode: http.StatusBadRequest,
			Type:           stripe.ErrorTypeInvalidRequest,
			Msg:            "amount too small",
		})
		var invalid payment.InvalidRequestError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "amount too small", invalid.Msg)
	})
}
