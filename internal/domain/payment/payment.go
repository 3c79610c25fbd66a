// Package payment tracks card payments made against orders. A local Payment
// row mirrors the processor's payment intent; the processor is always the
// authority on intent status, and local state is reconciled from it on
// confirmation and via webhook events.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Local payment statuses. They track the processor's intent lifecycle.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	// ErrNotFound is returned when no payment exists for an intent ID.
	ErrNotFound = errors.New("payment not found")
	// ErrRateLimited is returned when the processor rejects a call for
	// exceeding its rate limits.
	ErrRateLimited = errors.New("payment processor rate limited")
	// ErrUnauthenticated is returned when the processor rejects our API key.
	ErrUnauthenticated = errors.New("payment processor authentication failed")
	// ErrNetwork is returned when the processor cannot be reached.
	ErrNetwork = errors.New("payment processor unreachable")
	// ErrProcessor is returned for processor-side failures that do not fit a
	// more specific category.
	ErrProcessor = errors.New("payment processor error")
	// ErrInvalidEvent is returned for webhook payloads that fail signature
	// verification or cannot be parsed.
	ErrInvalidEvent = errors.New("invalid webhook event")
)

// InvalidRequestError is returned when the processor rejects the request's
// parameters.
type InvalidRequestError struct {
	Msg string
}

func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid payment request: %s", e.Msg)
}

// ValidationError is returned when a payment request fails local validation
// before reaching the processor.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Payment is the local record of a processor payment intent.
type Payment struct {
	ID          int64
	IntentID    string
	OrderID     string
	UserID      string
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	ChargeID    string
	LinkedOrder bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists payment records keyed by processor intent ID.
type Repository interface {
	// Create inserts a new payment record.
	Create(ctx context.Context, p *Payment) error
	// GetByIntentID returns the payment for an intent ID, or ErrNotFound.
	GetByIntentID(ctx context.Context, intentID string) (*Payment, error)
	// UpdateStatus sets the status and, when non-empty, the charge ID for an
	// intent. It returns ErrNotFound on a miss.
	UpdateStatus(ctx context.Context, intentID, status, chargeID string) error
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	ChargeID     string
	AmountCents  int64
	Currency     string
}

// ProcessorClient talks to the card processor. Implementations map processor
// errors onto this package's error taxonomy.
type ProcessorClient interface {
	// CreateIntent opens a payment intent for the given amount in the minor
	// currency unit. Metadata is attached verbatim to the intent.
	CreateIntent(ctx context.Context, amountCents int64, currency, email string, metadata map[string]string) (*Intent, error)
	// GetIntent fetches the current state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
}

// Event is a processor webhook notification, reduced to the fields the
// reconciliation flow needs.
type Event struct {
	Type     string
	IntentID string
	ChargeID string
}

// EventVerifier checks a webhook payload's signature and parses it.
type EventVerifier interface {
	VerifyAndParse(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// OrderLinker lets the payment flow cascade state onto orders without
// depending on the order package directly.
type OrderLinker interface {
	OrderExists(ctx context.Context, orderID string) (bool, error)
	DeliveryExists(ctx context.Context, orderID string) (bool, error)
	SetOrderStatus(ctx context.Context, orderID, status string) error
	SetDeliveryPaymentStatus(ctx context.Context, orderID, status string) error
}
