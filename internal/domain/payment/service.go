package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Webhook event types the reconciliation flow reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventDisputeCreated  = "charge.dispute.created"
)

// Order-side states the payment flow cascades onto. They mirror the order
// package's lifecycle without importing it.
const (
	orderStatusCleared       = "Cleared"
	orderStatusCancelled     = "Cancelled"
	deliveryPaymentCompleted = "Completed"
)

// CreateIntentRequest asks for a new payment intent. AmountCents is in the
// minor unit of the currency; an empty Currency falls back to the service
// default. OrderID is optional and linked best-effort.
type CreateIntentRequest struct {
	UserID      string
	OrderID     string
	Email       string
	AmountCents int64
	Currency    string
}

// Service owns the payment intent lifecycle and the reconciliation of local
// state against the processor.
type Service struct {
	payments  Repository
	processor ProcessorClient
	verifier  EventVerifier
	orders    OrderLinker
	currency  string

	now func() time.Time
}

// NewService constructs a payment service using currency as the default for
// new intents.
func NewService(payments Repository, processor ProcessorClient, verifier EventVerifier, orders OrderLinker, currency string) *Service {
	return &Service{
		payments:  payments,
		processor: processor,
		verifier:  verifier,
		orders:    orders,
		currency:  currency,
		now:       time.Now,
	}
}

// CreateIntent opens a payment intent with the processor and records it
// locally in the pending state. A missing order reference does not fail the
// call; the payment is simply stored unlinked and reconciliation will skip
// the order cascade.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Payment, string, error) {
	if req.AmountCents <= 0 {
		return nil, "", ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, "", ValidationError{Field: "email", Msg: "required"}
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	linked := false
	if req.OrderID != "" {
		ok, err := s.orders.OrderExists(ctx, req.OrderID)
		if err != nil {
			return nil, "", errors.Wrap(err, "check order")
		}
		if !ok {
			zctx.From(ctx).Warn("payment references unknown order, storing unlinked",
				zap.String("order_id", req.OrderID))
		}
		linked = ok
	}

	metadata := map[string]string{}
	if req.OrderID != "" {
		metadata["order_id"] = req.OrderID
	}
	if req.UserID != "" {
		metadata["user_id"] = req.UserID
	}
	intent, err := s.processor.CreateIntent(ctx, req.AmountCents, currency, req.Email, metadata)
	if err != nil {
		return nil, "", errors.Wrap(err, "create intent")
	}

	p := &Payment{
		IntentID:    intent.ID,
		OrderID:     req.OrderID,
		UserID:      req.UserID,
		Email:       req.Email,
		Amount:      decimal.New(req.AmountCents, -2),
		Currency:    currency,
		Status:      StatusPending,
		LinkedOrder: linked,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, "", errors.Wrap(err, "store payment")
	}
	return p, intent.ClientSecret, nil
}

// ConfirmIntent re-fetches the intent from the processor and folds its status
// into the local record. The processor's answer is authoritative; the local
// row only moves to the mapped status. Confirming an intent that is already
// in the mapped status is a no-op. A successful confirmation cascades onto
// the linked order, marking it Cleared and its delivery payment Completed.
func (s *Service) ConfirmIntent(ctx context.Context, intentID string) (*Payment, error) {
	p, err := s.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	intent, err := s.processor.GetIntent(ctx, intentID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch intent")
	}
	status := mapIntentStatus(intent.Status)
	if p.Status == status {
		return p, nil
	}

	if err := s.payments.UpdateStatus(ctx, intentID, status, intent.ChargeID); err != nil {
		return nil, errors.Wrap(err, "update payment")
	}
	p.Status = status
	if intent.ChargeID != "" {
		p.ChargeID = intent.ChargeID
	}

	if status == StatusSucceeded {
		if err := s.cascadeSuccess(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HandleWebhook verifies a processor webhook and reconciles local state from
// it. Events for intents we have no record of are logged and acknowledged so
// the processor stops retrying; event types outside the handled set are
// acknowledged untouched.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.verifier.VerifyAndParse(ctx, payload, signature)
	if err != nil {
		return errors.Wrapf(ErrInvalidEvent, "verify webhook: %s", err)
	}
	lg := zctx.From(ctx).With(zap.String("event_type", ev.Type), zap.String("intent_id", ev.IntentID))

	switch ev.Type {
	case EventIntentSucceeded:
		p, err := s.payments.GetByIntentID(ctx, ev.IntentID)
		if errors.Is(err, ErrNotFound) {
			lg.Warn("webhook for unknown payment intent")
			return nil
		}
		if err != nil {
			return err
		}
		if p.Status == StatusSucceeded {
			return nil
		}
		if err := s.payments.UpdateStatus(ctx, ev.IntentID, StatusSucceeded, ev.ChargeID); err != nil {
			return errors.Wrap(err, "update payment")
		}
		p.Status = StatusSucceeded
		return s.cascadeSuccess(ctx, p)

	case EventIntentFailed:
		p, err := s.payments.GetByIntentID(ctx, ev.IntentID)
		if errors.Is(err, ErrNotFound) {
			lg.Warn("webhook for unknown payment intent")
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, ev.IntentID, StatusFailed, ev.ChargeID); err != nil {
			return errors.Wrap(err, "update payment")
		}
		if p.LinkedOrder && p.OrderID != "" {
			if err := s.orders.SetOrderStatus(ctx, p.OrderID, orderStatusCancelled); err != nil {
				return errors.Wrap(err, "cancel order")
			}
		}
		return nil

	case EventDisputeCreated:
		lg.Warn("charge disputed", zap.String("charge_id", ev.ChargeID))
		return nil

	default:
		lg.Debug("ignoring webhook event")
		return nil
	}
}

// GetStatus returns the local payment record for an intent.
func (s *Service) GetStatus(ctx context.Context, intentID string) (*Payment, error) {
	return s.payments.GetByIntentID(ctx, intentID)
}

func (s *Service) cascadeSuccess(ctx context.Context, p *Payment) error {
	if !p.LinkedOrder || p.OrderID == "" {
		return nil
	}
	if err := s.orders.SetOrderStatus(ctx, p.OrderID, orderStatusCleared); err != nil {
		return errors.Wrap(err, "clear order")
	}
	hasDelivery, err := s.orders.DeliveryExists(ctx, p.OrderID)
	if err != nil {
		return errors.Wrap(err, "check delivery")
	}
	if hasDelivery {
		if err := s.orders.SetDeliveryPaymentStatus(ctx, p.OrderID, deliveryPaymentCompleted); err != nil {
			return errors.Wrap(err, "complete delivery payment")
		}
	}
	return nil
}

// mapIntentStatus folds the processor's intent statuses onto the local set.
// Statuses still on the way to a decision stay pending.
func mapIntentStatus(remote string) string {
	switch remote {
	case "succeeded":
		return StatusSucceeded
	case "requires_payment_method":
		return StatusFailed
	case "canceled":
		return StatusCancelled
	default:
		return StatusPending
	}
}
