package stripe

import (
	"encoding/json"
	"time"

	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/domain/billingevent"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookVerifier authenticates an inbound event envelope and decodes it into
// a typed billing event. Verification is pure: no side effects, no I/O.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(cfg *config.Configuration) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    cfg.Stripe.WebhookSecret,
		tolerance: cfg.Stripe.SignatureTolerance,
	}
}

// VerifyAndDecode checks the timestamped HMAC signature over the raw body
// (constant-time, with a replay-protection tolerance window) and decodes the
// payload once into the internal tagged union. Signature failures are
// terminal: the HTTP boundary returns a client error and the processor does
// not retry.
func (v *WebhookVerifier) VerifyAndDecode(payload []byte, signatureHeader string) (*billingevent.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if ierr.Is(err, webhook.ErrTooOld) {
			return nil, ierr.WithError(err).
				WithHint("Webhook signature timestamp outside tolerance").
				Mark(ierr.ErrStaleSignature)
		}
		return nil, ierr.WithError(err).
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrInvalidSignature)
	}

	return decodeEvent(&event)
}

// decodeEvent maps a verified processor event onto the internal tagged union.
// Unrecognized event types decode to the Unknown variant with the raw payload
// preserved; they are acknowledged and ignored downstream.
func decodeEvent(event *stripe.Event) (*billingevent.Event, error) {
	out := &billingevent.Event{
		ID:        event.ID,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
		RawType:   string(event.Type),
	}

	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, decodeError(err, string(event.Type))
		}
		out.Kind = types.BillingEventCheckoutCompleted
		out.CustomerID = session.Customer.ID
		out.SubscriptionID = session.Subscription.ID
		out.UserID = session.Metadata[types.MetadataKeyUserID]

	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := decodeSubscription(event.Data.Raw, string(event.Type))
		if err != nil {
			return nil, err
		}
		out.Kind = types.BillingEventSubscriptionUpdated
		fillFromSubscription(out, sub)

	case "customer.subscription.deleted":
		sub, err := decodeSubscription(event.Data.Raw, string(event.Type))
		if err != nil {
			return nil, err
		}
		out.Kind = types.BillingEventSubscriptionDeleted
		fillFromSubscription(out, sub)

	case "invoice.payment_succeeded":
		inv, err := decodeInvoice(event.Data.Raw, string(event.Type))
		if err != nil {
			return nil, err
		}
		out.Kind = types.BillingEventPaymentSucceeded
		out.CustomerID = inv.Customer.ID
		out.SubscriptionID = inv.subscriptionID()
		out.BillingReason = inv.BillingReason

	case "invoice.payment_failed":
		inv, err := decodeInvoice(event.Data.Raw, string(event.Type))
		if err != nil {
			return nil, err
		}
		out.Kind = types.BillingEventPaymentFailed
		out.CustomerID = inv.Customer.ID
		out.SubscriptionID = inv.subscriptionID()
		out.BillingReason = inv.BillingReason

	default:
		out.Kind = types.BillingEventUnknown
		out.Raw = json.RawMessage(event.Data.Raw)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSubscription(raw json.RawMessage, eventType string) (*subscriptionPayload, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, decodeError(err, eventType)
	}
	return &sub, nil
}

func decodeInvoice(raw json.RawMessage, eventType string) (*invoicePayload, error) {
	var inv invoicePayload
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, decodeError(err, eventType)
	}
	return &inv, nil
}

func decodeError(err error, eventType string) error {
	return ierr.WithError(err).
		WithHint("Malformed webhook payload").
		WithReportableDetails(map[string]any{"event_type": eventType}).
		Mark(ierr.ErrValidation)
}

func fillFromSubscription(out *billingevent.Event, sub *subscriptionPayload) {
	out.CustomerID = sub.Customer.ID
	out.SubscriptionID = sub.ID
	out.UserID = sub.Metadata[types.MetadataKeyUserID]
	out.Subscription = sub.toData()
}
