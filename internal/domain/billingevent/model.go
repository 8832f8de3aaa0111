package billingevent

import (
	"encoding/json"
	"time"

	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
)

// Event is the decoded form of one inbound billing event. The processor's
// loosely-typed payload is decoded exactly once at the verifier boundary into
// this tagged union; everything downstream works with typed fields.
type Event struct {
	// ID is the processor-assigned event identifier, globally unique per
	// processor. It keys the idempotency ledger.
	ID string `json:"id"`

	Kind types.BillingEventKind `json:"kind"`

	// CreatedAt is the processor-assigned creation timestamp, not receipt
	// time. It is the ordering key for the staleness rule.
	CreatedAt time.Time `json:"created_at"`

	// External references carried by the payload, when present.
	CustomerID     string `json:"customer_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`

	// UserID is the internal-user metadata tag attached at session-creation
	// time. Empty when the payload carries no tag; the identity resolver
	// falls back to a customer lookup.
	UserID string `json:"user_id,omitempty"`

	// Subscription carries the processor's view of the subscription for
	// events that describe one. For checkout and invoice events it is
	// populated by a follow-up subscription retrieve.
	Subscription *SubscriptionData `json:"subscription,omitempty"`

	// BillingReason distinguishes renewal invoices from one-off ones on
	// payment events.
	BillingReason string `json:"billing_reason,omitempty"`

	// RawType preserves the processor's own event type string, and Raw the
	// payload, for the Unknown variant and for diagnostics.
	RawType string          `json:"raw_type,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// SubscriptionData is the slice of the processor's subscription object the
// state machine consumes.
type SubscriptionData struct {
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

// Validate checks the minimal envelope fields every decoded event must carry.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ierr.NewError("event id is required").
			WithHint("Malformed billing event").
			Mark(ierr.ErrValidation)
	}
	if e.CreatedAt.IsZero() {
		return ierr.NewError("event created_at is required").
			WithHint("Malformed billing event").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MapProcessorStatus maps the processor's subscription status string onto the
// internal status enum. Unpaid subscriptions are treated as cancelled, the
// same way the processor stops attempting collection on them.
func MapProcessorStatus(status string) types.SubscriptionStatus {
	switch status {
	case "active":
		return types.SubscriptionStatusActive
	case "trialing":
		return types.SubscriptionStatusTrialing
	case "past_due":
		return types.SubscriptionStatusPastDue
	case "canceled", "unpaid":
		return types.SubscriptionStatusCancelled
	default:
		return types.SubscriptionStatusExpired
	}
}
