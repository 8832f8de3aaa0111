package types

// BillingEventKind enumerates the billing lifecycle events consumed from the
// payment processor. Anything else decodes to BillingEventUnknown and is
// acknowledged without effect (forward-compatible ignore).
type BillingEventKind string

const (
	BillingEventCheckoutCompleted   BillingEventKind = "checkout_completed"
	BillingEventSubscriptionUpdated BillingEventKind = "subscription_updated"
	BillingEventSubscriptionDeleted BillingEventKind = "subscription_deleted"
	BillingEventPaymentSucceeded    BillingEventKind = "payment_succeeded"
	BillingEventPaymentFailed       BillingEventKind = "payment_failed"
	BillingEventUnknown             BillingEventKind = "unknown"
)

func (k BillingEventKind) String() string {
	return string(k)
}

// MetadataKeyUserID is the metadata tag attached to checkout sessions,
// customers and subscriptions at session-creation time. It is the primary
// path for resolving a processor event back to an internal user.
const MetadataKeyUserID = "user_id"

// BillingReasonSubscriptionCycle marks an invoice raised by a renewal cycle.
// Payment-succeeded events for any other billing reason are no-ops.
const BillingReasonSubscriptionCycle = "subscription_cycle"
