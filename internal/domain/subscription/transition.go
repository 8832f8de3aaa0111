package subscription

import (
	"time"

	"github.com/resumecook/billing/internal/domain/billingevent"
	"github.com/resumecook/billing/internal/types"
)

// TransitionResult is the outcome of applying one billing event to a record.
// When Applied is false the record is returned unchanged and Reason explains
// why; the event is still acknowledged as processed by the caller.
type TransitionResult struct {
	Record  *Record
	Applied bool
	Reason  string
}

// Transition is the pure subscription state machine: (record, event) -> new
// record. It performs no I/O, so arbitrary interleavings are exercised in
// unit tests without any storage. The caller owns persisting the result.
//
// Before any transition the event's processor-assigned timestamp is compared
// against the record's LastEventAt; an older event is skipped so reordered
// delivery can never regress state.
func Transition(rec *Record, ev *billingevent.Event) TransitionResult {
	out := rec.Clone()

	if rec.LastEventAt != nil && ev.CreatedAt.Before(*rec.LastEventAt) {
		return TransitionResult{Record: out, Applied: false, Reason: "stale event"}
	}

	switch ev.Kind {
	case types.BillingEventCheckoutCompleted:
		applyCheckoutCompleted(out, ev)
	case types.BillingEventSubscriptionUpdated:
		if ev.Subscription == nil {
			return TransitionResult{Record: out, Applied: false, Reason: "missing subscription payload"}
		}
		applySubscriptionUpdated(out, ev)
	case types.BillingEventSubscriptionDeleted:
		applySubscriptionDeleted(out, ev)
	case types.BillingEventPaymentSucceeded:
		if ev.BillingReason != types.BillingReasonSubscriptionCycle {
			return TransitionResult{Record: out, Applied: false, Reason: "non-renewal payment"}
		}
		if ev.SubscriptionID == "" && out.ExternalSubscriptionID == "" {
			return TransitionResult{Record: out, Applied: false, Reason: "no subscription for payment"}
		}
		applyPaymentSucceeded(out, ev)
	case types.BillingEventPaymentFailed:
		if ev.SubscriptionID == "" && out.ExternalSubscriptionID == "" {
			return TransitionResult{Record: out, Applied: false, Reason: "no subscription for payment"}
		}
		out.Status = types.SubscriptionStatusPastDue
	default:
		return TransitionResult{Record: out, Applied: false, Reason: "unknown event kind"}
	}

	out.LastEventID = ev.ID
	eventAt := ev.CreatedAt
	out.LastEventAt = &eventAt

	return TransitionResult{Record: out, Applied: true}
}

// applyCheckoutCompleted handles the first paid activation of a subscription.
func applyCheckoutCompleted(rec *Record, ev *billingevent.Event) {
	rec.Status = types.SubscriptionStatusActive
	rec.Plan = types.PlanPro
	if ev.CustomerID != "" {
		rec.ExternalCustomerID = ev.CustomerID
	}
	if ev.SubscriptionID != "" {
		rec.ExternalSubscriptionID = ev.SubscriptionID
	}
	applyPeriod(rec, ev.Subscription)
}

func applySubscriptionUpdated(rec *Record, ev *billingevent.Event) {
	status := billingevent.MapProcessorStatus(ev.Subscription.Status)
	rec.Status = status

	if status.IsEntitled() {
		rec.Plan = types.PlanPro
	} else {
		rec.Plan = types.PlanFree
	}

	if status == types.SubscriptionStatusCancelled {
		rec.ExternalSubscriptionID = ""
	} else if ev.SubscriptionID != "" {
		rec.ExternalSubscriptionID = ev.SubscriptionID
	}
	if ev.CustomerID != "" {
		rec.ExternalCustomerID = ev.CustomerID
	}
	applyPeriod(rec, ev.Subscription)
}

func applySubscriptionDeleted(rec *Record, ev *billingevent.Event) {
	rec.Status = types.SubscriptionStatusCancelled
	rec.Plan = types.PlanFree
	rec.ExternalSubscriptionID = ""
	rec.CancelAtPeriodEnd = false
	if ev.CustomerID != "" {
		rec.ExternalCustomerID = ev.CustomerID
	}
}

// applyPaymentSucceeded handles a renewal: the subscription stays (or
// returns to) active and the period bounds advance.
func applyPaymentSucceeded(rec *Record, ev *billingevent.Event) {
	rec.Status = types.SubscriptionStatusActive
	rec.Plan = types.PlanPro
	if ev.SubscriptionID != "" {
		rec.ExternalSubscriptionID = ev.SubscriptionID
	}
	applyPeriod(rec, ev.Subscription)
}

func applyPeriod(rec *Record, sub *billingevent.SubscriptionData) {
	if sub == nil {
		return
	}
	if sub.CurrentPeriodStart != nil {
		rec.CurrentPeriodStart = cloneAt(sub.CurrentPeriodStart)
	}
	if sub.CurrentPeriodEnd != nil {
		rec.CurrentPeriodEnd = cloneAt(sub.CurrentPeriodEnd)
	}
	rec.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
}

func cloneAt(t *time.Time) *time.Time {
	v := *t
	return &v
}
