package subscription

import (
	"time"

	"github.com/resumecook/billing/internal/types"
)

// Record is the single authoritative subscription record for a user. It is
// created lazily on the first billing event or trial claim, mutated only
// through the state machine and the optimistic-concurrency writer, and never
// hard-deleted: cancellation is a status, not a deletion.
type Record struct {
	UserID string `json:"user_id"`

	Status types.SubscriptionStatus `json:"status"`
	Plan   types.Plan               `json:"plan"`

	// Opaque references owned by the payment processor. The subscription ID
	// is cleared on cancellation.
	ExternalCustomerID     string `json:"external_customer_id,omitempty"`
	ExternalSubscriptionID string `json:"external_subscription_id,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	// CancelAtPeriodEnd means the record stays active/trialing until period
	// end and then transitions to cancelled.
	CancelAtPeriodEnd bool `json:"cancel_at_period_end"`

	// TrialClaimed is a monotonic guard: set at most once per user, ever.
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	TrialClaimed   bool       `json:"trial_claimed"`

	// LastEventID/LastEventAt hold the identifier and processor-assigned
	// timestamp of the last event applied to this record; LastEventAt is the
	// ordering key for the staleness rule.
	LastEventID string     `json:"last_event_id,omitempty"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`

	// UpdatedAt is the write timestamp used for optimistic concurrency.
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDefaultRecord synthesizes the record for a user with no billing history.
func NewDefaultRecord(userID string) *Record {
	now := time.Now().UTC()
	return &Record{
		UserID:    userID,
		Status:    types.SubscriptionStatusNone,
		Plan:      types.PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEntitled reports whether the record currently grants paid features.
// An active or trialing record whose period has already lapsed is not
// entitled even if no event has arrived yet to move it out of that state.
func (r *Record) IsEntitled(now time.Time) bool {
	if !r.Status.IsEntitled() {
		return false
	}
	if r.CurrentPeriodEnd == nil {
		return false
	}
	return r.CurrentPeriodEnd.After(now)
}

// Clone returns a deep copy of the record. Updater functions operate on
// clones so a failed write never leaves a shared record half-mutated.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.CurrentPeriodStart = clonetime(r.CurrentPeriodStart)
	out.CurrentPeriodEnd = clonetime(r.CurrentPeriodEnd)
	out.TrialStartedAt = clonetime(r.TrialStartedAt)
	out.LastEventAt = clonetime(r.LastEventAt)
	return &out
}

func clonetime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
