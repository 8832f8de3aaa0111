package types

import (
	"time"

	ierr "github.com/resumecook/billing/internal/errors"
)

// SubscriptionStatus represents the lifecycle status of a user's subscription.
// A user with no record is equivalent to SubscriptionStatusNone.
type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	switch s {
	case SubscriptionStatusNone, SubscriptionStatusTrialing, SubscriptionStatusActive,
		SubscriptionStatusPastDue, SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return nil
	default:
		return ierr.NewErrorf("invalid subscription status: %s", s).
			WithHint("Invalid subscription status").
			Mark(ierr.ErrValidation)
	}
}

// IsEntitled reports whether the status grants access to paid features.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Plan represents the product tier a user is on.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

func (p Plan) String() string {
	return string(p)
}

func (p Plan) Validate() error {
	switch p {
	case PlanFree, PlanPro:
		return nil
	default:
		return ierr.NewErrorf("invalid plan: %s", p).
			WithHint("Invalid plan").
			Mark(ierr.ErrValidation)
	}
}

// DefaultTrialDuration is the trial length used when none is configured.
const DefaultTrialDuration = 7 * 24 * time.Hour
