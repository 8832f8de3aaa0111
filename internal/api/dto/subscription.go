package dto

import (
	"time"

	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
	"github.com/shopspring/decimal"
)

// SubscriptionStatusResponse is the projection of a user's subscription
// record consumed by the UI for optimistic-to-authoritative reconciliation
// after checkout redirects.
type SubscriptionStatusResponse struct {
	Status            types.SubscriptionStatus `json:"status"`
	Plan              types.Plan               `json:"plan"`
	CurrentPeriodEnd  *time.Time               `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
	TrialClaimed      bool                     `json:"trial_claimed"`
	TrialStartedAt    *time.Time               `json:"trial_started_at,omitempty"`
	Entitled          bool                     `json:"entitled"`
}

// NewSubscriptionStatusResponse projects a record; a nil record means the
// user has no billing history yet.
func NewSubscriptionStatusResponse(rec *subscription.Record, now time.Time) *SubscriptionStatusResponse {
	if rec == nil {
		return &SubscriptionStatusResponse{
			Status: types.SubscriptionStatusNone,
			Plan:   types.PlanFree,
		}
	}
	return &SubscriptionStatusResponse{
		Status:            rec.Status,
		Plan:              rec.Plan,
		CurrentPeriodEnd:  rec.CurrentPeriodEnd,
		CancelAtPeriodEnd: rec.CancelAtPeriodEnd,
		TrialClaimed:      rec.TrialClaimed,
		TrialStartedAt:    rec.TrialStartedAt,
		Entitled:          rec.IsEntitled(now),
	}
}

// TrialClaimResponse reports the outcome of a trial claim attempt.
type TrialClaimResponse struct {
	Claimed bool `json:"claimed"`
}

// CheckoutRequest starts a processor-hosted checkout session.
type CheckoutRequest struct {
	Currency string `json:"currency" binding:"required"`
}

func (r *CheckoutRequest) Validate() error {
	if len(r.Currency) != 3 {
		return ierr.NewError("invalid currency code").
			WithHint("Currency must be a 3-letter ISO code").
			WithReportableDetails(map[string]any{"currency": r.Currency}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckoutResponse is the opaque handle the client completes out-of-band.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalResponse carries the processor-hosted billing portal URL.
type PortalResponse struct {
	URL string `json:"url"`
}

// PricingPlan describes one purchasable plan for the pricing page.
type PricingPlan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Interval string          `json:"interval"`
}
