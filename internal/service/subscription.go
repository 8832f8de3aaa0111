package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/resumecook/billing/internal/api/dto"
	"github.com/resumecook/billing/internal/cache"
	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SubscriptionService serves the client-facing subscription surface: status
// reads, the one-time trial claim, and the checkout/portal orchestration.
type SubscriptionService interface {
	// GetStatus returns the current record projection for a user. A user
	// with no billing history gets the "none" projection.
	GetStatus(ctx context.Context, userID string) (*dto.SubscriptionStatusResponse, error)

	// ClaimTrial activates the one-time trial. At most one call per user
	// ever observes claimed=true, under any concurrency.
	ClaimTrial(ctx context.Context, userID string) (*dto.TrialClaimResponse, error)

	// StartCheckout creates a processor-hosted checkout session tagged with
	// the internal user ID. It never mutates the subscription record; the
	// webhook pipeline does that once the processor confirms.
	StartCheckout(ctx context.Context, userID, email, currency string) (*dto.CheckoutResponse, error)

	// StartPortal creates a processor-hosted billing portal session for a
	// user with an existing customer record.
	StartPortal(ctx context.Context, userID string) (*dto.PortalResponse, error)

	// GetPricing lists the purchasable plans per configured currency.
	GetPricing(ctx context.Context) ([]*dto.PricingPlan, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) GetStatus(ctx context.Context, userID string) (*dto.SubscriptionStatusResponse, error) {
	key := statusCacheKey(userID)
	if value, found := s.Cache.Get(ctx, key); found {
		if cached, ok := cache.UnmarshalCacheValue[dto.SubscriptionStatusResponse](value); ok {
			return cached, nil
		}
	}

	rec, err := s.SubscriptionRepo.Get(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	resp := dto.NewSubscriptionStatusResponse(rec, time.Now().UTC())
	s.Cache.Set(ctx, key, resp, s.Config.Cache.TTL)
	return resp, nil
}

func (s *subscriptionService) ClaimTrial(ctx context.Context, userID string) (*dto.TrialClaimResponse, error) {
	log := s.Logger.WithContext(ctx)

	claimed := false
	_, _, err := s.applyRecord(ctx, userID, func(rec *subscription.Record) (*subscription.Record, bool) {
		// trial_claimed is a monotonic guard: once set it never resets,
		// not even after cancellation or expiry. A user already on a paid
		// subscription cannot claim either; the claim must never overwrite
		// authoritative paid state.
		if rec.TrialClaimed || rec.ExternalSubscriptionID != "" || rec.IsEntitled(time.Now().UTC()) {
			claimed = false
			return rec, false
		}
		claimed = true

		now := time.Now().UTC()
		end := now.Add(s.Config.Subscription.TrialDuration)

		next := rec.Clone()
		next.Status = types.SubscriptionStatusTrialing
		next.Plan = types.PlanPro
		next.TrialClaimed = true
		next.TrialStartedAt = &now
		next.CurrentPeriodStart = &now
		next.CurrentPeriodEnd = &end
		return next, true
	})
	if err != nil {
		return nil, err
	}

	if claimed {
		s.Cache.Delete(ctx, statusCacheKey(userID))
		log.Infow("trial claimed", "user_id", userID)
	} else {
		log.Infow("trial not claimable", "user_id", userID)
	}

	return &dto.TrialClaimResponse{Claimed: claimed}, nil
}

func (s *subscriptionService) StartCheckout(ctx context.Context, userID, email, currency string) (*dto.CheckoutResponse, error) {
	log := s.Logger.WithContext(ctx)

	currency = strings.ToUpper(currency)
	priceID, ok := s.Config.Stripe.PriceIDs[currency]
	if !ok {
		return nil, ierr.NewErrorf("no price configured for currency %s", currency).
			WithHint("Pricing is not available for this currency").
			WithReportableDetails(map[string]any{"currency": currency}).
			Mark(ierr.ErrValidation)
	}

	// Reuse the customer already attached to the record, if any; otherwise
	// find-or-create one tagged with the internal user ID so the resulting
	// webhook events resolve back to this user.
	customerID := ""
	rec, err := s.SubscriptionRepo.Get(ctx, userID)
	if err == nil {
		customerID = rec.ExternalCustomerID
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}
	if customerID == "" {
		customerID, err = s.Processor.EnsureCustomer(ctx, userID, email)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.Processor.CreateCheckoutSession(ctx, customerID, userID, priceID)
	if err != nil {
		return nil, err
	}

	log.Infow("checkout session created",
		"user_id", userID,
		"customer_id", customerID,
		"session_id", session.ID,
		"currency", currency,
	)

	return &dto.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (s *subscriptionService) StartPortal(ctx context.Context, userID string) (*dto.PortalResponse, error) {
	rec, err := s.SubscriptionRepo.Get(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.NewError("no billing account for user").
				WithHint("No billing account found").
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	if rec.ExternalCustomerID == "" {
		return nil, ierr.NewError("record has no external customer").
			WithHint("No billing account found").
			Mark(ierr.ErrNotFound)
	}

	url, err := s.Processor.CreatePortalSession(ctx, rec.ExternalCustomerID)
	if err != nil {
		return nil, err
	}
	return &dto.PortalResponse{URL: url}, nil
}

func (s *subscriptionService) GetPricing(ctx context.Context) ([]*dto.PricingPlan, error) {
	currencies := lo.Keys(s.Config.Subscription.Prices)
	sort.Strings(currencies)

	plans := make([]*dto.PricingPlan, 0, len(currencies))
	for _, currency := range currencies {
		amount, err := decimal.NewFromString(s.Config.Subscription.Prices[currency])
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid configured price").
				WithReportableDetails(map[string]any{"currency": currency}).
				Mark(ierr.ErrInternal)
		}
		plans = append(plans, &dto.PricingPlan{
			ID:       "pro-" + strings.ToLower(currency),
			Name:     "Pro",
			Currency: currency,
			Amount:   amount,
			Interval: "month",
		})
	}
	return plans, nil
}
