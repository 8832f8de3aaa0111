package service

import (
	"context"

	"github.com/resumecook/billing/internal/api/dto"
	"github.com/resumecook/billing/internal/domain/billingevent"
	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
)

// BillingService reconciles asynchronous billing-lifecycle events from the
// payment processor into the authoritative per-user subscription record.
type BillingService interface {
	// ProcessEvent runs one decoded event through the pipeline:
	// idempotency check, identity resolution, state machine, persistence,
	// ledger commit. A nil error means the event is acknowledged — applied,
	// or dropped as a deliberate no-op. A non-nil error means the caller
	// must return a retryable failure so the processor redelivers.
	ProcessEvent(ctx context.Context, ev *billingevent.Event) (*dto.WebhookResponse, error)
}

type billingService struct {
	ServiceParams
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{ServiceParams: params}
}

func (s *billingService) ProcessEvent(ctx context.Context, ev *billingevent.Event) (*dto.WebhookResponse, error) {
	log := s.Logger.WithContext(ctx)

	log.Infow("processing billing event",
		"event_id", ev.ID,
		"event_kind", ev.Kind,
		"event_type", ev.RawType,
		"event_created_at", ev.CreatedAt,
	)

	// Redelivery of a fully committed event is a cheap no-op. The ledger
	// entry is written only after persistence succeeds, so an event that
	// failed mid-pipeline re-enters the full pipeline here.
	processed, err := s.LedgerRepo.IsProcessed(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if processed {
		log.Infow("duplicate billing event, skipping", "event_id", ev.ID)
		return ack(false, "duplicate"), nil
	}

	// Forward-compatible ignore: unknown kinds are committed and acked.
	if ev.Kind == types.BillingEventUnknown {
		log.Infow("ignoring unknown billing event kind", "event_type", ev.RawType)
		return s.commit(ctx, ev, false, "unknown event kind")
	}

	if err := s.enrich(ctx, ev); err != nil {
		return nil, err
	}

	userID, err := s.resolveUserID(ctx, ev)
	if err != nil {
		if ierr.IsUnresolvedIdentity(err) {
			// Terminal: retrying cannot repair a missing identity tag.
			// Logged for manual reconciliation, committed and acked.
			log.Errorw("billing event identity unresolved, dropping",
				"event_id", ev.ID,
				"event_kind", ev.Kind,
				"customer_id", ev.CustomerID,
				"subscription_id", ev.SubscriptionID,
			)
			return s.commit(ctx, ev, false, "unresolved identity")
		}
		return nil, err
	}

	var result subscription.TransitionResult
	_, applied, err := s.applyRecord(ctx, userID, func(rec *subscription.Record) (*subscription.Record, bool) {
		result = subscription.Transition(rec, ev)
		return result.Record, result.Applied
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.Cache.Delete(ctx, statusCacheKey(userID))
		log.Infow("billing event applied",
			"event_id", ev.ID,
			"user_id", userID,
			"status", result.Record.Status,
		)
	} else {
		log.Infow("billing event produced no transition",
			"event_id", ev.ID,
			"user_id", userID,
			"reason", result.Reason,
		)
	}

	return s.commit(ctx, ev, applied, result.Reason)
}

// commit writes the idempotency ledger entry after all effects are durable
// and builds the acknowledgement.
func (s *billingService) commit(ctx context.Context, ev *billingevent.Event, applied bool, reason string) (*dto.WebhookResponse, error) {
	isNew, err := s.LedgerRepo.MarkIfNew(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if !isNew {
		// A concurrent delivery of the same event committed first. Both
		// ran the idempotent state machine; acknowledging both is safe.
		s.Logger.WithContext(ctx).Infow("billing event committed concurrently", "event_id", ev.ID)
	}
	return ack(applied, reason), nil
}

// enrich fills in the processor's subscription view for event kinds whose
// payload does not carry it (checkout sessions and invoices reference the
// subscription by ID only).
func (s *billingService) enrich(ctx context.Context, ev *billingevent.Event) error {
	if ev.Subscription != nil || ev.SubscriptionID == "" {
		return nil
	}

	switch ev.Kind {
	case types.BillingEventCheckoutCompleted, types.BillingEventPaymentSucceeded:
	default:
		return nil
	}

	info, err := s.Processor.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// The subscription may already be gone; the transition still
			// applies with the payload's own references.
			s.Logger.WithContext(ctx).Warnw("subscription not found during enrichment",
				"event_id", ev.ID,
				"subscription_id", ev.SubscriptionID,
			)
			return nil
		}
		return err
	}

	ev.Subscription = &info.Data
	if ev.CustomerID == "" {
		ev.CustomerID = info.CustomerID
	}
	if ev.UserID == "" {
		ev.UserID = info.UserID
	}
	return nil
}

// resolveUserID maps the event to an internal user: the metadata tag attached
// at session-creation time first, a customer lookup as fallback. Transient
// lookup failures propagate as retryable; a missing tag is terminal.
func (s *billingService) resolveUserID(ctx context.Context, ev *billingevent.Event) (string, error) {
	if ev.UserID != "" {
		return ev.UserID, nil
	}

	if ev.CustomerID != "" {
		userID, err := s.Processor.GetCustomerUserID(ctx, ev.CustomerID)
		if err != nil && !ierr.IsNotFound(err) {
			return "", ierr.WithError(err).
				WithHint("Customer lookup failed").
				Mark(ierr.ErrTransientLookup)
		}
		if userID != "" {
			return userID, nil
		}
	}

	return "", ierr.NewErrorf("no internal user for event %s", ev.ID).
		WithHint("Billing event carries no resolvable user identity").
		Mark(ierr.ErrUnresolvedIdentity)
}

func ack(applied bool, reason string) *dto.WebhookResponse {
	return &dto.WebhookResponse{Received: true, Applied: applied, Reason: reason}
}

func statusCacheKey(userID string) string {
	return "subscription:status:" + userID
}
