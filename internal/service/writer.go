package service

import (
	"context"
	"time"

	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
)

// recordMutator inspects the current record (or the synthesized default for a
// user with no billing history) and returns the record to persist. Returning
// apply=false leaves storage untouched.
type recordMutator func(rec *subscription.Record) (next *subscription.Record, apply bool)

// applyRecord is the persistence writer: a read-mutate-write cycle under
// optimistic concurrency. The write is conditioned on the record's updated_at
// not having changed since the read; on conflict the whole cycle is retried
// up to the configured attempt limit, which makes concurrent webhook
// deliveries for the same user safe without a global lock.
func (p ServiceParams) applyRecord(ctx context.Context, userID string, mutate recordMutator) (*subscription.Record, bool, error) {
	attempts := p.Config.Subscription.MaxWriteAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		exists := true
		rec, err := p.SubscriptionRepo.Get(ctx, userID)
		if err != nil {
			if !ierr.IsNotFound(err) {
				return nil, false, err
			}
			rec = subscription.NewDefaultRecord(userID)
			exists = false
		}

		next, apply := mutate(rec)
		if !apply {
			return rec, false, nil
		}

		now := time.Now().UTC()
		next.UpdatedAt = now
		if exists {
			err = p.SubscriptionRepo.Update(ctx, next, rec.UpdatedAt)
		} else {
			next.CreatedAt = now
			err = p.SubscriptionRepo.Create(ctx, next)
		}
		if err == nil {
			return next, true, nil
		}
		if !ierr.IsVersionConflict(err) {
			return nil, false, err
		}

		p.Logger.Warnw("concurrent subscription write, retrying",
			"user_id", userID,
			"attempt", attempt,
		)
	}

	return nil, false, ierr.NewErrorf("subscription write for user %s exhausted %d attempts", userID, attempts).
		WithHint("Subscription record is being updated concurrently, please retry").
		Mark(ierr.ErrConcurrentUpdate)
}
