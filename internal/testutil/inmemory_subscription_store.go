package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
)

// InMemorySubscriptionStore implements subscription.Repository with the same
// optimistic-concurrency semantics as the Postgres repository: updates are
// conditional on the stored updated_at, creates conflict on duplicate keys.
type InMemorySubscriptionStore struct {
	mu      sync.Mutex
	records map[string]*subscription.Record

	// FailNextWrites makes the next N writes fail with a database error,
	// for exercising retry paths.
	FailNextWrites int
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		records: make(map[string]*subscription.Record),
	}
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, userID string) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ierr.NewErrorf("no subscription record for user %s", userID).
			WithHint("Subscription record not found").
			Mark(ierr.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, rec *subscription.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return err
	}
	if _, ok := s.records[rec.UserID]; ok {
		return ierr.NewErrorf("subscription record for user %s already exists", rec.UserID).
			WithHint("Subscription record already exists").
			Mark(ierr.ErrVersionConflict)
	}
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, rec *subscription.Record, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return err
	}
	current, ok := s.records[rec.UserID]
	if !ok || !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return ierr.NewErrorf("subscription record for user %s changed concurrently", rec.UserID).
			WithHint("Subscription record was modified by a concurrent writer").
			Mark(ierr.ErrVersionConflict)
	}
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *InMemorySubscriptionStore) failIfRequested() error {
	if s.FailNextWrites > 0 {
		s.FailNextWrites--
		return ierr.NewError("injected storage failure").
			WithHint("Storage unavailable").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// Count returns the number of stored records.
func (s *InMemorySubscriptionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
