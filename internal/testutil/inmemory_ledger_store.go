package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/resumecook/billing/internal/domain/ledger"
)

// InMemoryLedgerStore implements ledger.Repository with the conditional-insert
// atomicity the contract requires: exactly one concurrent MarkIfNew caller for
// the same event ID observes isNew=true.
type InMemoryLedgerStore struct {
	mu      sync.Mutex
	entries map[string]ledger.ProcessedEvent
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		entries: make(map[string]ledger.ProcessedEvent),
	}
}

func (s *InMemoryLedgerStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[eventID]
	return ok, nil
}

func (s *InMemoryLedgerStore) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[eventID]; ok {
		return false, nil
	}
	s.entries[eventID] = ledger.ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: time.Now().UTC(),
	}
	return true, nil
}

// Count returns the number of ledger entries.
func (s *InMemoryLedgerStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
