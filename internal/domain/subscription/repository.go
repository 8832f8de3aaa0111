package subscription

import (
	"context"
	"time"
)

// Repository defines the interface for subscription record persistence.
// Records are keyed by internal user ID, one record per user.
type Repository interface {
	// Get retrieves the record for a user. Returns an error marked
	// ierr.ErrNotFound when the user has no billing history yet.
	Get(ctx context.Context, userID string) (*Record, error)

	// Create inserts a new record. A concurrent insert for the same user
	// surfaces as an error marked ierr.ErrVersionConflict so the caller
	// re-reads and retries.
	Create(ctx context.Context, record *Record) error

	// Update writes the record conditioned on its stored updated_at still
	// matching expectedUpdatedAt. A mismatch surfaces as an error marked
	// ierr.ErrVersionConflict and leaves storage untouched.
	Update(ctx context.Context, record *Record, expectedUpdatedAt time.Time) error
}
