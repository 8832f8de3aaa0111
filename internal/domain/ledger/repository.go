package ledger

import "context"

// Repository is the idempotency ledger: an append-only keyed set of processed
// event identifiers backed by the storage layer's conditional-write primitive.
type Repository interface {
	// IsProcessed reports whether the event has already been fully applied.
	// Used at pipeline entry to make redelivery a cheap no-op.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkIfNew records the event as processed. It must be atomic: under
	// concurrent calls for the same eventID exactly one caller observes
	// isNew=true. A uniqueness conflict is a no-op success with isNew=false,
	// not an error. Called only after the event's state mutation has durably
	// committed, so a half-processed event is never suppressed on retry.
	MarkIfNew(ctx context.Context, eventID string) (isNew bool, err error)
}
