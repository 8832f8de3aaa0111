package ledger

import "time"

// ProcessedEvent is one entry in the idempotency ledger: an event identifier
// that has been fully applied, including its persistence step. Entries are
// write-once and never deleted.
type ProcessedEvent struct {
	EventID     string    `json:"event_id"`
	ProcessedAt time.Time `json:"processed_at"`
}
