package dto

// WebhookResponse acknowledges an inbound billing event. Applied is false for
// idempotent no-ops: duplicates, stale events, unknown kinds and dropped
// unresolvable events are all acknowledged without effect.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason,omitempty"`
}
