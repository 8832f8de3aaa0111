package stripe

import (
	"encoding/json"
	"time"

	"github.com/resumecook/billing/internal/domain/billingevent"
)

// expandableID unmarshals a field the processor sends either as a bare ID
// string or as an expanded object with an "id" field.
type expandableID struct {
	ID string
}

func (e *expandableID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.ID = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Customer     expandableID      `json:"customer"`
	Subscription expandableID      `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          expandableID      `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`

	// Period bounds live on the subscription in older API versions and on
	// the line items in newer ones; accept both.
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (s *subscriptionPayload) periodBounds() (start, end int64) {
	start, end = s.CurrentPeriodStart, s.CurrentPeriodEnd
	if start == 0 && end == 0 && len(s.Items.Data) > 0 {
		start, end = s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd
	}
	return start, end
}

func (s *subscriptionPayload) toData() *billingevent.SubscriptionData {
	data := &billingevent.SubscriptionData{
		Status:            s.Status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if start, end := s.periodBounds(); start != 0 || end != 0 {
		data.CurrentPeriodStart = unixTime(start)
		data.CurrentPeriodEnd = unixTime(end)
	}
	return data
}

type invoicePayload struct {
	ID            string       `json:"id"`
	Customer      expandableID `json:"customer"`
	Subscription  expandableID `json:"subscription"`
	BillingReason string       `json:"billing_reason"`

	// Newer API versions nest the subscription reference under parent.
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *invoicePayload) subscriptionID() string {
	if i.Subscription.ID != "" {
		return i.Subscription.ID
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
