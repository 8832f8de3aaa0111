package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/resumecook/billing/internal/config"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func newTestVerifier() *WebhookVerifier {
	cfg := config.GetDefaultConfig()
	cfg.Stripe.WebhookSecret = testWebhookSecret
	return NewWebhookVerifier(cfg)
}

// signPayload builds a Stripe-Signature header the way the processor does:
// v1 is an HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func envelope(id, eventType string, created time.Time, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"created":%d,"type":%q,"api_version":"2025-03-31.basil","data":{"object":%s}}`,
		id, created.Unix(), eventType, object))
}

func TestVerifyAndDecodeCheckoutCompleted(t *testing.T) {
	now := time.Now()
	payload := envelope("evt_1", "checkout.session.completed", now,
		`{"id":"cs_1","customer":"cus_1","subscription":{"id":"sub_1"},"metadata":{"user_id":"user-1"}}`)

	ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, types.BillingEventCheckoutCompleted, ev.Kind)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "sub_1", ev.SubscriptionID, "expanded subscription object decodes to its id")
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, now.Unix(), ev.CreatedAt.Unix())
}

func TestVerifyAndDecodeSubscriptionUpdated(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour).Unix()
	end := now.AddDate(0, 1, 0).Unix()
	payload := envelope("evt_2", "customer.subscription.updated", now, fmt.Sprintf(
		`{"id":"sub_1","customer":"cus_1","status":"active","cancel_at_period_end":true,"metadata":{"user_id":"user-1"},"items":{"data":[{"current_period_start":%d,"current_period_end":%d}]}}`,
		start, end))

	ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
	require.NoError(t, err)

	assert.Equal(t, types.BillingEventSubscriptionUpdated, ev.Kind)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "active", ev.Subscription.Status)
	assert.True(t, ev.Subscription.CancelAtPeriodEnd)
	require.NotNil(t, ev.Subscription.CurrentPeriodEnd, "item-level period bounds are accepted")
	assert.Equal(t, end, ev.Subscription.CurrentPeriodEnd.Unix())
}

func TestVerifyAndDecodeSubscriptionDeleted(t *testing.T) {
	now := time.Now()
	payload := envelope("evt_3", "customer.subscription.deleted", now,
		`{"id":"sub_1","customer":"cus_1","status":"canceled","current_period_start":100,"current_period_end":200}`)

	ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
	require.NoError(t, err)

	assert.Equal(t, types.BillingEventSubscriptionDeleted, ev.Kind)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "canceled", ev.Subscription.Status)
}

func TestVerifyAndDecodeInvoiceEvents(t *testing.T) {
	now := time.Now()

	t.Run("payment_succeeded with top-level subscription", func(t *testing.T) {
		payload := envelope("evt_4", "invoice.payment_succeeded", now,
			`{"id":"in_1","customer":"cus_1","subscription":"sub_1","billing_reason":"subscription_cycle"}`)

		ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
		require.NoError(t, err)
		assert.Equal(t, types.BillingEventPaymentSucceeded, ev.Kind)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, types.BillingReasonSubscriptionCycle, ev.BillingReason)
	})

	t.Run("payment_succeeded with nested subscription reference", func(t *testing.T) {
		payload := envelope("evt_5", "invoice.payment_succeeded", now,
			`{"id":"in_2","customer":"cus_1","billing_reason":"subscription_cycle","parent":{"subscription_details":{"subscription":"sub_1"}}}`)

		ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
		require.NoError(t, err)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
	})

	t.Run("payment_failed", func(t *testing.T) {
		payload := envelope("evt_6", "invoice.payment_failed", now,
			`{"id":"in_3","customer":"cus_1","subscription":"sub_1","billing_reason":"subscription_cycle"}`)

		ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
		require.NoError(t, err)
		assert.Equal(t, types.BillingEventPaymentFailed, ev.Kind)
	})
}

func TestVerifyAndDecodeUnknownType(t *testing.T) {
	now := time.Now()
	payload := envelope("evt_7", "customer.updated", now, `{"id":"cus_1"}`)

	ev, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
	require.NoError(t, err)

	assert.Equal(t, types.BillingEventUnknown, ev.Kind)
	assert.Equal(t, "customer.updated", ev.RawType)
	assert.NotEmpty(t, ev.Raw)
}

func TestVerifyAndDecodeInvalidSignature(t *testing.T) {
	now := time.Now()
	payload := envelope("evt_8", "checkout.session.completed", now, `{"id":"cs_1"}`)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "not-a-signature"},
		{"wrong secret", func() string {
			mac := hmac.New(sha256.New, []byte("whsec_other"))
			fmt.Fprintf(mac, "%d.%s", now.Unix(), payload)
			return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil)))
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestVerifier().VerifyAndDecode(payload, tt.header)
			require.Error(t, err)
			assert.True(t, ierr.Is(err, ierr.ErrInvalidSignature))
		})
	}
}

func TestVerifyAndDecodeSignatureTamperedPayload(t *testing.T) {
	now := time.Now()
	payload := envelope("evt_9", "checkout.session.completed", now, `{"id":"cs_1"}`)
	header := signPayload(payload, now)

	tampered := envelope("evt_9", "checkout.session.completed", now, `{"id":"cs_2"}`)
	_, err := newTestVerifier().VerifyAndDecode(tampered, header)
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrInvalidSignature))
}

func TestVerifyAndDecodeStaleSignature(t *testing.T) {
	signedAt := time.Now().Add(-time.Hour) // outside the tolerance window
	payload := envelope("evt_10", "checkout.session.completed", signedAt, `{"id":"cs_1"}`)

	_, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, signedAt))
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrStaleSignature))
	assert.False(t, ierr.Is(err, ierr.ErrInvalidSignature))
}

func TestVerifyAndDecodeMissingEventID(t *testing.T) {
	now := time.Now()
	payload := envelope("", "checkout.session.completed", now, `{"id":"cs_1"}`)

	_, err := newTestVerifier().VerifyAndDecode(payload, signPayload(payload, now))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
