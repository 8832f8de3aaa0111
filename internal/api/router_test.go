package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	v1 "github.com/resumecook/billing/internal/api/v1"
	"github.com/resumecook/billing/internal/cache"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/integration/stripe"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/rest/middleware"
	"github.com/resumecook/billing/internal/service"
	"github.com/resumecook/billing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	routerTestWebhookSecret = "whsec_router_test"
	routerTestJWTSecret     = "jwt_router_test"
)

type RouterSuite struct {
	suite.Suite
	router     http.Handler
	subRepo    *testutil.InMemorySubscriptionStore
	ledgerRepo *testutil.InMemoryLedgerStore
	processor  *testutil.FakeProcessorClient
	cfg        *config.Configuration
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	s.cfg.Stripe.WebhookSecret = routerTestWebhookSecret
	s.cfg.Stripe.PriceIDs = map[string]string{"USD": "price_usd"}
	s.cfg.Auth.JWTSecret = routerTestJWTSecret
	s.cfg.Subscription.Prices = map[string]string{"USD": "9.99"}

	s.subRepo = testutil.NewInMemorySubscriptionStore()
	s.ledgerRepo = testutil.NewInMemoryLedgerStore()
	s.processor = testutil.NewFakeProcessorClient()

	log := logger.NewNopLogger()
	params := service.ServiceParams{
		Logger:           log,
		Config:           s.cfg,
		SubscriptionRepo: s.subRepo,
		LedgerRepo:       s.ledgerRepo,
		Processor:        s.processor,
		Cache:            cache.New(s.cfg, log),
	}

	s.router = NewRouter(Handlers{
		Webhook: v1.NewWebhookHandler(
			stripe.NewWebhookVerifier(s.cfg),
			service.NewBillingService(params),
			s.cfg,
			log,
		),
		Subscription: v1.NewSubscriptionHandler(
			service.NewSubscriptionService(params),
			log,
		),
	}, s.cfg, log)
}

func (s *RouterSuite) bearerToken(userID string) string {
	claims := middleware.AuthClaims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(routerTestJWTSecret))
	require.NoError(s.T(), err)
	return "Bearer " + token
}

func (s *RouterSuite) signedWebhook(payload []byte) *http.Request {
	now := time.Now()
	mac := hmac.New(sha256.New, []byte(routerTestWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", now.Unix(), payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature",
		fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil))))
	return req
}

func (s *RouterSuite) TestWebhookRejectsUnsignedRequest() {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), 0, s.ledgerRepo.Count())
}

func (s *RouterSuite) TestWebhookProcessesSignedEvent() {
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","created":%d,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":"user-1"}}}}`,
		time.Now().Unix()))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.signedWebhook(payload))

	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Received bool `json:"received"`
		Applied  bool `json:"applied"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(s.T(), resp.Received)
	assert.True(s.T(), resp.Applied)
	assert.Equal(s.T(), 1, s.ledgerRepo.Count())
}

func (s *RouterSuite) TestWebhookStorageFailureIsRetryable() {
	s.subRepo.FailNextWrites = s.cfg.Subscription.MaxWriteAttempts
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","created":%d,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","metadata":{"user_id":"user-1"}}}}`,
		time.Now().Unix()))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.signedWebhook(payload))

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(s.T(), 0, s.ledgerRepo.Count())
}

func (s *RouterSuite) TestStatusRequiresAuth() {
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/status", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)

	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestStatusForAuthenticatedUser() {
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/status", nil)
	req.Header.Set("Authorization", s.bearerToken("user-1"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)

	var resp struct {
		Status   string `json:"status"`
		Plan     string `json:"plan"`
		Entitled bool   `json:"entitled"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "none", resp.Status)
	assert.Equal(s.T(), "free", resp.Plan)
	assert.False(s.T(), resp.Entitled)
}

func (s *RouterSuite) TestTrialClaimEndToEnd() {
	claim := func() bool {
		req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/trial/claim", nil)
		req.Header.Set("Authorization", s.bearerToken("user-1"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(s.T(), http.StatusOK, w.Code)

		var resp struct {
			Claimed bool `json:"claimed"`
		}
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Claimed
	}

	assert.True(s.T(), claim())
	assert.False(s.T(), claim())
}

func (s *RouterSuite) TestCheckoutValidation() {
	body := bytes.NewBufferString(`{"currency":"USDX"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/checkout", body)
	req.Header.Set("Authorization", s.bearerToken("user-1"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestCheckoutCreatesSession() {
	body := bytes.NewBufferString(`{"currency":"USD"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/checkout", body)
	req.Header.Set("Authorization", s.bearerToken("user-1"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(s.T(), resp.SessionID)
	assert.NotEmpty(s.T(), resp.URL)
}

func (s *RouterSuite) TestPricingIsPublic() {
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/pricing", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Contains(s.T(), w.Body.String(), "USD")
}
