package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/resumecook/billing/internal/domain/billingevent"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/integration/stripe"
)

// FakeProcessorClient implements stripe.Client against in-memory maps.
type FakeProcessorClient struct {
	mu sync.Mutex

	// CustomerUserIDs maps external customer IDs to the internal-user
	// metadata tag stored on them. An entry with an empty value models a
	// customer with no tag.
	CustomerUserIDs map[string]string

	// Subscriptions maps external subscription IDs to their processor view.
	Subscriptions map[string]*stripe.SubscriptionInfo

	// LookupErr, when set, is returned by every lookup; used to exercise
	// transient-failure paths.
	LookupErr error

	// CheckoutCalls records CreateCheckoutSession invocations.
	CheckoutCalls []string

	nextCustomer int
}

func NewFakeProcessorClient() *FakeProcessorClient {
	return &FakeProcessorClient{
		CustomerUserIDs: make(map[string]string),
		Subscriptions:   make(map[string]*stripe.SubscriptionInfo),
	}
}

func (f *FakeProcessorClient) GetCustomerUserID(ctx context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.LookupErr != nil {
		return "", f.LookupErr
	}
	userID, ok := f.CustomerUserIDs[customerID]
	if !ok {
		return "", ierr.NewErrorf("customer %s not found", customerID).
			WithHint("Customer not found").
			Mark(ierr.ErrNotFound)
	}
	return userID, nil
}

func (f *FakeProcessorClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.SubscriptionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	info, ok := f.Subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewErrorf("subscription %s not found", subscriptionID).
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}
	out := *info
	return &out, nil
}

func (f *FakeProcessorClient) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.LookupErr != nil {
		return "", f.LookupErr
	}
	f.nextCustomer++
	customerID := fmt.Sprintf("cus_fake_%d", f.nextCustomer)
	f.CustomerUserIDs[customerID] = userID
	return customerID, nil
}

func (f *FakeProcessorClient) CreateCheckoutSession(ctx context.Context, customerID, userID, priceID string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CheckoutCalls = append(f.CheckoutCalls, customerID)
	return &stripe.CheckoutSession{
		ID:  "cs_fake_1",
		URL: "https://checkout.example.com/cs_fake_1",
	}, nil
}

func (f *FakeProcessorClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	return "https://portal.example.com/" + customerID, nil
}

// SetSubscription registers a processor-side subscription view.
func (f *FakeProcessorClient) SetSubscription(id string, info *stripe.SubscriptionInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscriptions[id] = info
}

var _ stripe.Client = (*FakeProcessorClient)(nil)

// NewSubscriptionInfo is a convenience constructor for fake processor state.
func NewSubscriptionInfo(id, customerID, userID, status string, data billingevent.SubscriptionData) *stripe.SubscriptionInfo {
	data.Status = status
	return &stripe.SubscriptionInfo{
		ID:         id,
		CustomerID: customerID,
		UserID:     userID,
		Data:       data,
	}
}
