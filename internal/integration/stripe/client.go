package stripe

import (
	"context"

	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/domain/billingevent"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/types"
	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
)

// SubscriptionInfo is the slice of the processor's subscription object the
// pipeline needs when enriching checkout and invoice events.
type SubscriptionInfo struct {
	ID         string
	CustomerID string
	// UserID is the internal-user metadata tag attached at session creation,
	// empty when absent.
	UserID string
	Data   billingevent.SubscriptionData
}

// CheckoutSession is the handle returned to the client to complete checkout
// out-of-band on the processor's hosted page.
type CheckoutSession struct {
	ID  string
	URL string
}

// Client is the narrow surface of the payment processor the service depends
// on. Constructed once at startup and passed by dependency injection; tests
// substitute an in-memory fake.
type Client interface {
	// GetCustomerUserID reads the internal-user metadata tag from an
	// external customer record. Returns "" without error when the customer
	// exists but carries no tag.
	GetCustomerUserID(ctx context.Context, customerID string) (string, error)

	// GetSubscription retrieves the current state of an external
	// subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error)

	// EnsureCustomer finds the customer previously created for this email
	// or creates one tagged with the internal user ID.
	EnsureCustomer(ctx context.Context, userID, email string) (string, error)

	// CreateCheckoutSession starts a processor-hosted checkout for the
	// given price, tagging session and subscription with the internal user
	// ID so the resulting webhook events are resolvable.
	CreateCheckoutSession(ctx context.Context, customerID, userID, priceID string) (*CheckoutSession, error)

	// CreatePortalSession starts a processor-hosted billing portal session
	// for an existing customer.
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

type client struct {
	api *stripeclient.API
	cfg *config.Configuration
	log *logger.Logger
}

// NewClient creates a Stripe-backed processor client.
func NewClient(cfg *config.Configuration, log *logger.Logger) Client {
	api := &stripeclient.API{}
	api.Init(cfg.Stripe.SecretKey, nil)
	return &client{api: api, cfg: cfg, log: log}
}

func (c *client) GetCustomerUserID(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return "", mapStripeError(err, "customer lookup failed")
	}
	return cust.Metadata[types.MetadataKeyUserID], nil
}

func (c *client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, mapStripeError(err, "subscription lookup failed")
	}

	info := &SubscriptionInfo{
		ID:     sub.ID,
		UserID: sub.Metadata[types.MetadataKeyUserID],
		Data: billingevent.SubscriptionData{
			Status:            string(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		},
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		info.Data.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		info.Data.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return info, nil
}

func (c *client) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	listParams := &stripe.CustomerListParams{}
	listParams.Context = ctx
	listParams.Email = stripe.String(email)
	listParams.Limit = stripe.Int64(1)

	iter := c.api.Customers.List(listParams)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", mapStripeError(err, "customer search failed")
	}

	createParams := &stripe.CustomerParams{}
	createParams.Context = ctx
	createParams.Email = stripe.String(email)
	createParams.AddMetadata(types.MetadataKeyUserID, userID)

	cust, err := c.api.Customers.New(createParams)
	if err != nil {
		return "", mapStripeError(err, "customer creation failed")
	}

	c.log.Infow("created processor customer", "customer_id", cust.ID, "user_id", userID)
	return cust.ID, nil
}

func (c *client) CreateCheckoutSession(ctx context.Context, customerID, userID, priceID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(c.cfg.Stripe.SuccessURL),
		CancelURL:           stripe.String(c.cfg.Stripe.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				types.MetadataKeyUserID: userID,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(types.MetadataKeyUserID, userID)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapStripeError(err, "checkout session creation failed")
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.cfg.Stripe.PortalReturnURL),
	}
	params.Context = ctx

	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", mapStripeError(err, "portal session creation failed")
	}
	return session.URL, nil
}

// mapStripeError classifies processor API failures. Missing resources are
// terminal (ErrNotFound) and malformed requests are terminal validation
// errors; rate limits, processor 5xx and transport failures are transient
// lookup failures the caller surfaces as retryable so the event is
// redelivered rather than lost.
func mapStripeError(err error, msg string) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		switch {
		case stripeErr.HTTPStatusCode == 404:
			return ierr.WithError(err).
				WithHint(msg).
				Mark(ierr.ErrNotFound)
		case stripeErr.HTTPStatusCode == 429:
			return ierr.WithError(err).
				WithHint(msg).
				Mark(ierr.ErrTransientLookup)
		case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500:
			return ierr.WithError(err).
				WithHint(msg).
				Mark(ierr.ErrValidation)
		}
	}
	return ierr.WithError(err).
		WithHint(msg).
		Mark(ierr.ErrTransientLookup)
}
