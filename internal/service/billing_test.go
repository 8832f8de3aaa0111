package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/resumecook/billing/internal/cache"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/domain/billingevent"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/testutil"
	"github.com/resumecook/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	suite.Suite
	ctx            context.Context
	billingService BillingService
	subRepo        *testutil.InMemorySubscriptionStore
	ledgerRepo     *testutil.InMemoryLedgerStore
	processor      *testutil.FakeProcessorClient
	cfg            *config.Configuration
	base           time.Time
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.subRepo = testutil.NewInMemorySubscriptionStore()
	s.ledgerRepo = testutil.NewInMemoryLedgerStore()
	s.processor = testutil.NewFakeProcessorClient()
	s.cfg = config.GetDefaultConfig()
	s.base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	log := logger.NewNopLogger()
	s.billingService = NewBillingService(ServiceParams{
		Logger:           log,
		Config:           s.cfg,
		SubscriptionRepo: s.subRepo,
		LedgerRepo:       s.ledgerRepo,
		Processor:        s.processor,
		Cache:            cache.New(s.cfg, log),
	})
}

func (s *BillingServiceSuite) checkoutEvent(id, userID string, at time.Time) *billingevent.Event {
	start := at
	end := at.AddDate(0, 1, 0)
	return &billingevent.Event{
		ID:             id,
		Kind:           types.BillingEventCheckoutCompleted,
		CreatedAt:      at,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		UserID:         userID,
		Subscription: &billingevent.SubscriptionData{
			Status:             "active",
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
		},
	}
}

func (s *BillingServiceSuite) deletedEvent(id string, at time.Time) *billingevent.Event {
	return &billingevent.Event{
		ID:             id,
		Kind:           types.BillingEventSubscriptionDeleted,
		CreatedAt:      at,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}
}

func (s *BillingServiceSuite) TestProcessEventAppliesAndCommits() {
	resp, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.NoError(err)
	s.True(resp.Received)
	s.True(resp.Applied)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, rec.Status)
	s.Equal(types.PlanPro, rec.Plan)
	s.Equal("evt_1", rec.LastEventID)
	s.Equal(1, s.ledgerRepo.Count())
}

func (s *BillingServiceSuite) TestProcessEventDuplicateIsNoOp() {
	ev := s.checkoutEvent("evt_1", "user-1", s.base)
	_, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)

	resp, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)
	s.True(resp.Received)
	s.False(resp.Applied)
	s.Equal("duplicate", resp.Reason)
	s.Equal(1, s.ledgerRepo.Count())
}

func (s *BillingServiceSuite) TestProcessEventStaleIsSkippedButCommitted() {
	s.processor.CustomerUserIDs["cus_1"] = "user-1"

	_, err := s.billingService.ProcessEvent(s.ctx, s.deletedEvent("evt_2", s.base.Add(time.Hour)))
	s.NoError(err)

	// the older checkout event arrives after the deletion
	resp, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.NoError(err)
	s.False(resp.Applied)
	s.Equal("stale event", resp.Reason)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, rec.Status)
	s.Equal(types.PlanFree, rec.Plan)
	s.Equal(2, s.ledgerRepo.Count(), "skipped events still enter the ledger")
}

func (s *BillingServiceSuite) TestProcessEventOrderIndependence() {
	end := s.base.AddDate(0, 1, 0)
	e2 := &billingevent.Event{
		ID:             "evt_2",
		Kind:           types.BillingEventSubscriptionUpdated,
		CreatedAt:      s.base.Add(time.Hour),
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		UserID:         "user-1",
		Subscription: &billingevent.SubscriptionData{
			Status:            "active",
			CurrentPeriodEnd:  &end,
			CancelAtPeriodEnd: true,
		},
	}

	_, err := s.billingService.ProcessEvent(s.ctx, e2)
	s.NoError(err)
	_, err = s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.NoError(err)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, rec.Status)
	s.Equal("evt_2", rec.LastEventID)
	s.True(rec.CancelAtPeriodEnd)
}

func (s *BillingServiceSuite) TestProcessEventResolvesUserViaCustomerLookup() {
	s.processor.CustomerUserIDs["cus_1"] = "user-1"

	ev := s.checkoutEvent("evt_1", "", s.base)
	resp, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)
	s.True(resp.Applied)

	_, err = s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
}

func (s *BillingServiceSuite) TestProcessEventUnresolvableIdentityIsDropped() {
	// customer exists but carries no user tag
	s.processor.CustomerUserIDs["cus_1"] = ""

	resp, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "", s.base))
	s.NoError(err, "unresolvable identity must be acked, not retried")
	s.True(resp.Received)
	s.False(resp.Applied)
	s.Equal("unresolved identity", resp.Reason)
	s.Equal(0, s.subRepo.Count())
	s.Equal(1, s.ledgerRepo.Count())
}

func (s *BillingServiceSuite) TestProcessEventTransientLookupFails() {
	s.processor.LookupErr = ierr.NewError("processor unavailable").Mark(ierr.ErrTransientLookup)

	ev := s.checkoutEvent("evt_1", "", s.base)
	ev.Subscription = nil // force an enrichment lookup

	_, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.Error(err)
	s.Equal(0, s.ledgerRepo.Count(), "failed events must not enter the ledger")

	// the redelivery succeeds once the processor recovers
	s.processor.LookupErr = nil
	s.processor.SetSubscription("sub_1", testutil.NewSubscriptionInfo("sub_1", "cus_1", "user-1", "active", billingevent.SubscriptionData{}))
	resp, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)
	s.True(resp.Applied)
}

func (s *BillingServiceSuite) TestProcessEventEnrichesFromProcessor() {
	start := s.base
	end := s.base.AddDate(0, 1, 0)
	s.processor.SetSubscription("sub_1", testutil.NewSubscriptionInfo(
		"sub_1", "cus_1", "user-1", "active",
		billingevent.SubscriptionData{CurrentPeriodStart: &start, CurrentPeriodEnd: &end},
	))

	ev := &billingevent.Event{
		ID:             "evt_1",
		Kind:           types.BillingEventCheckoutCompleted,
		CreatedAt:      s.base,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}
	resp, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)
	s.True(resp.Applied)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.NotNil(rec.CurrentPeriodEnd)
	s.True(rec.CurrentPeriodEnd.Equal(end))
}

func (s *BillingServiceSuite) TestProcessEventEnrichmentToleratesGoneSubscription() {
	ev := s.checkoutEvent("evt_1", "user-1", s.base)
	ev.Subscription = nil // subscription already deleted processor-side

	resp, err := s.billingService.ProcessEvent(s.ctx, ev)
	s.NoError(err)
	s.True(resp.Applied)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, rec.Status)
	s.Nil(rec.CurrentPeriodEnd)
}

func (s *BillingServiceSuite) TestProcessEventUnknownKindAcked() {
	resp, err := s.billingService.ProcessEvent(s.ctx, &billingevent.Event{
		ID:        "evt_1",
		Kind:      types.BillingEventUnknown,
		CreatedAt: s.base,
		RawType:   "customer.updated",
	})
	s.NoError(err)
	s.True(resp.Received)
	s.False(resp.Applied)
	s.Equal(1, s.ledgerRepo.Count())
	s.Equal(0, s.subRepo.Count())
}

func (s *BillingServiceSuite) TestProcessEventStorageFailureSurfacesRetryable() {
	s.subRepo.FailNextWrites = 1

	_, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.Error(err, "a database failure surfaces as retryable")
	s.True(ierr.IsRetryable(err))
	s.Equal(0, s.ledgerRepo.Count())

	// redelivery after the outage completes the pipeline
	resp, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.NoError(err)
	s.True(resp.Applied)
	s.Equal(1, s.ledgerRepo.Count())
}

func (s *BillingServiceSuite) TestProcessEventConcurrentDeliveries() {
	// enough attempts that every contender outlasts the others' wins
	s.cfg.Subscription.MaxWriteAttempts = 10

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(1, s.ledgerRepo.Count())
	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, rec.Status)
	s.Equal("evt_1", rec.LastEventID)
}

func (s *BillingServiceSuite) TestLifecycleCheckoutRenewalDeletion() {
	s.processor.CustomerUserIDs["cus_1"] = "user-1"

	_, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1", "user-1", s.base))
	s.NoError(err)

	renewalStart := s.base.AddDate(0, 1, 0)
	renewalEnd := s.base.AddDate(0, 2, 0)
	_, err = s.billingService.ProcessEvent(s.ctx, &billingevent.Event{
		ID:             "evt_2",
		Kind:           types.BillingEventPaymentSucceeded,
		CreatedAt:      renewalStart,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		UserID:         "user-1",
		BillingReason:  types.BillingReasonSubscriptionCycle,
		Subscription: &billingevent.SubscriptionData{
			Status:             "active",
			CurrentPeriodStart: &renewalStart,
			CurrentPeriodEnd:   &renewalEnd,
		},
	})
	s.NoError(err)

	rec, err := s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.True(rec.CurrentPeriodEnd.Equal(renewalEnd))

	_, err = s.billingService.ProcessEvent(s.ctx, s.deletedEvent("evt_3", renewalStart.Add(time.Hour)))
	s.NoError(err)

	rec, err = s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, rec.Status)
	s.Empty(rec.ExternalSubscriptionID)

	// a replay of the original checkout cannot resurrect the subscription
	resp, err := s.billingService.ProcessEvent(s.ctx, s.checkoutEvent("evt_1b", "user-1", s.base))
	s.NoError(err)
	s.False(resp.Applied)

	rec, err = s.subRepo.Get(s.ctx, "user-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, rec.Status)
}
