package service

import (
	"github.com/resumecook/billing/internal/cache"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/domain/ledger"
	"github.com/resumecook/billing/internal/domain/subscription"
	"github.com/resumecook/billing/internal/integration/stripe"
	"github.com/resumecook/billing/internal/logger"
)

// ServiceParams bundles the dependencies shared by all services. Constructed
// once at process start and passed by dependency injection; services embed it.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	SubscriptionRepo subscription.Repository
	LedgerRepo       ledger.Repository
	Processor        stripe.Client
	Cache            cache.Cache
}
