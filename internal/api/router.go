package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/resumecook/billing/internal/api/v1"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/rest/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Webhook      *v1.WebhookHandler
	Subscription *v1.SubscriptionHandler
}

// NewRouter assembles the gin engine with the middleware chain and all
// v1 routes. Webhook routes skip authentication; they are validated by
// signature instead.
func NewRouter(handlers Handlers, cfg *config.Configuration, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(log),
		middleware.ErrorHandlerMiddleware(log),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	root := router.Group("/v1")

	webhooks := root.Group("/webhooks")
	webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)

	public := root.Group("/subscriptions")
	public.GET("/pricing", handlers.Subscription.GetPricing)

	private := root.Group("/subscriptions")
	private.Use(middleware.AuthMiddleware(cfg, log))
	private.GET("/status", handlers.Subscription.GetStatus)
	private.POST("/trial/claim", handlers.Subscription.ClaimTrial)
	private.POST("/checkout", handlers.Subscription.StartCheckout)
	private.POST("/portal", handlers.Subscription.StartPortal)

	return router
}
