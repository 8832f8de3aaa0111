package v1

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resumecook/billing/internal/config"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/integration/stripe"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/service"
	"github.com/resumecook/billing/internal/types"
)

// maxWebhookBodyBytes caps the accepted payload size; Stripe events are
// well under this.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives payment processor events and feeds them through
// the billing pipeline.
type WebhookHandler struct {
	verifier       *stripe.WebhookVerifier
	billingService service.BillingService
	cfg            *config.Configuration
	log            *logger.Logger
}

func NewWebhookHandler(
	verifier *stripe.WebhookVerifier,
	billingService service.BillingService,
	cfg *config.Configuration,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:       verifier,
		billingService: billingService,
		cfg:            cfg,
		log:            log,
	}
}

// HandleStripeWebhook processes an incoming Stripe webhook event
// @Summary Receive a Stripe webhook event
// @Description Verify the event signature and apply it to the subscription state
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	ev, err := h.verifier.VerifyAndDecode(payload, c.GetHeader(types.HeaderStripeSignature))
	if err != nil {
		c.Error(err)
		return
	}

	// Processing is bounded so a slow dependency surfaces as a 5xx and the
	// processor redelivers, rather than holding the connection open.
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Server.WebhookTimeout)
	defer cancel()

	resp, err := h.billingService.ProcessEvent(ctx, ev)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
