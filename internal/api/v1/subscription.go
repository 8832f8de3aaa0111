package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resumecook/billing/internal/api/dto"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/service"
	"github.com/resumecook/billing/internal/types"
)

// SubscriptionHandler exposes subscription state and checkout operations
// for the authenticated user.
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	log                 *logger.Logger
}

func NewSubscriptionHandler(
	subscriptionService service.SubscriptionService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		log:                 log,
	}
}

// GetStatus returns the caller's subscription status
// @Summary Get subscription status
// @Description Return the current plan, status and entitlement for the authenticated user
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/status [get]
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	if userID == "" {
		c.Error(ierr.NewError("missing user identity").Mark(ierr.ErrPermissionDenied))
		return
	}

	resp, err := h.subscriptionService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ClaimTrial claims the one-time free trial for the caller
// @Summary Claim free trial
// @Description Start the one-time free trial for the authenticated user
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TrialClaimResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/trial/claim [post]
func (h *SubscriptionHandler) ClaimTrial(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	if userID == "" {
		c.Error(ierr.NewError("missing user identity").Mark(ierr.ErrPermissionDenied))
		return
	}

	resp, err := h.subscriptionService.ClaimTrial(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StartCheckout creates a hosted checkout session for the caller
// @Summary Start a checkout session
// @Description Create a payment processor checkout session for the requested currency
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) StartCheckout(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	if userID == "" {
		c.Error(ierr.NewError("missing user identity").Mark(ierr.ErrPermissionDenied))
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("invalid checkout request").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.subscriptionService.StartCheckout(
		c.Request.Context(), userID, types.GetUserEmail(c.Request.Context()), req.Currency)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StartPortal creates a billing portal session for the caller
// @Summary Start a billing portal session
// @Description Create a payment processor billing portal session for the authenticated user
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PortalResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/portal [post]
func (h *SubscriptionHandler) StartPortal(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	if userID == "" {
		c.Error(ierr.NewError("missing user identity").Mark(ierr.ErrPermissionDenied))
		return
	}

	resp, err := h.subscriptionService.StartPortal(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPricing lists the available subscription prices
// @Summary List subscription pricing
// @Description Return the configured subscription prices per currency
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} []dto.PricingPlan
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/pricing [get]
func (h *SubscriptionHandler) GetPricing(c *gin.Context) {
	resp, err := h.subscriptionService.GetPricing(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
