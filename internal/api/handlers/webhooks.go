package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/fulfillment"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stripe/stripe-go/v82"
)

// MaxWebhookBodyBytes caps the webhook request body size.
const MaxWebhookBodyBytes = 1 << 20 // 1 MiB

// WebhookVerifier checks payment-provider webhook signatures.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

// WebhookStore persists inbound webhook deliveries.
type WebhookStore interface {
	CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error
}

// WebhooksHandler receives payment-provider webhooks and drives them
// through the fulfillment pipeline.
type WebhooksHandler struct {
	verifier WebhookVerifier
	store    WebhookStore
	pipeline *fulfillment.Pipeline
	logger   zerolog.Logger
}

// NewWebhooksHandler creates a new webhooks handler.
func NewWebhooksHandler(verifier WebhookVerifier, store WebhookStore, pipeline *fulfillment.Pipeline, logger zerolog.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		verifier: verifier,
		store:    store,
		pipeline: pipeline,
		logger:   logger.With().Str("component", "webhooks_handler").Logger(),
	}
}

// RegisterRoutes registers the webhook route. The route is public; the
// signature check is the authentication.
func (h *WebhooksHandler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/webhooks/stripe", h.Stripe)
}

// Stripe handles an inbound Stripe event. Every event with a valid
// signature is acknowledged with 200, whatever fulfillment decides:
// the delivery is persisted first, so failures are repaired out of
// band by the reconciler instead of relying on provider retries.
func (h *WebhooksHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	event, err := h.verifier.VerifyWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	logEntry := models.NewWebhookLog(string(event.Type), event.ID, body)
	if err := h.store.CreateWebhookLog(c.Request.Context(), logEntry); err != nil {
		// Without the log we cannot repair a partial failure later, so
		// this is the one case where the provider should retry.
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to persist webhook delivery")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to record event"})
		return
	}

	if _, err := h.pipeline.ProcessEvent(c.Request.Context(), &event, logEntry); err != nil {
		// The delivery is on file and the outcome is on the log entry.
		// Retrying the same payload cannot change a validation verdict,
		// and transient failures belong to the reconciler now.
		h.logger.Warn().Err(err).Str("event_id", event.ID).Msg("fulfillment did not complete")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
