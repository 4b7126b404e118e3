package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/logger"
)

// Maximum webhook payload size (64KB - Stripe webhooks are typically small)
const maxWebhookPayloadSize = 65536

// CallbackProcessor applies gateway confirmations
type CallbackProcessor interface {
	ProcessCallback(ctx context.Context, payload []byte, signature string) (*appbilling.CallbackResult, error)
	Reconcile(ctx context.Context, pendingID uuid.UUID) (*appbilling.CallbackResult, error)
}

// WebhookHandler handles gateway callbacks and reconciliation pulls.
// The Stripe endpoint is called by Stripe and does not require authentication.
type WebhookHandler struct {
	BaseHandler
	callbacks CallbackProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(callbacks CallbackProcessor) *WebhookHandler {
	return &WebhookHandler{callbacks: callbacks}
}

// StripeWebhookResponse represents the response for Stripe webhook
//
//	@Description	Stripe webhook response
type StripeWebhookResponse struct {
	Received         bool   `json:"received" example:"true"`
	InvoiceID        string `json:"invoice_id,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty" example:"pi_3Nk2"`
	Processed        bool   `json:"processed"`
	AlreadyProcessed bool   `json:"already_processed"`
	Ignored          bool   `json:"ignored"`
	Message          string `json:"message,omitempty"`
}

func toWebhookResponse(result *appbilling.CallbackResult) StripeWebhookResponse {
	resp := StripeWebhookResponse{
		Received:         true,
		TransactionID:    result.TransactionID,
		Processed:        result.Processed,
		AlreadyProcessed: result.AlreadyProcessed,
		Ignored:          result.Ignored,
		Message:          result.Message,
	}
	if result.InvoiceID != uuid.Nil {
		resp.InvoiceID = result.InvoiceID.String()
	}
	return resp
}

// HandleStripeWebhook godoc
//
//	@ID				handleStripeWebhook
//	@Summary		Handle Stripe webhook
//	@Description	Receive checkout confirmations from Stripe and record the card payment once
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string					true	"Stripe webhook signature"
//	@Success		200					{object}	StripeWebhookResponse	"Webhook processed"
//	@Failure		400					{object}	StripeWebhookResponse	"Invalid signature"
//	@Failure		413					{object}	StripeWebhookResponse	"Payload too large"
//	@Failure		500					{object}	StripeWebhookResponse	"Processing failed, retry"
//	@Failure		503					{object}	StripeWebhookResponse	"Gateway not configured"
//	@Router			/webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Stripe requires the raw body for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.callbacks.ProcessCallback(c.Request.Context(), payload, signature)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toWebhookResponse(result))
	case errors.Is(err, appbilling.ErrCallbackVerificationFailed):
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Webhook signature verification failed"})
	case errors.Is(err, billing.ErrGatewayNotConfigured):
		c.JSON(http.StatusServiceUnavailable, StripeWebhookResponse{Message: "Payment gateway is not configured"})
	case errors.Is(err, appbilling.ErrCallbackInvoiceUnknown):
		// retrying cannot identify the invoice either
		logger.GetGinLogger(c).Warn("Webhook not tied to an invoice", zap.Error(err))
		c.JSON(http.StatusOK, StripeWebhookResponse{Received: true, Ignored: true, Message: "Invoice not identified"})
	default:
		// non-2xx makes Stripe retry; do not expose internal details
		h.logError(c, err)
		c.JSON(http.StatusInternalServerError, StripeWebhookResponse{Message: "Webhook processing failed"})
	}
}

// Reconcile godoc
//
//	@ID				reconcilePendingPayment
//	@Summary		Reconcile a pending card payment
//	@Description	Pull the checkout status from the gateway and record the payment if it was paid
//	@Tags			payments
//	@Produce		json
//	@Param			id	path		string	true	"Pending payment ID"	format(uuid)
//	@Success		200	{object}	dto.Envelope[StripeWebhookResponse]
//	@Failure		400	{object}	dto.ErrorResponse
//	@Failure		404	{object}	dto.ErrorResponse
//	@Failure		502	{object}	dto.ErrorResponse
//	@Failure		503	{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/pending-payments/{id}/reconcile [post]
func (h *WebhookHandler) Reconcile(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	result, err := h.callbacks.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toWebhookResponse(result))
}
