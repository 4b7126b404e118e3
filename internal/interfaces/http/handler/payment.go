package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
)

// PaymentInitiator starts payments on a channel
type PaymentInitiator interface {
	Initiate(ctx context.Context, cmd appbilling.InitiatePaymentCommand) (*appbilling.InitiationResult, error)
}

// PaymentRecorder posts confirmed payments
type PaymentRecorder interface {
	Record(ctx context.Context, cmd appbilling.RecordPaymentCommand) (*billing.Invoice, error)
}

// CheckoutURLs are the default redirect targets of hosted card checkout
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// PaymentHandler handles payment initiation and recording
type PaymentHandler struct {
	BaseHandler
	initiator PaymentInitiator
	recorder  PaymentRecorder
	checkout  CheckoutURLs
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(initiator PaymentInitiator, recorder PaymentRecorder, checkout CheckoutURLs) *PaymentHandler {
	return &PaymentHandler{
		initiator: initiator,
		recorder:  recorder,
		checkout:  checkout,
	}
}

// Initiate godoc
// @ID           initiatePayment
// @Summary      Initiate a payment
// @Description  Start a payment on a channel. Card, mobile money and bank transfer return a pending
// @Description  payment awaiting confirmation; insurance claims move the invoice to pending_insurance.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body InitiatePaymentRequest true "Payment initiation request"
// @Success      200 {object} dto.Envelope[InitiatePaymentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments/initiate [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req InitiatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	params := billing.ChannelParams{
		SubscriberNumber: req.SubscriberNumber,
		ClaimNumber:      req.ClaimNumber,
		SuccessURL:       req.SuccessURL,
		CancelURL:        req.CancelURL,
	}
	if req.Amount != nil {
		params.Amount = *req.Amount
	}
	if params.SuccessURL == "" {
		params.SuccessURL = h.checkout.SuccessURL
	}
	if params.CancelURL == "" {
		params.CancelURL = h.checkout.CancelURL
	}

	result, err := h.initiator.Initiate(c.Request.Context(), appbilling.InitiatePaymentCommand{
		InvoiceID: id,
		Method:    billing.PaymentMethod(req.Method),
		Params:    params,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, InitiatePaymentResponse{
		Invoice: toInvoiceResponse(result.Invoice),
		Pending: toPendingResponse(result.Pending),
	})
}

// Record godoc
// @ID           recordPayment
// @Summary      Record a payment
// @Description  Record money received against an invoice. The payment must be attested as verified.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body RecordPaymentRequest true "Payment record request"
// @Success      201 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	inv, err := h.recorder.Record(c.Request.Context(), appbilling.RecordPaymentCommand{
		InvoiceID:  id,
		Amount:     req.Amount,
		Method:     billing.PaymentMethod(req.Method),
		Reference:  req.Reference,
		Notes:      req.Notes,
		Verified:   req.Verified,
		RecordedBy: actorName(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(inv))
}
