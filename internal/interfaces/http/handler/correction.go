package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospital/billing/internal/domain/billing"
)

// CorrectionService applies audited corrections to invoices
type CorrectionService interface {
	Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error)
	Void(ctx context.Context, id uuid.UUID, reason string, override bool, actor string) (*billing.Invoice, error)
	ChangePaymentMethod(ctx context.Context, id uuid.UUID, method billing.PaymentMethod, actor string) (*billing.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error)
	RejectClaim(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error)
}

// CorrectionHandler handles reversal, voiding and other corrections.
// Every correction is attributed to the authenticated actor.
type CorrectionHandler struct {
	BaseHandler
	corrections CorrectionService
}

// NewCorrectionHandler creates a new CorrectionHandler
func NewCorrectionHandler(corrections CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections}
}

// Reverse godoc
// @ID           reverseInvoice
// @Summary      Reverse an invoice
// @Description  Reverse an issued or paid invoice. Recorded payments stay on the ledger.
// @Tags         corrections
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ReasonRequest true "Reversal reason"
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/reverse [post]
func (h *CorrectionHandler) Reverse(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.corrections.Reverse(c.Request.Context(), id, req.Reason, actorName(c))
	h.respond(c, inv, err)
}

// Void godoc
// @ID           voidInvoice
// @Summary      Void an invoice
// @Description  Void an invoice. Invoices with recorded payments need override=true.
// @Tags         corrections
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body VoidRequest true "Void request"
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/void [post]
func (h *CorrectionHandler) Void(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req VoidRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.corrections.Void(c.Request.Context(), id, req.Reason, req.Override, actorName(c))
	h.respond(c, inv, err)
}

// ChangePaymentMethod godoc
// @ID           changePaymentMethod
// @Summary      Change the payment method
// @Description  Correct the recorded payment method. Amounts are not touched.
// @Tags         corrections
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ChangePaymentMethodRequest true "New payment method"
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payment-method [put]
func (h *CorrectionHandler) ChangePaymentMethod(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req ChangePaymentMethodRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.corrections.ChangePaymentMethod(c.Request.Context(), id, billing.PaymentMethod(req.Method), actorName(c))
	h.respond(c, inv, err)
}

// Cancel godoc
// @ID           cancelInvoice
// @Summary      Cancel a draft invoice
// @Tags         corrections
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body CancelRequest false "Cancellation reason"
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/cancel [post]
func (h *CorrectionHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.corrections.Cancel(c.Request.Context(), id, req.Reason, actorName(c))
	h.respond(c, inv, err)
}

// RejectClaim godoc
// @ID           rejectClaim
// @Summary      Record an insurance claim rejection
// @Description  Return a pending_insurance invoice to its previous status
// @Tags         corrections
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ReasonRequest true "Rejection reason"
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/claim/reject [post]
func (h *CorrectionHandler) RejectClaim(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.corrections.RejectClaim(c.Request.Context(), id, req.Reason, actorName(c))
	h.respond(c, inv, err)
}

func (h *CorrectionHandler) respond(c *gin.Context, inv *billing.Invoice, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}
