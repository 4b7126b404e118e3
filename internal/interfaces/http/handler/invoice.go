package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
)

// InvoiceService is the subset of the invoice application service the
// handler needs
type InvoiceService interface {
	Create(ctx context.Context, cmd appbilling.CreateInvoiceCommand) (*billing.Invoice, error)
	Send(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	List(ctx context.Context, filter billing.InvoiceFilter) (shared.Paginated[billing.Invoice], error)
	ListPayments(ctx context.Context, id uuid.UUID) ([]billing.Payment, error)
	ListCorrections(ctx context.Context, id uuid.UUID) ([]billing.CorrectionRecord, error)
}

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create godoc
// @ID           createInvoice
// @Summary      Create a draft invoice
// @Description  Create a draft invoice for a patient. Totals are computed from the line items.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body CreateInvoiceRequest true "Invoice creation request"
// @Success      201 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	cmd := appbilling.CreateInvoiceCommand{
		PatientID: uuid.MustParse(req.PatientID),
		LineItems: toLineItemInputs(req.LineItems),
		DueDate:   req.DueDate,
		Notes:     req.Notes,
	}
	if req.EncounterID != nil && *req.EncounterID != "" {
		encounterID, err := uuid.Parse(*req.EncounterID)
		if err != nil {
			h.fieldError(c, "encounter_id", "must be a UUID")
			return
		}
		cmd.EncounterID = &encounterID
	}

	inv, err := h.invoices.Create(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(inv))
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  List invoices filtered by status, patient or number search
// @Tags         invoices
// @Produce      json
// @Param        status query string false "Invoice status"
// @Param        patient_id query string false "Patient ID"
// @Param        search query string false "Invoice number or patient name"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort field" default(created_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Envelope[[]InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if !h.bindQuery(c, &req) {
		return
	}

	filter := billing.InvoiceFilter{Filter: shared.DefaultFilter(), Search: req.Search}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	if req.Status != "" {
		status := billing.InvoiceStatus(req.Status)
		filter.Status = &status
	}
	if req.PatientID != "" {
		patientID := uuid.MustParse(req.PatientID)
		filter.PatientID = &patientID
	}

	page, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]InvoiceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toInvoiceResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, filter.Page, filter.PageSize)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get invoice by ID
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// Send godoc
// @ID           sendInvoice
// @Summary      Issue a draft invoice
// @Description  Move a draft invoice to sent so it can accept payments
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Envelope[InvoiceResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      423 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Send(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// ListPayments godoc
// @ID           listInvoicePayments
// @Summary      List payments of an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Envelope[[]PaymentResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	payments, err := h.invoices.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	h.Success(c, out)
}

// ListCorrections godoc
// @ID           listInvoiceCorrections
// @Summary      List the correction audit trail of an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Envelope[[]CorrectionResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/corrections [get]
func (h *InvoiceHandler) ListCorrections(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	records, err := h.invoices.ListCorrections(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]CorrectionResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toCorrectionResponse(r))
	}
	h.Success(c, out)
}
