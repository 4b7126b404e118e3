package handler

import (
	"time"

	"github.com/shopspring/decimal"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
)

// LineItemRequest is one billed service. Description and unit price may be
// left out when service_code names a catalog entry.
type LineItemRequest struct {
	Description string           `json:"description" binding:"max=500" example:"Consultation"`
	ServiceCode string           `json:"service_code" binding:"max=50" example:"CONS-GP"`
	Quantity    int              `json:"quantity" binding:"gte=1" example:"1"`
	UnitPrice   *decimal.Decimal `json:"unit_price" swaggertype:"string" example:"150.00"`
	Discount    decimal.Decimal  `json:"discount" swaggertype:"string" example:"0"`
}

// CreateInvoiceRequest represents a request to create a draft invoice
// @Description Request body for creating an invoice
type CreateInvoiceRequest struct {
	PatientID   string            `json:"patient_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	EncounterID *string           `json:"encounter_id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	LineItems   []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	DueDate     *time.Time        `json:"due_date" example:"2026-11-15T00:00:00Z"`
	Notes       string            `json:"notes" binding:"max=2000"`
}

// ListInvoicesRequest holds the invoice list query parameters
type ListInvoicesRequest struct {
	Status    string `form:"status" binding:"omitempty,invoice_status"`
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	Search    string `form:"search" binding:"max=100"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by" binding:"omitempty,oneof=created_at updated_at invoice_number due_date total balance_due status"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InitiatePaymentRequest starts a payment on a channel
// @Description Request body for initiating a payment
type InitiatePaymentRequest struct {
	Method           string           `json:"method" binding:"required,payment_method" example:"mobile_money"`
	Amount           *decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
	SubscriberNumber string           `json:"subscriber_number" binding:"omitempty,e164" example:"+233244123456"`
	ClaimNumber      string           `json:"claim_number" binding:"max=100" example:"NHIS-2026-0001"`
	SuccessURL       string           `json:"success_url" binding:"omitempty,url"`
	CancelURL        string           `json:"cancel_url" binding:"omitempty,url"`
}

// RecordPaymentRequest records money received against an invoice
// @Description Request body for recording a payment
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	Method    string          `json:"method" binding:"required,payment_method" example:"cash"`
	Reference string          `json:"reference" binding:"max=200" example:"RCPT-0042"`
	Notes     string          `json:"notes" binding:"max=2000"`
	Verified  bool            `json:"verified" example:"true"`
}

// ReasonRequest carries the mandatory reason of a correction
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=1000" example:"Billed to the wrong patient"`
}

// CancelRequest carries the optional reason of a draft cancellation
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// VoidRequest voids an invoice; override is needed once payments exist
type VoidRequest struct {
	Reason   string `json:"reason" binding:"required,max=1000" example:"Duplicate invoice"`
	Override bool   `json:"override" example:"false"`
}

// ChangePaymentMethodRequest corrects the recorded payment channel
type ChangePaymentMethodRequest struct {
	Method string `json:"method" binding:"required,payment_method" example:"bank_transfer"`
}

// LineItemResponse is a billed line with its computed amount
type LineItemResponse struct {
	Description string          `json:"description"`
	ServiceCode string          `json:"service_code,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string"`
	Discount    decimal.Decimal `json:"discount" swaggertype:"string"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string"`
}

// InvoiceResponse represents an invoice in API responses
// @Description Invoice details returned by the API
type InvoiceResponse struct {
	ID             string             `json:"id"`
	InvoiceNumber  string             `json:"invoice_number" example:"INV-20261016-0001"`
	PatientID      string             `json:"patient_id"`
	PatientName    string             `json:"patient_name"`
	EncounterID    *string            `json:"encounter_id,omitempty"`
	LineItems      []LineItemResponse `json:"line_items"`
	Total          decimal.Decimal    `json:"total" swaggertype:"string"`
	TotalAnomaly   bool               `json:"total_anomaly"`
	AmountPaid     decimal.Decimal    `json:"amount_paid" swaggertype:"string"`
	BalanceDue     decimal.Decimal    `json:"balance_due" swaggertype:"string"`
	Status         string             `json:"status" example:"sent"`
	PaymentMethod  *string            `json:"payment_method,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	PaidAt         *time.Time         `json:"paid_at,omitempty"`
	ReversedAt     *time.Time         `json:"reversed_at,omitempty"`
	ReversalReason string             `json:"reversal_reason,omitempty"`
	VoidedAt       *time.Time         `json:"voided_at,omitempty"`
	VoidReason     string             `json:"void_reason,omitempty"`
	VoidOverride   bool               `json:"void_override,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason   string             `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Version        int                `json:"version"`
}

// PaymentResponse is one ledger entry
type PaymentResponse struct {
	ID                   string          `json:"id"`
	InvoiceID            string          `json:"invoice_id"`
	Amount               decimal.Decimal `json:"amount" swaggertype:"string"`
	Method               string          `json:"method"`
	Reference            string          `json:"reference,omitempty"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	RecordedAt           time.Time       `json:"recorded_at"`
	RecordedBy           string          `json:"recorded_by,omitempty"`
}

// CorrectionResponse is one audit record
type CorrectionResponse struct {
	ID                 string          `json:"id"`
	InvoiceID          string          `json:"invoice_id"`
	Kind               string          `json:"kind" example:"reverse"`
	Actor              string          `json:"actor"`
	Reason             string          `json:"reason,omitempty"`
	Override           bool            `json:"override,omitempty"`
	FromStatus         string          `json:"from_status"`
	ToStatus           string          `json:"to_status"`
	AmountPaidSnapshot decimal.Decimal `json:"amount_paid_snapshot" swaggertype:"string"`
	BalanceDueSnapshot decimal.Decimal `json:"balance_due_snapshot" swaggertype:"string"`
	PreviousMethod     *string         `json:"previous_method,omitempty"`
	NewMethod          *string         `json:"new_method,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// PendingPaymentResponse describes a payment awaiting confirmation
type PendingPaymentResponse struct {
	ID               string          `json:"id"`
	Method           string          `json:"method"`
	Amount           decimal.Decimal `json:"amount" swaggertype:"string"`
	Status           string          `json:"status"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	SubscriberNumber string          `json:"subscriber_number,omitempty"`
	ClaimNumber      string          `json:"claim_number,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
}

// InitiatePaymentResponse is the invoice after initiation plus any pending payment
type InitiatePaymentResponse struct {
	Invoice InvoiceResponse         `json:"invoice"`
	Pending *PendingPaymentResponse `json:"pending_payment,omitempty"`
}

func methodPtr(m *billing.PaymentMethod) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		items = append(items, LineItemResponse{
			Description: li.Description,
			ServiceCode: li.ServiceCode,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Discount:    li.Discount,
			Amount:      li.Amount(),
		})
	}

	resp := InvoiceResponse{
		ID:             inv.ID.String(),
		InvoiceNumber:  inv.InvoiceNumber,
		PatientID:      inv.PatientID.String(),
		PatientName:    inv.PatientName,
		LineItems:      items,
		Total:          inv.Total,
		TotalAnomaly:   inv.TotalAnomaly,
		AmountPaid:     inv.AmountPaid,
		BalanceDue:     inv.BalanceDue,
		Status:         inv.Status.String(),
		PaymentMethod:  methodPtr(inv.PaymentMethod),
		DueDate:        inv.DueDate,
		Notes:          inv.Notes,
		SentAt:         inv.SentAt,
		PaidAt:         inv.PaidAt,
		ReversedAt:     inv.ReversedAt,
		ReversalReason: inv.ReversalReason,
		VoidedAt:       inv.VoidedAt,
		VoidReason:     inv.VoidReason,
		VoidOverride:   inv.VoidOverride,
		CancelledAt:    inv.CancelledAt,
		CancelReason:   inv.CancelReason,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
		Version:        inv.Version,
	}
	if inv.EncounterID != nil {
		id := inv.EncounterID.String()
		resp.EncounterID = &id
	}
	return resp
}

func toPaymentResponse(p billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID.String(),
		InvoiceID:            p.InvoiceID.String(),
		Amount:               p.Amount,
		Method:               p.Method.String(),
		Reference:            p.Reference,
		GatewayTransactionID: p.GatewayTransactionID,
		Notes:                p.Notes,
		RecordedAt:           p.RecordedAt,
		RecordedBy:           p.RecordedBy,
	}
}

func toCorrectionResponse(r billing.CorrectionRecord) CorrectionResponse {
	return CorrectionResponse{
		ID:                 r.ID.String(),
		InvoiceID:          r.InvoiceID.String(),
		Kind:               string(r.Kind),
		Actor:              r.Actor,
		Reason:             r.Reason,
		Override:           r.Override,
		FromStatus:         r.FromStatus.String(),
		ToStatus:           r.ToStatus.String(),
		AmountPaidSnapshot: r.AmountPaidSnapshot,
		BalanceDueSnapshot: r.BalanceDueSnapshot,
		PreviousMethod:     methodPtr(r.PreviousMethod),
		NewMethod:          methodPtr(r.NewMethod),
		OccurredAt:         r.OccurredAt,
	}
}

func toPendingResponse(p *billing.PendingPayment) *PendingPaymentResponse {
	if p == nil {
		return nil
	}
	return &PendingPaymentResponse{
		ID:               p.ID.String(),
		Method:           p.Method.String(),
		Amount:           p.Amount,
		Status:           string(p.Status),
		AuthorizationURL: p.AuthorizationURL,
		SubscriberNumber: p.SubscriberNumber,
		ClaimNumber:      p.ClaimNumber,
		ExpiresAt:        p.ExpiresAt,
	}
}

func toLineItemInputs(items []LineItemRequest) []appbilling.LineItemInput {
	out := make([]appbilling.LineItemInput, 0, len(items))
	for _, li := range items {
		out = append(out, appbilling.LineItemInput{
			Description: li.Description,
			ServiceCode: li.ServiceCode,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Discount:    li.Discount,
		})
	}
	return out
}
