package billing

import (
	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type for Invoice
const AggregateTypeInvoice = "Invoice"

// Event type constants for Invoice
const (
	EventTypeInvoiceCreated          = "InvoiceCreated"
	EventTypeInvoiceSent             = "InvoiceSent"
	EventTypePaymentRecorded         = "PaymentRecorded"
	EventTypeInvoicePaid             = "InvoicePaid"
	EventTypeInvoiceReversed         = "InvoiceReversed"
	EventTypeInvoiceVoided           = "InvoiceVoided"
	EventTypeInvoiceCancelled        = "InvoiceCancelled"
	EventTypePaymentMethodChanged    = "PaymentMethodChanged"
	EventTypeInvoiceOverdue          = "InvoiceOverdue"
	EventTypeInsuranceClaimSubmitted = "InsuranceClaimSubmitted"
	EventTypeInsuranceClaimRejected  = "InsuranceClaimRejected"
)

// InvoiceCreatedEvent is raised when an invoice is created in draft
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Total         decimal.Decimal `json:"total"`
	TotalAnomaly  bool            `json:"total_anomaly"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		PatientID:       inv.PatientID,
		Total:           inv.Total,
		TotalAnomaly:    inv.TotalAnomaly,
	}
}

// InvoiceSentEvent is raised when an invoice is issued to the patient
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice) *InvoiceSentEvent {
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total,
	}
}

// PaymentRecordedEvent is raised for every payment posted to an invoice
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	Method     PaymentMethod   `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     InvoiceStatus   `json:"status"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeInvoice, inv.ID),
		PaymentID:       p.ID,
		Method:          p.Method,
		Amount:          p.Amount,
		BalanceDue:      inv.BalanceDue,
		Status:          inv.Status,
	}
}

// InvoicePaidEvent is raised when the balance due reaches zero
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	Total decimal.Decimal `json:"total"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID),
		Total:           inv.Total,
	}
}

// InvoiceReversedEvent is raised when an invoice is reversed and its
// encounter must be reopened
type InvoiceReversedEvent struct {
	shared.BaseDomainEvent
	EncounterID *uuid.UUID      `json:"encounter_id,omitempty"`
	Reason      string          `json:"reason"`
	Actor       string          `json:"actor"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
}

// NewInvoiceReversedEvent creates a new InvoiceReversedEvent
func NewInvoiceReversedEvent(inv *Invoice, actor string) *InvoiceReversedEvent {
	return &InvoiceReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceReversed, AggregateTypeInvoice, inv.ID),
		EncounterID:     inv.EncounterID,
		Reason:          inv.ReversalReason,
		Actor:           actor,
		AmountPaid:      inv.AmountPaid,
		BalanceDue:      inv.BalanceDue,
	}
}

// InvoiceVoidedEvent is raised when an invoice is permanently voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	Reason   string `json:"reason"`
	Override bool   `json:"override"`
	Actor    string `json:"actor"`
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice, actor string) *InvoiceVoidedEvent {
	return &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceVoided, AggregateTypeInvoice, inv.ID),
		Reason:          inv.VoidReason,
		Override:        inv.VoidOverride,
		Actor:           actor,
	}
}

// InvoiceCancelledEvent is raised when a draft invoice is abandoned
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID),
		Reason:          inv.CancelReason,
	}
}

// PaymentMethodChangedEvent is raised when the expected payment method changes
type PaymentMethodChangedEvent struct {
	shared.BaseDomainEvent
	Previous *PaymentMethod `json:"previous,omitempty"`
	Current  PaymentMethod  `json:"current"`
	Actor    string         `json:"actor"`
}

// NewPaymentMethodChangedEvent creates a new PaymentMethodChangedEvent
func NewPaymentMethodChangedEvent(inv *Invoice, previous *PaymentMethod, actor string) *PaymentMethodChangedEvent {
	return &PaymentMethodChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentMethodChanged, AggregateTypeInvoice, inv.ID),
		Previous:        previous,
		Current:         *inv.PaymentMethod,
		Actor:           actor,
	}
}

// InvoiceOverdueEvent is raised when the due date passes with a balance left
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// NewInvoiceOverdueEvent creates a new InvoiceOverdueEvent
func NewInvoiceOverdueEvent(inv *Invoice) *InvoiceOverdueEvent {
	return &InvoiceOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceOverdue, AggregateTypeInvoice, inv.ID),
		BalanceDue:      inv.BalanceDue,
	}
}

// InsuranceClaimSubmittedEvent is raised when an insurance claim is lodged
type InsuranceClaimSubmittedEvent struct {
	shared.BaseDomainEvent
	ClaimNumber string `json:"claim_number"`
}

// NewInsuranceClaimSubmittedEvent creates a new InsuranceClaimSubmittedEvent
func NewInsuranceClaimSubmittedEvent(inv *Invoice, claimNumber string) *InsuranceClaimSubmittedEvent {
	return &InsuranceClaimSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInsuranceClaimSubmitted, AggregateTypeInvoice, inv.ID),
		ClaimNumber:     claimNumber,
	}
}

// InsuranceClaimRejectedEvent is raised when the insurer declines a claim
type InsuranceClaimRejectedEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewInsuranceClaimRejectedEvent creates a new InsuranceClaimRejectedEvent
func NewInsuranceClaimRejectedEvent(inv *Invoice, reason string) *InsuranceClaimRejectedEvent {
	return &InsuranceClaimRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInsuranceClaimRejected, AggregateTypeInvoice, inv.ID),
		Reason:          reason,
	}
}
