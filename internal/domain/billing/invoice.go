package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Invoice is the aggregate root for a patient bill.
// It owns its line items, its append-only payment ledger and the correction
// log, and enforces the lifecycle state machine.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber     string
	PatientID         uuid.UUID
	PatientName       string
	EncounterID       *uuid.UUID
	LineItems         LineItems
	Total             decimal.Decimal
	TotalAnomaly      bool
	AmountPaid        decimal.Decimal
	BalanceDue        decimal.Decimal
	Status            InvoiceStatus
	PaymentMethod     *PaymentMethod
	DueDate           *time.Time
	Notes             string
	SentAt            *time.Time
	PaidAt            *time.Time
	ReversedAt        *time.Time
	ReversalReason    string
	VoidedAt          *time.Time
	VoidReason        string
	VoidOverride      bool
	CancelledAt       *time.Time
	CancelReason      string
	StatusBeforeClaim *InvoiceStatus
	Payments          []Payment

	// entries appended since the aggregate was loaded, flushed by the repository
	newPayments    []Payment
	newCorrections []CorrectionRecord
}

// NewInvoiceInput carries the data needed to draft an invoice
type NewInvoiceInput struct {
	InvoiceNumber string
	PatientID     uuid.UUID
	PatientName   string
	EncounterID   *uuid.UUID
	LineItems     []LineItem
	DueDate       *time.Time
	Notes         string
}

// NewInvoice creates a draft invoice with its total computed from the line items
func NewInvoice(input NewInvoiceInput) (*Invoice, error) {
	if input.PatientID == uuid.Nil {
		return nil, NewValidationError("patient_id", "patient is required")
	}
	if strings.TrimSpace(input.InvoiceNumber) == "" {
		return nil, NewValidationError("invoice_number", "invoice number is required")
	}
	result, err := CalculateTotal(input.LineItems)
	if err != nil {
		return nil, err
	}

	items := make(LineItems, len(input.LineItems))
	copy(items, input.LineItems)

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     input.InvoiceNumber,
		PatientID:         input.PatientID,
		PatientName:       input.PatientName,
		EncounterID:       input.EncounterID,
		LineItems:         items,
		Total:             result.Total,
		TotalAnomaly:      result.Anomaly,
		AmountPaid:        decimal.Zero,
		BalanceDue:        result.Total,
		Status:            InvoiceStatusDraft,
		DueDate:           input.DueDate,
		Notes:             input.Notes,
		Payments:          make([]Payment, 0),
	}

	inv.RecordEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// Send issues a draft invoice to the patient
func (inv *Invoice) Send() error {
	if inv.Status != InvoiceStatusDraft {
		return NewInvalidTransitionError(inv.Status, EventSend, "only draft invoices can be sent")
	}
	if len(inv.LineItems) == 0 {
		return NewInvalidTransitionError(inv.Status, EventSend, "invoice has no line items")
	}

	now := time.Now()
	inv.Status = InvoiceStatusSent
	inv.SentAt = &now
	inv.Touch(now)

	inv.RecordEvent(NewInvoiceSentEvent(inv))
	return nil
}

// Cancel abandons a draft invoice that was never sent
func (inv *Invoice) Cancel(reason, actor string) error {
	if inv.Status != InvoiceStatusDraft {
		return NewInvalidTransitionError(inv.Status, EventCancel, "only draft invoices can be cancelled")
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "cancellation reason is required")
	}

	now := time.Now()
	inv.appendCorrection(CorrectionCancel, actor, reason, false, InvoiceStatusCancelled, now)
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.Touch(now)

	inv.RecordEvent(NewInvoiceCancelledEvent(inv))
	return nil
}

// HasGatewayTransaction returns true if a payment with the given gateway
// transaction id was already applied
func (inv *Invoice) HasGatewayTransaction(txnID string) bool {
	if txnID == "" {
		return false
	}
	for _, p := range inv.Payments {
		if p.GatewayTransactionID == txnID {
			return true
		}
	}
	return false
}

// ApplyPayment posts a verified payment against the balance.
//
// An amount above the balance but within the tolerance is posted as exactly
// the balance due. Overdue stays overdue on a partial payment.
func (inv *Invoice) ApplyPayment(input PaymentInput) (*Payment, error) {
	if !inv.Status.CanAcceptPayment() {
		guard := "status must be sent, partially_paid, overdue or pending_insurance"
		if inv.Status == InvoiceStatusPaid {
			guard = "invoice is already settled"
		}
		return nil, NewInvalidTransitionError(inv.Status, EventPayment, guard)
	}
	if !input.Method.IsValid() {
		return nil, NewValidationError("method", fmt.Sprintf("unknown payment method %q", input.Method))
	}
	if !input.Amount.IsPositive() {
		return nil, NewValidationError("amount", "amount must be greater than zero")
	}
	tolerance := input.Tolerance
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	if input.Amount.GreaterThan(inv.BalanceDue.Add(tolerance)) {
		return nil, &OverpaymentError{Amount: input.Amount, BalanceDue: inv.BalanceDue, Tolerance: tolerance}
	}
	if input.Method == PaymentMethodBankTransfer {
		ref := strings.TrimSpace(input.Reference)
		for _, p := range inv.Payments {
			if p.Method == PaymentMethodBankTransfer && strings.EqualFold(strings.TrimSpace(p.Reference), ref) {
				return nil, &DuplicateReferenceError{Method: input.Method, Reference: ref}
			}
		}
	}

	posted := decimal.Min(input.Amount, inv.BalanceDue).Round(2)
	now := time.Now()
	payment := Payment{
		ID:                   uuid.New(),
		InvoiceID:            inv.ID,
		Amount:               posted,
		Method:               input.Method,
		Reference:            strings.TrimSpace(input.Reference),
		GatewayTransactionID: input.GatewayTransactionID,
		Notes:                input.Notes,
		RecordedAt:           now,
		RecordedBy:           input.RecordedBy,
	}
	inv.Payments = append(inv.Payments, payment)
	inv.newPayments = append(inv.newPayments, payment)

	inv.AmountPaid = inv.AmountPaid.Add(posted)
	inv.BalanceDue = inv.Total.Sub(inv.AmountPaid)
	if inv.PaymentMethod == nil {
		method := input.Method
		inv.PaymentMethod = &method
	}

	switch {
	case inv.BalanceDue.IsZero():
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.StatusBeforeClaim = nil
	case inv.Status == InvoiceStatusOverdue:
		// overdue is a time flag, a partial payment does not clear it
	default:
		inv.Status = InvoiceStatusPartiallyPaid
		inv.StatusBeforeClaim = nil
	}

	inv.Touch(now)

	inv.RecordEvent(NewPaymentRecordedEvent(inv, &payment))
	if inv.Status == InvoiceStatusPaid {
		inv.RecordEvent(NewInvoicePaidEvent(inv))
	}
	return &payment, nil
}

// Reverse marks the invoice reversed. Amounts are kept as they were at the
// time of reversal so the financial history stays inspectable.
func (inv *Invoice) Reverse(reason, actor string) error {
	if !inv.Status.CanReverse() {
		return NewInvalidTransitionError(inv.Status, EventReverse, "status must be sent, partially_paid or overdue")
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "reversal reason is required")
	}

	now := time.Now()
	inv.appendCorrection(CorrectionReverse, actor, reason, false, InvoiceStatusReversed, now)
	inv.Status = InvoiceStatusReversed
	inv.ReversedAt = &now
	inv.ReversalReason = reason
	inv.Touch(now)

	inv.RecordEvent(NewInvoiceReversedEvent(inv, actor))
	return nil
}

// Void permanently cancels a sent invoice. Once money has been recorded an
// explicit override with a justification is required.
func (inv *Invoice) Void(reason string, override bool, actor string) error {
	if !inv.Status.CanVoid() {
		guard := "invoice is already terminal"
		if inv.Status == InvoiceStatusDraft {
			guard = "draft invoices are cancelled, not voided"
		}
		return NewInvalidTransitionError(inv.Status, EventVoid, guard)
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "void reason is required")
	}
	if inv.AmountPaid.IsPositive() && !override {
		return NewInvalidTransitionError(inv.Status, EventVoid, "payments have been recorded; override with a justification is required")
	}

	now := time.Now()
	inv.appendCorrection(CorrectionVoid, actor, reason, override, InvoiceStatusVoided, now)
	inv.Status = InvoiceStatusVoided
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.VoidOverride = override && inv.AmountPaid.IsPositive()
	inv.Touch(now)

	inv.RecordEvent(NewInvoiceVoidedEvent(inv, actor))
	return nil
}

// ChangePaymentMethod switches the expected payment method before any money
// has been recorded.
func (inv *Invoice) ChangePaymentMethod(method PaymentMethod, actor string) error {
	if inv.Status != InvoiceStatusSent {
		return NewInvalidTransitionError(inv.Status, EventChangePaymentMethod, "payment method can only change while the invoice is sent and unpaid")
	}
	if inv.AmountPaid.IsPositive() {
		return NewInvalidTransitionError(inv.Status, EventChangePaymentMethod, "payments have already been recorded")
	}
	if !method.IsValid() {
		return NewValidationError("method", fmt.Sprintf("unknown payment method %q", method))
	}

	previous := inv.PaymentMethod
	now := time.Now()
	record := inv.appendCorrection(CorrectionChangePaymentMethod, actor, "", false, inv.Status, now)
	record.PreviousMethod = previous
	record.NewMethod = &method

	inv.PaymentMethod = &method
	inv.Touch(now)

	inv.RecordEvent(NewPaymentMethodChangedEvent(inv, previous, actor))
	return nil
}

// IsPastDue returns true when the due date lies before asOf and money is owed
func (inv *Invoice) IsPastDue(asOf time.Time) bool {
	return inv.DueDate != nil && inv.DueDate.Before(asOf) && inv.BalanceDue.IsPositive()
}

// MarkOverdue flags the invoice overdue when its due date has passed.
// It returns false without error when the invoice does not qualify.
func (inv *Invoice) MarkOverdue(asOf time.Time) (bool, error) {
	if inv.Status == InvoiceStatusOverdue {
		return false, nil
	}
	if !inv.Status.CanBecomeOverdue() {
		return false, NewInvalidTransitionError(inv.Status, EventMarkOverdue, "status must be sent, partially_paid or pending_insurance")
	}
	if !inv.IsPastDue(asOf) {
		return false, nil
	}

	inv.Status = InvoiceStatusOverdue
	inv.StatusBeforeClaim = nil
	inv.Touch(time.Now())

	inv.RecordEvent(NewInvoiceOverdueEvent(inv))
	return true, nil
}

// SubmitClaim moves the invoice into pending_insurance while the insurer
// processes a claim.
func (inv *Invoice) SubmitClaim(claimNumber string) error {
	if !inv.Status.CanSubmitClaim() {
		return NewInvalidTransitionError(inv.Status, EventSubmitClaim, "status must be sent, partially_paid or overdue")
	}
	if !inv.BalanceDue.IsPositive() {
		return NewInvalidTransitionError(inv.Status, EventSubmitClaim, "nothing left to claim")
	}
	if strings.TrimSpace(claimNumber) == "" {
		return &MissingReferenceError{Method: PaymentMethodInsuranceClaim, Field: "claim_number"}
	}

	previous := inv.Status
	method := PaymentMethodInsuranceClaim
	inv.StatusBeforeClaim = &previous
	inv.Status = InvoiceStatusPendingInsurance
	if inv.PaymentMethod == nil {
		inv.PaymentMethod = &method
	}
	inv.Touch(time.Now())

	inv.RecordEvent(NewInsuranceClaimSubmittedEvent(inv, claimNumber))
	return nil
}

// RejectClaim returns the invoice to the status it had before the claim
func (inv *Invoice) RejectClaim(reason, actor string) error {
	if inv.Status != InvoiceStatusPendingInsurance {
		return NewInvalidTransitionError(inv.Status, EventClaimRejected, "no insurance claim is pending")
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "rejection reason is required")
	}

	restored := InvoiceStatusSent
	if inv.StatusBeforeClaim != nil {
		restored = *inv.StatusBeforeClaim
	} else if inv.AmountPaid.IsPositive() {
		restored = InvoiceStatusPartiallyPaid
	}

	now := time.Now()
	inv.appendCorrection(CorrectionClaimRejected, actor, reason, false, restored, now)
	inv.Status = restored
	inv.StatusBeforeClaim = nil
	inv.Touch(now)

	inv.RecordEvent(NewInsuranceClaimRejectedEvent(inv, reason))
	return nil
}

// CheckBalances verifies the money invariants of the aggregate
func (inv *Invoice) CheckBalances() error {
	if !inv.BalanceDue.Equal(inv.Total.Sub(inv.AmountPaid)) {
		return fmt.Errorf("balance_due %s != total %s - amount_paid %s", inv.BalanceDue, inv.Total, inv.AmountPaid)
	}
	if inv.BalanceDue.IsNegative() || inv.BalanceDue.GreaterThan(inv.Total) {
		return fmt.Errorf("balance_due %s outside [0, %s]", inv.BalanceDue, inv.Total)
	}
	sum := decimal.Zero
	for _, p := range inv.Payments {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(inv.AmountPaid) {
		return fmt.Errorf("sum of payments %s != amount_paid %s", sum, inv.AmountPaid)
	}
	return nil
}

// NewPayments returns payments applied since the invoice was loaded
func (inv *Invoice) NewPayments() []Payment {
	return inv.newPayments
}

// NewCorrections returns correction records appended since the invoice was loaded
func (inv *Invoice) NewCorrections() []CorrectionRecord {
	return inv.newCorrections
}

// MarkPersisted clears the unsaved payment and correction entries
func (inv *Invoice) MarkPersisted() {
	inv.newPayments = nil
	inv.newCorrections = nil
}

func (inv *Invoice) appendCorrection(kind CorrectionKind, actor, reason string, override bool, to InvoiceStatus, at time.Time) *CorrectionRecord {
	record := CorrectionRecord{
		ID:                 uuid.New(),
		InvoiceID:          inv.ID,
		Kind:               kind,
		Actor:              actor,
		Reason:             reason,
		Override:           override,
		FromStatus:         inv.Status,
		ToStatus:           to,
		AmountPaidSnapshot: inv.AmountPaid,
		BalanceDueSnapshot: inv.BalanceDue,
		OccurredAt:         at,
	}
	inv.newCorrections = append(inv.newCorrections, record)
	return &inv.newCorrections[len(inv.newCorrections)-1]
}
