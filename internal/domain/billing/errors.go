package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes carried by the billing error kinds.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeUnverifiedPayment  = "UNVERIFIED_PAYMENT"
	CodeMissingReference   = "MISSING_REFERENCE"
	CodeOverpayment        = "OVERPAYMENT"
	CodeDuplicateReference = "DUPLICATE_REFERENCE"
	CodeResourceBusy       = "RESOURCE_BUSY"
	CodeNotFound           = "NOT_FOUND"
)

// ValidationError reports malformed input such as bad line items or a
// non-positive amount.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *ValidationError) Unwrap() error {
	return shared.NewDomainError(CodeValidation, e.Error())
}

// InvalidTransitionError reports a state machine guard violation.
type InvalidTransitionError struct {
	From  InvoiceStatus
	Event InvoiceEvent
	Guard string
}

// NewInvalidTransitionError creates an InvalidTransitionError
func NewInvalidTransitionError(from InvoiceStatus, event InvoiceEvent, guard string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, Event: event, Guard: guard}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s invoice in %s status: %s", e.Event, e.From, e.Guard)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *InvalidTransitionError) Unwrap() error {
	return shared.NewDomainError(CodeInvalidTransition, e.Error())
}

// UnverifiedPaymentError is returned when staff have not attested that the
// money was actually received.
type UnverifiedPaymentError struct {
	InvoiceID uuid.UUID
}

func (e *UnverifiedPaymentError) Error() string {
	return "payment must be verified as received before it can be recorded"
}

// Unwrap exposes the underlying domain error for code mapping
func (e *UnverifiedPaymentError) Unwrap() error {
	return shared.NewDomainError(CodeUnverifiedPayment, e.Error())
}

// MissingReferenceError is returned when a payment lacks the proof its
// channel requires.
type MissingReferenceError struct {
	Method PaymentMethod
	Field  string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s payments require %s", e.Method, e.Field)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *MissingReferenceError) Unwrap() error {
	return shared.NewDomainError(CodeMissingReference, e.Error())
}

// OverpaymentError is returned when an amount exceeds the balance due plus
// the configured tolerance.
type OverpaymentError struct {
	Amount     decimal.Decimal
	BalanceDue decimal.Decimal
	Tolerance  decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment amount %s exceeds balance due %s", e.Amount.StringFixed(2), e.BalanceDue.StringFixed(2))
}

// Unwrap exposes the underlying domain error for code mapping
func (e *OverpaymentError) Unwrap() error {
	return shared.NewDomainError(CodeOverpayment, e.Error())
}

// DuplicateReferenceError is returned when a bank transfer reference was
// already recorded against the same invoice.
type DuplicateReferenceError struct {
	Method    PaymentMethod
	Reference string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("%s reference %q has already been recorded for this invoice", e.Method, e.Reference)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *DuplicateReferenceError) Unwrap() error {
	return shared.NewDomainError(CodeDuplicateReference, e.Error())
}

// ResourceBusyError is returned when the per-invoice lock could not be
// acquired in time, or a concurrent writer won the optimistic version check.
type ResourceBusyError struct {
	InvoiceID uuid.UUID
}

func (e *ResourceBusyError) Error() string {
	return fmt.Sprintf("invoice %s is being modified by another operation, retry shortly", e.InvoiceID)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *ResourceBusyError) Unwrap() error {
	return shared.NewDomainError(CodeResourceBusy, e.Error())
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Unwrap exposes the underlying domain error for code mapping
func (e *NotFoundError) Unwrap() error {
	return shared.NewDomainError(CodeNotFound, e.Error())
}
