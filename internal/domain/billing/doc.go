// Package billing provides the domain model for hospital invoicing and payment collection.
//
// This package implements the invoice-to-cash bounded context, which is responsible for:
//   - Computing invoice totals from billable line items
//   - Driving the invoice lifecycle state machine (draft, sent, paid, overdue, ...)
//   - Describing the payment channels (card gateway, bank transfer, mobile money,
//     cash, insurance claim) and the reference each one must carry
//   - Recording corrections (reversal, void, payment-method change) for audit
//
// Key Aggregates:
//   - Invoice: billable record for one patient encounter, with its payment ledger
//
// Entities and value objects:
//   - LineItem, Payment, CorrectionRecord, PendingPayment
//
// The billing domain integrates with:
//   - Patient directory and service-code catalog (read-only reference data)
//   - The encounter system, which is asked to reopen an encounter on reversal
//   - A card payment gateway for hosted checkout
package billing
