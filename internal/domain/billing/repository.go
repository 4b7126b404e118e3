package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Status    *InvoiceStatus
	PatientID *uuid.UUID
	Search    string
	DueBefore *time.Time
}

// InvoiceRepository defines persistence for the Invoice aggregate.
// Payments and corrections are append-only children of the invoice.
type InvoiceRepository interface {
	// FindByID returns shared.ErrNotFound when no invoice has the id
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// FindOverdueCandidates returns invoices whose due date lies before asOf,
	// that still owe money and whose status may become overdue
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)

	// Save inserts a new invoice
	Save(ctx context.Context, inv *Invoice) error

	// SaveWithLock updates the invoice guarded by its version and appends new
	// payments and corrections in the same transaction. A version mismatch
	// returns shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, inv *Invoice) error

	// GenerateInvoiceNumber returns the next INV-YYYYMMDD-NNNNN number for the day
	GenerateInvoiceNumber(ctx context.Context, at time.Time) (string, error)

	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	ListCorrections(ctx context.Context, invoiceID uuid.UUID) ([]CorrectionRecord, error)

	// ExistsGatewayTransaction reports whether a payment with the transaction id exists on any invoice
	ExistsGatewayTransaction(ctx context.Context, txnID string) (bool, error)
}

// PendingPaymentRepository persists initiated payments
type PendingPaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PendingPayment, error)
	FindByGatewayReference(ctx context.Context, reference string) (*PendingPayment, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PendingPayment, error)
	Save(ctx context.Context, p *PendingPayment) error
}

// StatsRow is the projection of an invoice used by stats
type StatsRow struct {
	Status     InvoiceStatus
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	BalanceDue decimal.Decimal
}

// StatsSource streams invoice totals for aggregation. Implementations may
// read from a replica and need not be transactional.
type StatsSource interface {
	ScanInvoiceTotals(ctx context.Context, fn func(StatsRow) error) error
}
