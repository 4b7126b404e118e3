package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an immutable ledger entry crediting an invoice.
// Corrections never delete payments; they change the invoice status instead.
type Payment struct {
	ID                   uuid.UUID
	InvoiceID            uuid.UUID
	Amount               decimal.Decimal
	Method               PaymentMethod
	Reference            string
	GatewayTransactionID string
	Notes                string
	RecordedAt           time.Time
	RecordedBy           string
}

// PaymentInput carries what is needed to post a payment to an invoice
type PaymentInput struct {
	Amount               decimal.Decimal
	Method               PaymentMethod
	Reference            string
	GatewayTransactionID string
	Notes                string
	RecordedBy           string
	// Tolerance is the rounding slack allowed above the balance due
	Tolerance decimal.Decimal
}
