package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingPaymentStatus is the lifecycle state of an initiated payment
type PendingPaymentStatus string

const (
	PendingPaymentStatusPending   PendingPaymentStatus = "pending"
	PendingPaymentStatusConfirmed PendingPaymentStatus = "confirmed"
	PendingPaymentStatusAbandoned PendingPaymentStatus = "abandoned"
	PendingPaymentStatusFailed    PendingPaymentStatus = "failed"
)

// PendingPayment is an initiated but unconfirmed payment. It carries no
// balance effect on the invoice until a confirmation is recorded.
type PendingPayment struct {
	ID               uuid.UUID
	InvoiceID        uuid.UUID
	Method           PaymentMethod
	Amount           decimal.Decimal
	Status           PendingPaymentStatus
	GatewayReference string
	AuthorizationURL string
	SubscriberNumber string
	ClaimNumber      string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	ConfirmedAt      *time.Time
}

// NewPendingPayment creates a pending payment for the given invoice
func NewPendingPayment(invoiceID uuid.UUID, method PaymentMethod, amount decimal.Decimal) *PendingPayment {
	return &PendingPayment{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		Method:    method,
		Amount:    amount,
		Status:    PendingPaymentStatusPending,
		CreatedAt: time.Now(),
	}
}

// IsOpen returns true while the payment can still be confirmed
func (p *PendingPayment) IsOpen() bool {
	return p.Status == PendingPaymentStatusPending
}

// Confirm marks the pending payment as settled
func (p *PendingPayment) Confirm(at time.Time) {
	p.Status = PendingPaymentStatusConfirmed
	p.ConfirmedAt = &at
}

// Abandon marks the pending payment as given up by the payer
func (p *PendingPayment) Abandon() {
	p.Status = PendingPaymentStatusAbandoned
}

// Fail marks the pending payment as rejected by the gateway
func (p *PendingPayment) Fail() {
	p.Status = PendingPaymentStatusFailed
}
