package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CorrectionKind identifies an audited correction operation
type CorrectionKind string

const (
	CorrectionReverse             CorrectionKind = "reverse"
	CorrectionVoid                CorrectionKind = "void"
	CorrectionChangePaymentMethod CorrectionKind = "change_payment_method"
	CorrectionCancel              CorrectionKind = "cancel"
	CorrectionClaimRejected       CorrectionKind = "claim_rejected"
)

// CorrectionRecord is an append-only audit entry describing who corrected
// an invoice, when, why, and what the balances were at that moment.
type CorrectionRecord struct {
	ID                 uuid.UUID
	InvoiceID          uuid.UUID
	Kind               CorrectionKind
	Actor              string
	Reason             string
	Override           bool
	FromStatus         InvoiceStatus
	ToStatus           InvoiceStatus
	AmountPaidSnapshot decimal.Decimal
	BalanceDueSnapshot decimal.Decimal
	PreviousMethod     *PaymentMethod
	NewMethod          *PaymentMethod
	OccurredAt         time.Time
}
