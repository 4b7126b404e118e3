package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment gateway errors
var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidCallback = errors.New("payment: invalid callback signature")
	ErrGatewayUnsupportedType = errors.New("payment: unsupported callback event")
	ErrGatewayPaymentNotFound = errors.New("payment: gateway payment not found")
)

// GatewayPaymentStatus represents the status of a payment in the gateway
type GatewayPaymentStatus string

const (
	GatewayPaymentStatusPending GatewayPaymentStatus = "PENDING"
	GatewayPaymentStatusPaid    GatewayPaymentStatus = "PAID"
	GatewayPaymentStatusFailed  GatewayPaymentStatus = "FAILED"
	GatewayPaymentStatusExpired GatewayPaymentStatus = "EXPIRED"
)

// IsFinal returns true if the gateway will not change the status again
func (s GatewayPaymentStatus) IsFinal() bool {
	return s == GatewayPaymentStatusPaid || s == GatewayPaymentStatusFailed || s == GatewayPaymentStatusExpired
}

// IsSuccess returns true if the payment was captured
func (s GatewayPaymentStatus) IsSuccess() bool {
	return s == GatewayPaymentStatusPaid
}

// CheckoutRequest asks the gateway for a hosted checkout page
type CheckoutRequest struct {
	PendingPaymentID uuid.UUID
	InvoiceID        uuid.UUID
	InvoiceNumber    string
	PatientName      string
	Amount           decimal.Decimal
	SuccessURL       string
	CancelURL        string
}

// CheckoutSession is the gateway's answer to a CheckoutRequest
type CheckoutSession struct {
	SessionID        string
	AuthorizationURL string
	ExpiresAt        *time.Time
}

// GatewayPayment is the gateway's view of a checkout, from a callback or a
// status query
type GatewayPayment struct {
	Gateway          string
	SessionID        string
	TransactionID    string
	InvoiceID        uuid.UUID
	PendingPaymentID uuid.UUID
	Amount           decimal.Decimal
	Status           GatewayPaymentStatus
	PaidAt           *time.Time
}

// PaymentGateway is the port to the external card gateway.
// The concrete adapter lives in the infrastructure layer.
type PaymentGateway interface {
	// Name identifies the gateway in idempotency keys and logs
	Name() string

	// CreateCheckout opens a hosted checkout and returns the redirect URL
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)

	// QueryPayment pulls the current status of a checkout session
	QueryPayment(ctx context.Context, sessionID string) (*GatewayPayment, error)

	// VerifyCallback verifies the signature of a webhook and parses it
	VerifyCallback(ctx context.Context, payload []byte, signature string) (*GatewayPayment, error)
}
