package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func guardInitiation(inv *Invoice) error {
	if !inv.Status.CanAcceptPayment() {
		return NewInvalidTransitionError(inv.Status, EventInitiatePayment, "invoice is not open for payment")
	}
	return nil
}

// initiationAmount defaults to the balance due and rejects amounts the
// recorder would refuse later anyway
func initiationAmount(inv *Invoice, params ChannelParams) (decimal.Decimal, error) {
	amount := params.Amount
	if amount.IsZero() {
		amount = inv.BalanceDue
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewValidationError("amount", "amount must be greater than zero")
	}
	if amount.GreaterThan(inv.BalanceDue) {
		return decimal.Zero, &OverpaymentError{Amount: amount, BalanceDue: inv.BalanceDue}
	}
	return amount.Round(2), nil
}

// GatewayRedirectChannel settles card payments through a hosted checkout.
// Initiation never touches the invoice; the payment is recorded only when
// the gateway confirms it.
type GatewayRedirectChannel struct {
	gateway PaymentGateway
}

// NewGatewayRedirectChannel creates the card channel. A nil gateway makes
// initiation fail with ErrGatewayNotConfigured.
func NewGatewayRedirectChannel(gateway PaymentGateway) *GatewayRedirectChannel {
	return &GatewayRedirectChannel{gateway: gateway}
}

func (c *GatewayRedirectChannel) Method() PaymentMethod { return PaymentMethodCard }

func (c *GatewayRedirectChannel) RequiredReferenceFields() FieldSet {
	return FieldSet{{Name: "gateway_transaction_id", Required: true}}
}

func (c *GatewayRedirectChannel) Initiate(ctx context.Context, inv *Invoice, params ChannelParams) (*Initiation, error) {
	if err := guardInitiation(inv); err != nil {
		return nil, err
	}
	if c.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	amount, err := initiationAmount(inv, params)
	if err != nil {
		return nil, err
	}

	pending := NewPendingPayment(inv.ID, PaymentMethodCard, amount)
	session, err := c.gateway.CreateCheckout(ctx, &CheckoutRequest{
		PendingPaymentID: pending.ID,
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		PatientName:      inv.PatientName,
		Amount:           amount,
		SuccessURL:       params.SuccessURL,
		CancelURL:        params.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout for invoice %s: %w", inv.InvoiceNumber, err)
	}
	pending.GatewayReference = session.SessionID
	pending.AuthorizationURL = session.AuthorizationURL
	pending.ExpiresAt = session.ExpiresAt

	return &Initiation{Pending: pending}, nil
}

// BankTransferChannel has no initiation step. Staff verify receipt off-system
// and record it with the bank reference.
type BankTransferChannel struct{}

func (BankTransferChannel) Method() PaymentMethod { return PaymentMethodBankTransfer }

func (BankTransferChannel) RequiredReferenceFields() FieldSet {
	return FieldSet{{Name: "bank_reference", Required: true}}
}

func (BankTransferChannel) Initiate(_ context.Context, inv *Invoice, _ ChannelParams) (*Initiation, error) {
	if err := guardInitiation(inv); err != nil {
		return nil, err
	}
	return &Initiation{Immediate: true}, nil
}

// MobileMoneyChannel captures the subscriber number up front and is
// confirmed later with the operator's transaction id.
type MobileMoneyChannel struct {
	validate *validator.Validate
}

// NewMobileMoneyChannel creates the mobile money channel
func NewMobileMoneyChannel() *MobileMoneyChannel {
	return &MobileMoneyChannel{validate: validator.New()}
}

func (c *MobileMoneyChannel) Method() PaymentMethod { return PaymentMethodMobileMoney }

func (c *MobileMoneyChannel) RequiredReferenceFields() FieldSet {
	return FieldSet{{Name: "transaction_id", Required: true}}
}

func (c *MobileMoneyChannel) Initiate(_ context.Context, inv *Invoice, params ChannelParams) (*Initiation, error) {
	if err := guardInitiation(inv); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(params.SubscriberNumber)
	if number == "" {
		return nil, NewValidationError("subscriber_number", "subscriber number is required for mobile money")
	}
	if err := c.validate.Var(number, "e164"); err != nil {
		return nil, NewValidationError("subscriber_number", "subscriber number must be in E.164 format")
	}
	amount, err := initiationAmount(inv, params)
	if err != nil {
		return nil, err
	}

	pending := NewPendingPayment(inv.ID, PaymentMethodMobileMoney, amount)
	pending.SubscriberNumber = number
	return &Initiation{Pending: pending}, nil
}

// CashChannel is paid at the counter. A receipt number may be given.
type CashChannel struct{}

func (CashChannel) Method() PaymentMethod { return PaymentMethodCash }

func (CashChannel) RequiredReferenceFields() FieldSet {
	return FieldSet{{Name: "receipt_number", Required: false}}
}

func (CashChannel) Initiate(_ context.Context, inv *Invoice, _ ChannelParams) (*Initiation, error) {
	if err := guardInitiation(inv); err != nil {
		return nil, err
	}
	return &Initiation{Immediate: true}, nil
}

// InsuranceClaimChannel lodges a claim with the national insurer. The
// invoice waits in pending_insurance until the settlement is recorded or
// the claim is rejected.
type InsuranceClaimChannel struct{}

func (InsuranceClaimChannel) Method() PaymentMethod { return PaymentMethodInsuranceClaim }

func (InsuranceClaimChannel) MutatesInvoiceOnInitiate() bool { return true }

func (InsuranceClaimChannel) RequiredReferenceFields() FieldSet {
	return FieldSet{{Name: "claim_number", Required: true}}
}

func (InsuranceClaimChannel) Initiate(_ context.Context, inv *Invoice, params ChannelParams) (*Initiation, error) {
	claim := strings.TrimSpace(params.ClaimNumber)
	if claim == "" {
		return nil, &MissingReferenceError{Method: PaymentMethodInsuranceClaim, Field: "claim_number"}
	}
	amount, err := initiationAmount(inv, params)
	if err != nil {
		return nil, err
	}
	if err := inv.SubmitClaim(claim); err != nil {
		return nil, err
	}

	pending := NewPendingPayment(inv.ID, PaymentMethodInsuranceClaim, amount)
	pending.ClaimNumber = claim
	return &Initiation{Pending: pending, InvoiceChanged: true}, nil
}

// DefaultChannels returns the five settlement rails wired to a gateway
func DefaultChannels(gateway PaymentGateway) []PaymentChannel {
	return []PaymentChannel{
		NewGatewayRedirectChannel(gateway),
		BankTransferChannel{},
		NewMobileMoneyChannel(),
		CashChannel{},
		InsuranceClaimChannel{},
	}
}
