// Package payment holds the card gateway adapter behind billing.PaymentGateway.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/hospital/billing/internal/domain/billing"
)

// GatewayName identifies Stripe in idempotency keys and ledger notes
const GatewayName = "stripe"

const (
	metaInvoiceID      = "invoice_id"
	metaPendingPayment = "pending_payment_id"
	metaInvoiceNumber  = "invoice_number"
)

// StripeGateway implements billing.PaymentGateway with Stripe Checkout
type StripeGateway struct {
	config   *StripeConfig
	sessions *session.Client
	currency string
	scale    int32
	now      func() time.Time
	logger   *zap.Logger
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeConfig) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend := config.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scale, _ := currency.Standard.Rounding(config.Currency)

	return &StripeGateway{
		config:   config,
		sessions: &session.Client{B: backend, Key: config.SecretKey},
		currency: strings.ToLower(config.Currency.String()),
		scale:    int32(scale),
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Name implements billing.PaymentGateway
func (g *StripeGateway) Name() string {
	return GatewayName
}

// CreateCheckout opens a Checkout session for the invoice amount
func (g *StripeGateway) CreateCheckout(ctx context.Context, req *billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	if req.SuccessURL == "" || req.CancelURL == "" {
		return nil, billing.NewValidationError("success_url", "success and cancel URLs are required for card checkout")
	}
	minor, err := g.toMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	expiresAt := g.now().Add(g.config.sessionTTL())
	metadata := map[string]string{
		metaInvoiceID:      req.InvoiceID.String(),
		metaPendingPayment: req.PendingPaymentID.String(),
		metaInvoiceNumber:  req.InvoiceNumber,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.InvoiceID.String()),
		ExpiresAt:         stripe.Int64(expiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(minor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Invoice " + req.InvoiceNumber),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.Metadata = metadata
	// a retried initiation for the same pending payment must not open a second session
	params.SetIdempotencyKey("checkout-" + req.PendingPaymentID.String())

	s, err := g.sessions.New(params)
	if err != nil {
		g.logger.Error("Failed to create Stripe checkout session",
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.Error(err))
		return nil, g.wrapError("create checkout session", err)
	}

	g.logger.Info("Created Stripe checkout session",
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("session_id", s.ID),
		zap.Int64("amount_minor", minor))

	out := &billing.CheckoutSession{
		SessionID:        s.ID,
		AuthorizationURL: s.URL,
	}
	if s.ExpiresAt > 0 {
		exp := time.Unix(s.ExpiresAt, 0).UTC()
		out.ExpiresAt = &exp
	} else {
		exp := expiresAt.UTC()
		out.ExpiresAt = &exp
	}
	return out, nil
}

// QueryPayment retrieves the session and maps its state
func (g *StripeGateway) QueryPayment(ctx context.Context, sessionID string) (*billing.GatewayPayment, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return nil, g.wrapError("get checkout session", err)
	}
	return g.toGatewayPayment(s, statusFromSession(s))
}

// VerifyCallback checks the Stripe-Signature header and parses checkout events
func (g *StripeGateway) VerifyCallback(_ context.Context, payload []byte, signature string) (*billing.GatewayPayment, error) {
	if len(payload) > maxWebhookPayload {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", billing.ErrGatewayInvalidCallback, maxWebhookPayload)
	}
	event, err := webhook.ConstructEvent(payload, signature, g.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrGatewayInvalidCallback, err)
	}

	var status billing.GatewayPaymentStatus
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = "" // decided by payment_status below
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		status = billing.GatewayPaymentStatusFailed
	case stripe.EventTypeCheckoutSessionExpired:
		status = billing.GatewayPaymentStatusExpired
	default:
		g.logger.Debug("Unhandled Stripe event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil, fmt.Errorf("%w: %s", billing.ErrGatewayUnsupportedType, event.Type)
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", billing.ErrGatewayInvalidCallback, err)
	}
	if status == "" {
		status = statusFromSession(&s)
	}
	return g.toGatewayPayment(&s, status)
}

func (g *StripeGateway) toGatewayPayment(s *stripe.CheckoutSession, status billing.GatewayPaymentStatus) (*billing.GatewayPayment, error) {
	if s.Currency != "" && !strings.EqualFold(string(s.Currency), g.currency) {
		return nil, fmt.Errorf("%w: session %s is in %s, expected %s",
			billing.ErrGatewayInvalidCallback, s.ID, s.Currency, g.currency)
	}

	gp := &billing.GatewayPayment{
		Gateway:   GatewayName,
		SessionID: s.ID,
		Amount:    decimal.New(s.AmountTotal, -g.scale),
		Status:    status,
	}
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		gp.TransactionID = s.PaymentIntent.ID
	}
	gp.InvoiceID = parseUUID(s.Metadata[metaInvoiceID])
	if gp.InvoiceID == uuid.Nil {
		gp.InvoiceID = parseUUID(s.ClientReferenceID)
	}
	gp.PendingPaymentID = parseUUID(s.Metadata[metaPendingPayment])
	if status.IsSuccess() {
		paidAt := g.now().UTC()
		gp.PaidAt = &paidAt
	}
	return gp, nil
}

func statusFromSession(s *stripe.CheckoutSession) billing.GatewayPaymentStatus {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return billing.GatewayPaymentStatusPaid
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return billing.GatewayPaymentStatusExpired
	default:
		return billing.GatewayPaymentStatusPending
	}
}

// toMinorUnits converts to the integer amount Stripe expects. Amounts with
// more precision than the currency allows are refused rather than rounded.
func (g *StripeGateway) toMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, billing.NewValidationError("amount", "must be positive")
	}
	minor := amount.Shift(g.scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, billing.NewValidationError("amount",
			fmt.Sprintf("has more than %d decimal places for %s", g.scale, strings.ToUpper(g.currency)))
	}
	return minor.IntPart(), nil
}

func (g *StripeGateway) wrapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("stripe: %s: %w", op, billing.ErrGatewayPaymentNotFound)
	}
	return fmt.Errorf("stripe: %s: %w: %v", op, billing.ErrGatewayRequestFailed, err)
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

var _ billing.PaymentGateway = (*StripeGateway)(nil)
