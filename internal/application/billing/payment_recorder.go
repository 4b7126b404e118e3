package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrPaymentAlreadyApplied is returned to gateway callbacks when their
// transaction was already credited to the invoice. Callers treat it as a
// successful no-op. A manual entry of the same reference gets a
// DuplicateReferenceError instead.
var ErrPaymentAlreadyApplied = errors.New("payment: gateway transaction already applied")

// RecordPaymentCommand is a confirmed payment to post against an invoice
type RecordPaymentCommand struct {
	InvoiceID  uuid.UUID
	Amount     decimal.Decimal
	Method     billing.PaymentMethod
	Reference  string
	Notes      string
	Verified   bool
	RecordedBy string
	// GatewayTransactionID is set by gateway callbacks; for card payments it
	// defaults to Reference
	GatewayTransactionID string
}

// PaymentRecorder posts verified payments to invoices
type PaymentRecorder struct {
	invoiceMutator
	channels  *billing.ChannelRegistry
	tolerance decimal.Decimal
}

// PaymentRecorderConfig holds the dependencies of PaymentRecorder
type PaymentRecorderConfig struct {
	Repo        billing.InvoiceRepository
	Locker      billing.InvoiceLocker
	LockTimeout time.Duration
	Channels    *billing.ChannelRegistry
	Tolerance   decimal.Decimal
	Publisher   shared.EventPublisher
	Metrics     Metrics
	Logger      *zap.Logger
}

// NewPaymentRecorder creates a new PaymentRecorder
func NewPaymentRecorder(cfg PaymentRecorderConfig) *PaymentRecorder {
	return &PaymentRecorder{
		invoiceMutator: invoiceMutator{
			repo:        cfg.Repo,
			locker:      cfg.Locker,
			lockTimeout: lockTimeoutOrDefault(cfg.LockTimeout),
			publisher:   cfg.Publisher,
			metrics:     metricsOrNop(cfg.Metrics),
			logger:      loggerOrNop(cfg.Logger),
		},
		channels:  cfg.Channels,
		tolerance: cfg.Tolerance,
	}
}

// Record validates a payment, then applies it under the invoice lock.
//
// Input rules are checked before the lock. Status, balance and duplicate
// rules are checked again on the freshly loaded invoice after the lock.
func (r *PaymentRecorder) Record(ctx context.Context, cmd RecordPaymentCommand) (*billing.Invoice, error) {
	if !cmd.Verified {
		return nil, &billing.UnverifiedPaymentError{InvoiceID: cmd.InvoiceID}
	}
	if !cmd.Amount.IsPositive() {
		return nil, billing.NewValidationError("amount", "amount must be greater than zero")
	}
	if !cmd.Method.IsValid() {
		return nil, billing.NewValidationError("method", "unknown payment method")
	}
	if err := r.channels.ValidateReference(cmd.Method, cmd.Reference); err != nil {
		return nil, err
	}
	txnID := cmd.GatewayTransactionID
	if txnID == "" && cmd.Method.RequiresGatewayConfirmation() {
		txnID = cmd.Reference
	}

	var payment *billing.Payment
	inv, err := r.mutate(ctx, cmd.InvoiceID, func(inv *billing.Invoice) error {
		if inv.HasGatewayTransaction(txnID) {
			return ErrPaymentAlreadyApplied
		}
		p, err := inv.ApplyPayment(billing.PaymentInput{
			Amount:               cmd.Amount,
			Method:               cmd.Method,
			Reference:            cmd.Reference,
			GatewayTransactionID: txnID,
			Notes:                cmd.Notes,
			RecordedBy:           cmd.RecordedBy,
			Tolerance:            r.tolerance,
		})
		payment = p
		return err
	})
	if errors.Is(err, ErrPaymentAlreadyApplied) && cmd.GatewayTransactionID == "" {
		err = &billing.DuplicateReferenceError{Method: cmd.Method, Reference: txnID}
	}
	if err != nil {
		if !errors.Is(err, ErrPaymentAlreadyApplied) {
			r.logger.Info("Payment rejected",
				zap.String("invoice_id", cmd.InvoiceID.String()),
				zap.String("method", cmd.Method.String()),
				zap.String("amount", cmd.Amount.StringFixed(2)),
				zap.Error(err))
		}
		return nil, err
	}

	r.metrics.PaymentRecorded(ctx, payment.Method.String(), payment.Amount)
	r.logger.Info("Payment recorded",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("method", payment.Method.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("balance_due", inv.BalanceDue.StringFixed(2)),
		zap.String("status", inv.Status.String()),
		zap.String("recorded_by", cmd.RecordedBy))
	return inv, nil
}
