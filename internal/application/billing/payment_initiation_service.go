package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// InitiatePaymentCommand starts a payment on one of the channels
type InitiatePaymentCommand struct {
	InvoiceID uuid.UUID
	Method    billing.PaymentMethod
	Params    billing.ChannelParams
}

// InitiationResult is either a pending payment awaiting confirmation or the
// invoice itself for channels that are recorded directly
type InitiationResult struct {
	Invoice *billing.Invoice
	Pending *billing.PendingPayment
}

// PaymentInitiationService starts payments on the configured channels
type PaymentInitiationService struct {
	invoiceMutator
	channels *billing.ChannelRegistry
	pending  billing.PendingPaymentRepository
}

// PaymentInitiationServiceConfig holds the dependencies of PaymentInitiationService
type PaymentInitiationServiceConfig struct {
	Repo        billing.InvoiceRepository
	PendingRepo billing.PendingPaymentRepository
	Locker      billing.InvoiceLocker
	LockTimeout time.Duration
	Channels    *billing.ChannelRegistry
	Publisher   shared.EventPublisher
	Logger      *zap.Logger
}

// NewPaymentInitiationService creates a new PaymentInitiationService
func NewPaymentInitiationService(cfg PaymentInitiationServiceConfig) *PaymentInitiationService {
	return &PaymentInitiationService{
		invoiceMutator: invoiceMutator{
			repo:        cfg.Repo,
			locker:      cfg.Locker,
			lockTimeout: lockTimeoutOrDefault(cfg.LockTimeout),
			publisher:   cfg.Publisher,
			metrics:     nopMetrics{},
			logger:      loggerOrNop(cfg.Logger),
		},
		channels: cfg.Channels,
		pending:  cfg.PendingRepo,
	}
}

// Initiate starts a payment. Channels that change the invoice state run
// under the invoice lock; the others only read the invoice.
func (s *PaymentInitiationService) Initiate(ctx context.Context, cmd InitiatePaymentCommand) (*InitiationResult, error) {
	channel, err := s.channels.Get(cmd.Method)
	if err != nil {
		return nil, err
	}

	var (
		inv        *billing.Invoice
		initiation *billing.Initiation
	)
	if stateful, ok := channel.(billing.StatefulChannel); ok && stateful.MutatesInvoiceOnInitiate() {
		inv, err = s.mutate(ctx, cmd.InvoiceID, func(locked *billing.Invoice) error {
			var initErr error
			initiation, initErr = channel.Initiate(ctx, locked, cmd.Params)
			return initErr
		})
	} else {
		inv, err = s.load(ctx, cmd.InvoiceID)
		if err == nil {
			initiation, err = channel.Initiate(ctx, inv, cmd.Params)
		}
	}
	if err != nil {
		return nil, err
	}

	result := &InitiationResult{Invoice: inv}
	if initiation.Pending != nil {
		if err := s.pending.Save(ctx, initiation.Pending); err != nil {
			return nil, fmt.Errorf("save pending payment: %w", err)
		}
		result.Pending = initiation.Pending
	}

	s.logger.Info("Payment initiated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("method", cmd.Method.String()),
		zap.Bool("immediate", initiation.Immediate),
		zap.Bool("pending", initiation.Pending != nil))
	return result, nil
}
