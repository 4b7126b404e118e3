package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

var (
	// ErrCallbackVerificationFailed is returned when a callback signature does not verify
	ErrCallbackVerificationFailed = errors.New("payment callback: signature verification failed")
	// ErrCallbackInvoiceUnknown is returned when a callback cannot be tied to an invoice
	ErrCallbackInvoiceUnknown = errors.New("payment callback: invoice not identified")
)

const defaultIdempotencyTTL = 72 * time.Hour

// CallbackResult describes what happened to a gateway confirmation
type CallbackResult struct {
	InvoiceID        uuid.UUID `json:"invoice_id,omitempty"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Processed        bool      `json:"processed"`
	AlreadyProcessed bool      `json:"already_processed"`
	Ignored          bool      `json:"ignored"`
	Message          string    `json:"message,omitempty"`
}

// GatewayCallbackService turns gateway confirmations into recorded payments.
// It is just another caller of PaymentRecorder, guarded by two layers of
// idempotency: a fast key store and the durable transaction id on payments.
type GatewayCallbackService struct {
	gateway     billing.PaymentGateway
	recorder    *PaymentRecorder
	invoices    billing.InvoiceRepository
	pending     billing.PendingPaymentRepository
	idempotency shared.IdempotencyStore
	ttl         time.Duration
	logger      *zap.Logger
}

// GatewayCallbackServiceConfig holds the dependencies of GatewayCallbackService
type GatewayCallbackServiceConfig struct {
	Gateway          billing.PaymentGateway
	Recorder         *PaymentRecorder
	InvoiceRepo      billing.InvoiceRepository
	PendingRepo      billing.PendingPaymentRepository
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           *zap.Logger
}

// NewGatewayCallbackService creates a new GatewayCallbackService
func NewGatewayCallbackService(cfg GatewayCallbackServiceConfig) *GatewayCallbackService {
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &GatewayCallbackService{
		gateway:     cfg.Gateway,
		recorder:    cfg.Recorder,
		invoices:    cfg.InvoiceRepo,
		pending:     cfg.PendingRepo,
		idempotency: cfg.IdempotencyStore,
		ttl:         ttl,
		logger:      loggerOrNop(cfg.Logger),
	}
}

// ProcessCallback verifies a raw webhook and applies the confirmed payment
func (s *GatewayCallbackService) ProcessCallback(ctx context.Context, payload []byte, signature string) (*CallbackResult, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}
	gp, err := s.gateway.VerifyCallback(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnsupportedType) {
			return &CallbackResult{Ignored: true, Message: err.Error()}, nil
		}
		s.logger.Warn("Callback verification failed",
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCallbackVerificationFailed, err)
	}

	s.logger.Info("Payment callback received",
		zap.String("gateway", s.gateway.Name()),
		zap.String("session_id", gp.SessionID),
		zap.String("transaction_id", gp.TransactionID),
		zap.String("status", string(gp.Status)),
		zap.String("amount", gp.Amount.StringFixed(2)))
	return s.apply(ctx, gp)
}

// Reconcile pulls the status of a pending card payment from the gateway and
// applies it if it has been paid
func (s *GatewayCallbackService) Reconcile(ctx context.Context, pendingID uuid.UUID) (*CallbackResult, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}
	pending, err := s.pending.FindByID(ctx, pendingID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, billing.NewNotFoundError("pending_payment", pendingID.String())
		}
		return nil, err
	}
	if pending.Method != billing.PaymentMethodCard || pending.GatewayReference == "" {
		return nil, billing.NewValidationError("pending_payment_id", "only gateway payments can be reconciled")
	}
	if !pending.IsOpen() {
		return &CallbackResult{InvoiceID: pending.InvoiceID, AlreadyProcessed: true, Message: string(pending.Status)}, nil
	}

	gp, err := s.gateway.QueryPayment(ctx, pending.GatewayReference)
	if err != nil {
		return nil, fmt.Errorf("query gateway payment: %w", err)
	}
	if gp.InvoiceID == uuid.Nil {
		gp.InvoiceID = pending.InvoiceID
	}
	if gp.PendingPaymentID == uuid.Nil {
		gp.PendingPaymentID = pending.ID
	}
	return s.apply(ctx, gp)
}

func (s *GatewayCallbackService) apply(ctx context.Context, gp *billing.GatewayPayment) (*CallbackResult, error) {
	pending := s.findPending(ctx, gp)
	if gp.InvoiceID == uuid.Nil && pending != nil {
		gp.InvoiceID = pending.InvoiceID
	}
	result := &CallbackResult{InvoiceID: gp.InvoiceID, TransactionID: gp.TransactionID}

	if !gp.Status.IsSuccess() {
		if gp.Status.IsFinal() && pending != nil && pending.IsOpen() {
			if gp.Status == billing.GatewayPaymentStatusExpired {
				pending.Abandon()
			} else {
				pending.Fail()
			}
			s.savePending(ctx, pending)
		}
		result.Ignored = true
		result.Message = "payment not successful: " + string(gp.Status)
		return result, nil
	}
	if gp.InvoiceID == uuid.Nil {
		return nil, ErrCallbackInvoiceUnknown
	}
	if gp.TransactionID == "" {
		gp.TransactionID = gp.SessionID
		result.TransactionID = gp.TransactionID
	}

	key := fmt.Sprintf("payment:%s:%s", s.gateway.Name(), gp.TransactionID)
	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.ttl)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, relying on ledger check",
				zap.String("key", key), zap.Error(err))
		} else if !fresh {
			s.logger.Info("Callback already processed (idempotency check)", zap.String("idempotency_key", key))
			result.AlreadyProcessed = true
			return result, nil
		}
	}

	exists, err := s.invoices.ExistsGatewayTransaction(ctx, gp.TransactionID)
	if err != nil {
		s.release(ctx, key)
		return nil, fmt.Errorf("check gateway transaction: %w", err)
	}
	if exists {
		result.AlreadyProcessed = true
		s.confirmPending(ctx, pending)
		return result, nil
	}

	_, err = s.recorder.Record(ctx, RecordPaymentCommand{
		InvoiceID:            gp.InvoiceID,
		Amount:               gp.Amount,
		Method:               billing.PaymentMethodCard,
		Reference:            gp.TransactionID,
		GatewayTransactionID: gp.TransactionID,
		Notes:                "confirmed by " + s.gateway.Name() + " session " + gp.SessionID,
		Verified:             true,
		RecordedBy:           "gateway:" + s.gateway.Name(),
	})
	switch {
	case err == nil:
		result.Processed = true
		s.confirmPending(ctx, pending)
	case errors.Is(err, ErrPaymentAlreadyApplied):
		result.AlreadyProcessed = true
		s.confirmPending(ctx, pending)
	case isBusinessRejection(err):
		// money was taken but the invoice refuses it; retries cannot help
		s.logger.Error("Gateway payment rejected by invoice, manual review required",
			zap.String("invoice_id", gp.InvoiceID.String()),
			zap.String("transaction_id", gp.TransactionID),
			zap.String("amount", gp.Amount.StringFixed(2)),
			zap.Error(err))
		if pending != nil {
			pending.Fail()
			s.savePending(ctx, pending)
		}
		result.Message = err.Error()
	default:
		s.release(ctx, key)
		return nil, err
	}
	return result, nil
}

func (s *GatewayCallbackService) findPending(ctx context.Context, gp *billing.GatewayPayment) *billing.PendingPayment {
	var (
		p   *billing.PendingPayment
		err error
	)
	switch {
	case gp.PendingPaymentID != uuid.Nil:
		p, err = s.pending.FindByID(ctx, gp.PendingPaymentID)
	case gp.SessionID != "":
		p, err = s.pending.FindByGatewayReference(ctx, gp.SessionID)
	default:
		return nil
	}
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Failed to load pending payment", zap.String("session_id", gp.SessionID), zap.Error(err))
		}
		return nil
	}
	return p
}

func (s *GatewayCallbackService) confirmPending(ctx context.Context, p *billing.PendingPayment) {
	if p == nil || !p.IsOpen() {
		return
	}
	p.Confirm(time.Now())
	s.savePending(ctx, p)
}

func (s *GatewayCallbackService) savePending(ctx context.Context, p *billing.PendingPayment) {
	if err := s.pending.Save(ctx, p); err != nil {
		s.logger.Warn("Failed to update pending payment",
			zap.String("pending_payment_id", p.ID.String()),
			zap.Error(err))
	}
}

func (s *GatewayCallbackService) release(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// isBusinessRejection reports billing rule violations, as opposed to
// infrastructure failures worth retrying
func isBusinessRejection(err error) bool {
	var (
		transition *billing.InvalidTransitionError
		overpay    *billing.OverpaymentError
		validation *billing.ValidationError
		notFound   *billing.NotFoundError
	)
	return errors.As(err, &transition) || errors.As(err, &overpay) ||
		errors.As(err, &validation) || errors.As(err, &notFound)
}
