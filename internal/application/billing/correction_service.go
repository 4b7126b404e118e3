package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// CorrectionEngine applies audited corrections to invoices: reversal, void,
// payment method change, draft cancellation and claim rejection.
type CorrectionEngine struct {
	invoiceMutator
	reopener billing.EncounterReopener
}

// CorrectionEngineConfig holds the dependencies of CorrectionEngine
type CorrectionEngineConfig struct {
	Repo        billing.InvoiceRepository
	Locker      billing.InvoiceLocker
	LockTimeout time.Duration
	Reopener    billing.EncounterReopener
	Publisher   shared.EventPublisher
	Metrics     Metrics
	Logger      *zap.Logger
}

// NewCorrectionEngine creates a new CorrectionEngine
func NewCorrectionEngine(cfg CorrectionEngineConfig) *CorrectionEngine {
	return &CorrectionEngine{
		invoiceMutator: invoiceMutator{
			repo:        cfg.Repo,
			locker:      cfg.Locker,
			lockTimeout: lockTimeoutOrDefault(cfg.LockTimeout),
			publisher:   cfg.Publisher,
			metrics:     metricsOrNop(cfg.Metrics),
			logger:      loggerOrNop(cfg.Logger),
		},
		reopener: cfg.Reopener,
	}
}

// Reverse freezes the invoice as reversed and reopens its encounter.
// The encounter hook runs once, after the reversal is durable.
func (e *CorrectionEngine) Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	if err := requireReason(reason, "reversal"); err != nil {
		return nil, err
	}
	inv, err := e.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.Reverse(reason, actor)
	})
	if err != nil {
		return nil, err
	}
	e.applied(ctx, inv, billing.CorrectionReverse, actor, reason)

	if inv.EncounterID == nil {
		e.logger.Warn("Reversed invoice has no encounter to reopen",
			zap.String("invoice_id", inv.ID.String()))
		return inv, nil
	}
	if e.reopener != nil {
		if err := e.reopener.ReopenEncounter(ctx, *inv.EncounterID, inv.ID, reason); err != nil {
			e.logger.Error("Failed to reopen encounter after reversal",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("encounter_id", inv.EncounterID.String()),
				zap.Error(err))
		}
	}
	return inv, nil
}

// Void permanently cancels an issued invoice. Invoices with recorded
// payments need override and a reason.
func (e *CorrectionEngine) Void(ctx context.Context, id uuid.UUID, reason string, override bool, actor string) (*billing.Invoice, error) {
	if err := requireReason(reason, "void"); err != nil {
		return nil, err
	}
	inv, err := e.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.Void(reason, override, actor)
	})
	if err != nil {
		return nil, err
	}
	e.applied(ctx, inv, billing.CorrectionVoid, actor, reason)
	return inv, nil
}

// ChangePaymentMethod switches the expected method of an unpaid sent invoice
func (e *CorrectionEngine) ChangePaymentMethod(ctx context.Context, id uuid.UUID, method billing.PaymentMethod, actor string) (*billing.Invoice, error) {
	if !method.IsValid() {
		return nil, billing.NewValidationError("method", "unknown payment method")
	}
	inv, err := e.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.ChangePaymentMethod(method, actor)
	})
	if err != nil {
		return nil, err
	}
	e.applied(ctx, inv, billing.CorrectionChangePaymentMethod, actor, "")
	return inv, nil
}

// Cancel abandons a draft invoice
func (e *CorrectionEngine) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	if err := requireReason(reason, "cancellation"); err != nil {
		return nil, err
	}
	inv, err := e.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.Cancel(reason, actor)
	})
	if err != nil {
		return nil, err
	}
	e.applied(ctx, inv, billing.CorrectionCancel, actor, reason)
	return inv, nil
}

// RejectClaim records the insurer's rejection and restores the prior status
func (e *CorrectionEngine) RejectClaim(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	if err := requireReason(reason, "rejection"); err != nil {
		return nil, err
	}
	inv, err := e.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.RejectClaim(reason, actor)
	})
	if err != nil {
		return nil, err
	}
	e.applied(ctx, inv, billing.CorrectionClaimRejected, actor, reason)
	return inv, nil
}

// requireReason rejects a blank justification before the invoice lock is taken
func requireReason(reason, what string) error {
	if strings.TrimSpace(reason) == "" {
		return billing.NewValidationError("reason", what+" reason is required")
	}
	return nil
}

func (e *CorrectionEngine) applied(ctx context.Context, inv *billing.Invoice, kind billing.CorrectionKind, actor, reason string) {
	e.metrics.CorrectionApplied(ctx, string(kind))
	e.logger.Info("Invoice corrected",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("kind", string(kind)),
		zap.String("status", inv.Status.String()),
		zap.String("actor", actor),
		zap.String("reason", reason))
}
