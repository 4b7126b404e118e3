package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultLockTimeout bounds how long a mutation waits for the invoice lock
const DefaultLockTimeout = 5 * time.Second

// invoiceMutator applies a change to one invoice under its exclusive lock:
// acquire, reload, mutate, save guarded by version, then publish events.
type invoiceMutator struct {
	repo        billing.InvoiceRepository
	locker      billing.InvoiceLocker
	lockTimeout time.Duration
	publisher   shared.EventPublisher
	metrics     Metrics
	logger      *zap.Logger
}

func (m *invoiceMutator) load(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := m.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, billing.NewNotFoundError("invoice", id.String())
		}
		return nil, err
	}
	return inv, nil
}

func (m *invoiceMutator) mutate(ctx context.Context, id uuid.UUID, fn func(inv *billing.Invoice) error) (*billing.Invoice, error) {
	release, err := m.locker.Acquire(ctx, id, m.lockTimeout)
	if err != nil {
		var busy *billing.ResourceBusyError
		if errors.As(err, &busy) {
			m.metrics.LockContended(ctx)
			m.logger.Warn("Invoice lock busy", zap.String("invoice_id", id.String()))
		}
		return nil, err
	}
	defer release()

	inv, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(inv); err != nil {
		return nil, err
	}

	if err := m.repo.SaveWithLock(ctx, inv); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			m.metrics.LockContended(ctx)
			return nil, &billing.ResourceBusyError{InvoiceID: id}
		}
		return nil, err
	}
	inv.MarkPersisted()
	m.publish(ctx, inv)
	return inv, nil
}

// publish hands pending domain events to the bus. Failures are logged; the
// state change is already durable.
func (m *invoiceMutator) publish(ctx context.Context, inv *billing.Invoice) {
	events := inv.PendingEvents()
	inv.ClearEvents()
	if m.publisher == nil || len(events) == 0 {
		return
	}
	if err := m.publisher.Publish(ctx, events...); err != nil {
		m.logger.Error("Failed to publish invoice events",
			zap.String("invoice_id", inv.ID.String()),
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
}

func lockTimeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultLockTimeout
	}
	return d
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
