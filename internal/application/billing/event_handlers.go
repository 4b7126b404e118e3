package billing

import (
	"context"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every invoice event to the audit log
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: loggerOrNop(logger).Named("audit")}
}

// EventTypes returns nil to receive every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info("Domain event",
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Any("event", event))
	return nil
}

// StatsInvalidationHandler drops cached stats when money or status moves
type StatsInvalidationHandler struct {
	stats *StatsService
}

// NewStatsInvalidationHandler creates a new StatsInvalidationHandler
func NewStatsInvalidationHandler(stats *StatsService) *StatsInvalidationHandler {
	return &StatsInvalidationHandler{stats: stats}
}

// EventTypes returns the events that change totals or the status breakdown
func (h *StatsInvalidationHandler) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceSent,
		billing.EventTypePaymentRecorded,
		billing.EventTypeInvoiceReversed,
		billing.EventTypeInvoiceVoided,
		billing.EventTypeInvoiceCancelled,
		billing.EventTypeInvoiceOverdue,
		billing.EventTypeInsuranceClaimSubmitted,
		billing.EventTypeInsuranceClaimRejected,
	}
}

// Handle invalidates the stats cache
func (h *StatsInvalidationHandler) Handle(context.Context, shared.DomainEvent) error {
	h.stats.Invalidate()
	return nil
}
