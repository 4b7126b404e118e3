package billing

import (
	"context"
	"errors"
	"time"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultOverdueBatchSize = 200

// errNotDue aborts a mutation without saving when the invoice no longer qualifies
var errNotDue = errors.New("invoice not due")

// OverdueSweepResult summarizes one overdue sweep
type OverdueSweepResult struct {
	Scanned int `json:"scanned"`
	Marked  int `json:"marked"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// OverdueService flags invoices whose due date has passed with money owed
type OverdueService struct {
	invoiceMutator
	batchSize int
}

// OverdueServiceConfig holds the dependencies of OverdueService
type OverdueServiceConfig struct {
	Repo        billing.InvoiceRepository
	Locker      billing.InvoiceLocker
	LockTimeout time.Duration
	Publisher   shared.EventPublisher
	Logger      *zap.Logger
	BatchSize   int
}

// NewOverdueService creates a new OverdueService
func NewOverdueService(cfg OverdueServiceConfig) *OverdueService {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultOverdueBatchSize
	}
	return &OverdueService{
		invoiceMutator: invoiceMutator{
			repo:        cfg.Repo,
			locker:      cfg.Locker,
			lockTimeout: lockTimeoutOrDefault(cfg.LockTimeout),
			publisher:   cfg.Publisher,
			metrics:     nopMetrics{},
			logger:      loggerOrNop(cfg.Logger),
		},
		batchSize: batch,
	}
}

// MarkOverdue sweeps candidates in batches. Each invoice is re-checked under
// its own lock, so a payment landing mid-sweep wins.
func (s *OverdueService) MarkOverdue(ctx context.Context, asOf time.Time) (OverdueSweepResult, error) {
	var result OverdueSweepResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		candidates, err := s.repo.FindOverdueCandidates(ctx, asOf, s.batchSize)
		if err != nil {
			return result, err
		}

		marked := 0
		for i := range candidates {
			result.Scanned++
			_, err := s.mutate(ctx, candidates[i].ID, func(inv *billing.Invoice) error {
				ok, err := inv.MarkOverdue(asOf)
				if err != nil {
					return err
				}
				if !ok {
					return errNotDue
				}
				return nil
			})
			switch {
			case err == nil:
				marked++
			case errors.Is(err, errNotDue):
				result.Skipped++
			default:
				var transition *billing.InvalidTransitionError
				if errors.As(err, &transition) {
					result.Skipped++
					continue
				}
				result.Failed++
				s.logger.Warn("Failed to mark invoice overdue",
					zap.String("invoice_id", candidates[i].ID.String()),
					zap.Error(err))
			}
		}
		result.Marked += marked

		// a short or unproductive batch means nothing new will come back
		if len(candidates) < s.batchSize || marked == 0 {
			break
		}
	}

	s.logger.Info("Overdue sweep finished",
		zap.Time("as_of", asOf),
		zap.Int("scanned", result.Scanned),
		zap.Int("marked", result.Marked),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}
