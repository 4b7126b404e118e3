package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hospital/billing/internal/domain/billing"
	"go.uber.org/zap"
)

// StatsService computes collection stats from a StatsSource and caches the
// result for a short while. The figures are eventually consistent.
type StatsService struct {
	source billing.StatsSource
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   *billing.Stats
	cachedAt time.Time
}

// StatsServiceConfig holds the dependencies of StatsService
type StatsServiceConfig struct {
	Source   billing.StatsSource
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewStatsService creates a new StatsService. A zero CacheTTL disables caching.
func NewStatsService(cfg StatsServiceConfig) *StatsService {
	return &StatsService{
		source: cfg.Source,
		ttl:    cfg.CacheTTL,
		logger: loggerOrNop(cfg.Logger),
		now:    time.Now,
	}
}

// GetStats returns billed, collected and outstanding totals with the collection rate
func (s *StatsService) GetStats(ctx context.Context) (billing.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.ttl > 0 && s.now().Sub(s.cachedAt) < s.ttl {
		return *s.cached, nil
	}

	acc := billing.NewStatsAccumulator()
	err := s.source.ScanInvoiceTotals(ctx, func(row billing.StatsRow) error {
		acc.Add(row)
		return nil
	})
	if err != nil {
		if s.cached != nil {
			s.logger.Warn("Stats scan failed, serving stale figures", zap.Error(err))
			return *s.cached, nil
		}
		return billing.Stats{}, fmt.Errorf("scan invoice totals: %w", err)
	}

	stats := acc.Result()
	s.cached = &stats
	s.cachedAt = s.now()
	return stats, nil
}

// Invalidate drops the cached figures
func (s *StatsService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
