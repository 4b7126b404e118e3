package scheduler

import (
	"context"
	"time"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"go.uber.org/zap"
)

// JobOverdueSweep is the job name of the periodic overdue sweep
const JobOverdueSweep = "overdue_sweep"

// OverdueSweeper marks invoices past their due date
type OverdueSweeper interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (appbilling.OverdueSweepResult, error)
}

// NewOverdueTask returns the task body for JobOverdueSweep.
// A nil clock means time.Now.
func NewOverdueTask(sweeper OverdueSweeper, clock func() time.Time, logger *zap.Logger) TaskFunc {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		asOf := clock().UTC()
		result, err := sweeper.MarkOverdue(ctx, asOf)
		if err != nil {
			logger.Error("Overdue sweep aborted",
				zap.Time("as_of", asOf),
				zap.Int("marked", result.Marked),
				zap.Error(err))
			return err
		}
		if result.Failed > 0 {
			logger.Warn("Overdue sweep left invoices behind",
				zap.Int("failed", result.Failed))
		}
		return nil
	}
}

// OverdueSchedulerConfig configures the periodic overdue sweep
type OverdueSchedulerConfig struct {
	Interval   time.Duration
	JobTimeout time.Duration
	RunOnStart bool
}

// OverdueScheduler runs OverdueService sweeps on a fixed interval
type OverdueScheduler struct {
	scheduler *Scheduler
	trigger   *IntervalTrigger
}

// NewOverdueScheduler wires a single-worker scheduler and an interval trigger
// around the sweeper. observer may be nil.
func NewOverdueScheduler(cfg OverdueSchedulerConfig, sweeper OverdueSweeper, observer JobObserver, logger *zap.Logger) (*OverdueScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := NewTaskRegistry()
	registry.Register(JobOverdueSweep, NewOverdueTask(sweeper, nil, logger))

	schedCfg := DefaultSchedulerConfig()
	schedCfg.QueueSize = 1
	if cfg.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.JobTimeout
	}
	s := NewScheduler(schedCfg, registry, logger)
	if observer != nil {
		s.SetObserver(observer)
	}

	trigger, err := NewIntervalTrigger(IntervalTriggerConfig{
		JobName:    JobOverdueSweep,
		Interval:   cfg.Interval,
		RunOnStart: cfg.RunOnStart,
	}, s, logger)
	if err != nil {
		return nil, err
	}
	return &OverdueScheduler{scheduler: s, trigger: trigger}, nil
}

// Start starts workers before the trigger so the first tick has somewhere to go
func (o *OverdueScheduler) Start(ctx context.Context) error {
	if err := o.scheduler.Start(ctx); err != nil {
		return err
	}
	return o.trigger.Start(ctx)
}

// Stop stops the trigger, then drains the workers
func (o *OverdueScheduler) Stop(ctx context.Context) error {
	if err := o.trigger.Stop(ctx); err != nil {
		return err
	}
	return o.scheduler.Stop(ctx)
}

// TriggerNow queues a sweep immediately
func (o *OverdueScheduler) TriggerNow() (*Job, error) {
	return o.trigger.TriggerNow()
}
