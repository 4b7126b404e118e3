package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	JobName  string
	Interval time.Duration
	// RunOnStart submits one job as soon as the trigger starts
	RunOnStart bool
}

// IntervalTrigger submits a named job on a fixed period
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastFired time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, scheduler *Scheduler, logger *zap.Logger) (*IntervalTrigger, error) {
	if config.JobName == "" || config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if t.config.RunOnStart {
		t.fire()
	}

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.String("job", t.config.JobName),
		zap.Duration("interval", t.config.Interval),
	)
	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped", zap.String("job", t.config.JobName))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastFired returns when a job was last submitted, zero if never
func (t *IntervalTrigger) LastFired() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFired
}

// TriggerNow submits a job outside the regular period
func (t *IntervalTrigger) TriggerNow() (*Job, error) {
	job, err := t.scheduler.Submit(t.config.JobName)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.lastFired = time.Now()
	t.mu.Unlock()
	return job, nil
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

func (t *IntervalTrigger) fire() {
	_, err := t.TriggerNow()
	switch {
	case err == nil:
	case errors.Is(err, ErrJobQueueFull):
		// a previous run is still queued; skipping this tick is enough
		t.logger.Debug("Skipped tick, queue full", zap.String("job", t.config.JobName))
	default:
		t.logger.Warn("Failed to submit scheduled job",
			zap.String("job", t.config.JobName),
			zap.Error(err),
		)
	}
}
