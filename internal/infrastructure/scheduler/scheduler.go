package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrJobQueueFull        = errors.New("scheduler: job queue full")
	ErrUnknownJob          = errors.New("scheduler: no task registered for job")
	ErrInvalidConfig       = errors.New("scheduler: invalid configuration")
)

// JobExecutor runs one attempt of a job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobObserver is told about every finished attempt
type JobObserver interface {
	JobFinished(ctx context.Context, job string, d time.Duration, err error)
}

// SchedulerConfig sizes the worker pool. Failed attempts are retried after
// an exponential backoff starting at RetryDelay and capped at ten times it.
type SchedulerConfig struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultSchedulerConfig runs one job at a time and retries twice
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 1,
		QueueSize:         16,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        time.Minute,
	}
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	d := DefaultSchedulerConfig()
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	return c
}

// Scheduler runs submitted jobs on a fixed pool of workers fed by a
// bounded queue. Submit never blocks.
type Scheduler struct {
	cfg      SchedulerConfig
	executor JobExecutor
	observer JobObserver
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	queue   chan *Job
	stop    context.CancelFunc
	workers *errgroup.Group
	retries sync.WaitGroup
}

// NewScheduler creates a stopped scheduler
func NewScheduler(cfg SchedulerConfig, executor JobExecutor, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cfg: cfg.withDefaults(), executor: executor, log: log.Named("scheduler")}
}

// SetObserver attaches an observer for job outcomes. Call before Start.
func (s *Scheduler) SetObserver(o JobObserver) {
	s.observer = o
}

// Start launches the workers. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.queue = make(chan *Job, s.cfg.QueueSize)
	s.workers = &errgroup.Group{}
	for range s.cfg.MaxConcurrentJobs {
		queue := s.queue
		s.workers.Go(func() error {
			s.work(ctx, queue)
			return nil
		})
	}
	s.running = true

	s.log.Info("Scheduler started",
		zap.Int("workers", s.cfg.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.cfg.JobTimeout))
	return nil
}

// Stop rejects new jobs, cancels the running ones and waits for the
// workers until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.queue)
	s.stop()
	workers := s.workers
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = workers.Wait()
		s.retries.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit queues a fresh job for the named task
func (s *Scheduler) Submit(name string) (*Job, error) {
	job := NewJob(name, s.cfg.RetryAttempts)
	if err := s.enqueue(job); err != nil {
		return nil, err
	}
	s.log.Debug("Job queued", zap.String("job", name), zap.Stringer("job_id", job.ID))
	return job, nil
}

func (s *Scheduler) enqueue(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) work(ctx context.Context, queue <-chan *Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-queue:
			if !ok {
				return
			}
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	log := s.log.With(zap.String("job", job.Name), zap.Stringer("job_id", job.ID), zap.Int("attempt", job.Attempts+1))

	started := time.Now()
	job.begin(started)
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	err := s.executor.Execute(attemptCtx, job)
	cancel()
	job.finish(time.Now(), err)

	if s.observer != nil {
		s.observer.JobFinished(ctx, job.Name, job.FinishedAt.Sub(started), err)
	}
	if err == nil {
		log.Info("Job succeeded", zap.Duration("took", job.FinishedAt.Sub(started)))
		return
	}
	if !job.CanRetry() || ctx.Err() != nil {
		log.Error("Job failed", zap.Error(err))
		return
	}

	delay := s.retryDelay(job.Attempts)
	job.retryIn(delay, time.Now())
	log.Warn("Job failed, retrying", zap.Error(err), zap.Duration("retry_in", delay))
	s.retries.Add(1)
	go func() {
		defer s.retries.Done()
		select {
		case <-time.After(delay):
			if err := s.enqueue(job); err != nil {
				log.Warn("Dropped job retry", zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()
}

// retryDelay is the backoff before retry n (1-based)
func (s *Scheduler) retryDelay(n int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval: s.cfg.RetryDelay,
		Multiplier:      2,
		MaxInterval:     10 * s.cfg.RetryDelay,
	}
	b.Reset()
	var d time.Duration
	for range n {
		d = b.NextBackOff()
	}
	return d
}
