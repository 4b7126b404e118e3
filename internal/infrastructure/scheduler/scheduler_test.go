package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (o *recordingObserver) JobFinished(_ context.Context, job string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, job)
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.names)
}

func startScheduler(t *testing.T, cfg SchedulerConfig, registry *TaskRegistry) *Scheduler {
	t.Helper()
	s := NewScheduler(cfg, registry, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestJobLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 10, 2, 0, 0, 0, time.UTC)
	job := NewJob(JobOverdueSweep, 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.begin(now)
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)

	job.finish(now.Add(time.Second), errors.New("database unavailable"))
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "database unavailable", job.LastError)
	assert.True(t, job.CanRetry())

	job.retryIn(time.Minute, now)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, now.Add(time.Minute), job.RetryAt)

	job.begin(now.Add(time.Minute))
	assert.True(t, job.RetryAt.IsZero())
	job.finish(now.Add(2*time.Minute), errors.New("still down"))
	assert.False(t, job.CanRetry())

	ok := NewJob(JobOverdueSweep, 3)
	ok.begin(now)
	ok.finish(now, nil)
	assert.Equal(t, JobStatusSuccess, ok.Status)
	assert.Empty(t, ok.LastError)
	assert.False(t, ok.CanRetry())
}

func TestScheduler_RetryDelayBacksOff(t *testing.T) {
	s := NewScheduler(SchedulerConfig{RetryDelay: time.Second}, NewTaskRegistry(), nil)

	first := s.retryDelay(1)
	second := s.retryDelay(2)
	assert.Equal(t, time.Second, first)
	assert.Greater(t, second, first)
	assert.LessOrEqual(t, s.retryDelay(20), 10*time.Second)
}

func TestScheduler_RunsRegisteredTask(t *testing.T) {
	var runs atomic.Int32
	registry := NewTaskRegistry()
	registry.Register("sweep", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	obs := &recordingObserver{}
	s := NewScheduler(DefaultSchedulerConfig(), registry, zap.NewNop())
	s.SetObserver(obs)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	job, err := s.Submit("sweep")
	require.NoError(t, err)
	assert.Equal(t, "sweep", job.Name)

	assert.Eventually(t, func() bool { return obs.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.NoError(t, obs.errs[0])
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	var runs atomic.Int32
	registry := NewTaskRegistry()
	registry.Register("flaky", func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("database unavailable")
		}
		return nil
	})

	cfg := DefaultSchedulerConfig()
	cfg.RetryAttempts = 2
	cfg.RetryDelay = 20 * time.Millisecond
	s := startScheduler(t, cfg, registry)

	_, err := s.Submit("flaky")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	var runs atomic.Int32
	registry := NewTaskRegistry()
	registry.Register("broken", func(context.Context) error {
		runs.Add(1)
		return errors.New("always fails")
	})

	cfg := DefaultSchedulerConfig()
	cfg.RetryAttempts = 1
	cfg.RetryDelay = 10 * time.Millisecond
	s := startScheduler(t, cfg, registry)

	_, err := s.Submit("broken")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_UnknownJobFails(t *testing.T) {
	registry := NewTaskRegistry()
	err := registry.Execute(context.Background(), NewJob("missing", 0))
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_NotRunning(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig(), NewTaskRegistry(), nil)
	_, err := s.Submit("sweep")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	_, err = s.Submit("sweep")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestScheduler_QueueFull(t *testing.T) {
	release := make(chan struct{})
	registry := NewTaskRegistry()
	registry.Register("slow", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	cfg := DefaultSchedulerConfig()
	cfg.QueueSize = 1
	cfg.MaxConcurrentJobs = 1
	s := startScheduler(t, cfg, registry)
	defer close(release)

	_, err := s.Submit("slow")
	require.NoError(t, err)

	var fullErr error
	for i := 0; i < 3 && fullErr == nil; i++ {
		_, fullErr = s.Submit("slow")
	}
	assert.ErrorIs(t, fullErr, ErrJobQueueFull)
}

func TestIntervalTrigger(t *testing.T) {
	t.Run("rejects bad config", func(t *testing.T) {
		_, err := NewIntervalTrigger(IntervalTriggerConfig{JobName: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("submits jobs on each tick", func(t *testing.T) {
		var runs atomic.Int32
		registry := NewTaskRegistry()
		registry.Register(JobOverdueSweep, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		s := startScheduler(t, DefaultSchedulerConfig(), registry)

		trigger, err := NewIntervalTrigger(IntervalTriggerConfig{
			JobName:    JobOverdueSweep,
			Interval:   20 * time.Millisecond,
			RunOnStart: true,
		}, s, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, trigger.Start(context.Background()))

		assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, trigger.Stop(context.Background()))
		assert.False(t, trigger.LastFired().IsZero())
	})
}

type fakeSweeper struct {
	asOf   time.Time
	result appbilling.OverdueSweepResult
	err    error
}

func (f *fakeSweeper) MarkOverdue(_ context.Context, asOf time.Time) (appbilling.OverdueSweepResult, error) {
	f.asOf = asOf
	return f.result, f.err
}

func TestOverdueTask(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("GMT+2", 2*3600))

	t.Run("sweeps as of the clock in UTC", func(t *testing.T) {
		sweeper := &fakeSweeper{result: appbilling.OverdueSweepResult{Scanned: 3, Marked: 2, Skipped: 1}}
		task := NewOverdueTask(sweeper, func() time.Time { return now }, nil)

		require.NoError(t, task(context.Background()))
		assert.True(t, sweeper.asOf.Equal(now))
		assert.Equal(t, time.UTC, sweeper.asOf.Location())
	})

	t.Run("propagates sweep errors", func(t *testing.T) {
		sweeper := &fakeSweeper{err: context.DeadlineExceeded}
		task := NewOverdueTask(sweeper, func() time.Time { return now }, zap.NewNop())

		assert.ErrorIs(t, task(context.Background()), context.DeadlineExceeded)
	})

	t.Run("partial failures do not fail the job", func(t *testing.T) {
		sweeper := &fakeSweeper{result: appbilling.OverdueSweepResult{Scanned: 2, Failed: 1}}
		task := NewOverdueTask(sweeper, nil, nil)

		assert.NoError(t, task(context.Background()))
	})
}

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) MarkOverdue(context.Context, time.Time) (appbilling.OverdueSweepResult, error) {
	c.calls.Add(1)
	return appbilling.OverdueSweepResult{}, nil
}

func TestOverdueScheduler(t *testing.T) {
	sweeper := &countingSweeper{}
	obs := &recordingObserver{}

	o, err := NewOverdueScheduler(OverdueSchedulerConfig{Interval: time.Hour, RunOnStart: true}, sweeper, obs, nil)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))

	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	_, err = o.TriggerNow()
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return obs.count() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{JobOverdueSweep, JobOverdueSweep}, obs.names)

	require.NoError(t, o.Stop(context.Background()))
	_, err = o.TriggerNow()
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	_, err = NewOverdueScheduler(OverdueSchedulerConfig{}, sweeper, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
