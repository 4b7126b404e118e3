package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hospital/billing/internal/infrastructure/telemetry"
)

// TaskFunc is the body of a named job
type TaskFunc func(ctx context.Context) error

// TaskRegistry dispatches jobs to the task registered under their name
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

// NewTaskRegistry creates an empty registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]TaskFunc)}
}

// Register binds a task to a job name, replacing any previous binding
func (r *TaskRegistry) Register(name string, fn TaskFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = fn
}

// Names lists registered job names in order
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute implements JobExecutor
func (r *TaskRegistry) Execute(ctx context.Context, job *Job) error {
	r.mu.RLock()
	fn, ok := r.tasks[job.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	ctx, span := telemetry.StartSpan(ctx, "job."+job.Name,
		telemetry.AttrJob.String(job.Name),
		attribute.String("job.id", job.ID.String()),
		attribute.Int("job.attempt", job.Attempts),
	)
	err := fn(ctx)
	telemetry.EndSpan(span, err)
	return err
}

var _ JobExecutor = (*TaskRegistry)(nil)
