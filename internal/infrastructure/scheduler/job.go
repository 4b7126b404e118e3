package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is where a job is in its run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one requested run of a named task, including its retries. A job
// is owned by one worker at a time.
type Job struct {
	ID         uuid.UUID
	Name       string
	Status     JobStatus
	Attempts   int
	MaxRetries int
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
	RetryAt    time.Time
}

// NewJob creates a pending job for the named task
func NewJob(name string, maxRetries int) *Job {
	return &Job{ID: uuid.New(), Name: name, Status: JobStatusPending, MaxRetries: maxRetries}
}

func (j *Job) begin(now time.Time) {
	j.Attempts++
	j.Status = JobStatusRunning
	j.StartedAt = now
	j.FinishedAt = time.Time{}
	j.RetryAt = time.Time{}
}

func (j *Job) finish(now time.Time, err error) {
	j.FinishedAt = now
	if err != nil {
		j.Status = JobStatusFailed
		j.LastError = err.Error()
		return
	}
	j.Status = JobStatusSuccess
	j.LastError = ""
}

// CanRetry reports whether a failed job has retries left
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts <= j.MaxRetries
}

func (j *Job) retryIn(d time.Duration, now time.Time) {
	j.Status = JobStatusPending
	j.RetryAt = now.Add(d)
}
