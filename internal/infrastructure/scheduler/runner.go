// Package scheduler runs the invoicing jobs, either on a timer inside the
// server process or on demand from the trigger endpoints.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job names
const (
	JobGenerate  = "generate"
	JobReconcile = "reconcile"
)

// Trigger sources recorded on each run
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// JobStatus represents the status of a job run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobFunc performs one run of a job
type JobFunc func(ctx context.Context) error

// Run is the record of a single job run
type Run struct {
	ID          string     `json:"id"`
	Job         string     `json:"job"`
	Trigger     string     `json:"trigger"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, zero while it is still running
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *Run) complete(at time.Time, err error) {
	r.CompletedAt = &at
	if err != nil {
		r.Status = JobStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = JobStatusSuccess
}

// Runner executes jobs one at a time per job name. A second run of a job
// that is still in progress is rejected, not queued.
type Runner struct {
	timeout time.Duration
	clock   clock.Clock
	logger  *zap.Logger

	mu      sync.Mutex
	running map[string]Run
	last    map[string]Run
}

// NewRunner creates a runner. timeout bounds every run; zero disables it.
func NewRunner(timeout time.Duration, c clock.Clock, logger *zap.Logger) *Runner {
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		timeout: timeout,
		clock:   c,
		logger:  logger.Named("job_runner"),
		running: make(map[string]Run),
		last:    make(map[string]Run),
	}
}

// Run executes fn as job. The context passed to fn carries the job logger
// and the run deadline. A panic in fn is recovered and recorded as a failed
// run wrapping ErrJobPanicked.
func (r *Runner) Run(ctx context.Context, job, trigger string, fn JobFunc) (result Run, err error) {
	run := Run{
		ID:        uuid.NewString(),
		Job:       job,
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: r.clock.Now(),
	}

	r.mu.Lock()
	if current, busy := r.running[job]; busy {
		r.mu.Unlock()
		return current, fmt.Errorf("%w: %s (run %s)", ErrJobAlreadyRunning, job, current.ID)
	}
	r.running[job] = run
	r.mu.Unlock()

	ctx, jobLogger := logger.WithJobRun(ctx, r.logger, job, run.ID)
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		jobLogger = jobLogger.With(zap.String("request_id", requestID))
		ctx = logger.WithContext(ctx, jobLogger)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, job, p)
			jobLogger.Error("Job panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
		run.complete(r.clock.Now(), err)

		r.mu.Lock()
		delete(r.running, job)
		r.last[job] = run
		r.mu.Unlock()

		if err != nil {
			jobLogger.Error("Job failed", zap.Duration("duration", run.Duration()), zap.Error(err))
		} else {
			jobLogger.Info("Job completed", zap.Duration("duration", run.Duration()))
		}
		result = run
	}()

	jobLogger.Info("Job started", zap.String("trigger", trigger))
	return run, fn(ctx)
}

// IsRunning reports whether a run of job is in progress
func (r *Runner) IsRunning(job string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[job]
	return ok
}

// Runs returns the in-progress run or else the last finished run of every
// job seen so far, ordered by job name
func (r *Runner) Runs() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := make([]Run, 0, len(r.last)+len(r.running))
	for job, run := range r.last {
		if _, busy := r.running[job]; !busy {
			runs = append(runs, run)
		}
	}
	for _, run := range r.running {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Job < runs[j].Job })
	return runs
}
