package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/runguard"
	"go.uber.org/zap"
)

// generateClaimTTL outlives the calendar day so a slow instance cannot claim it again
const generateClaimTTL = 36 * time.Hour

// TriggerConfig holds configuration for the in-process trigger
type TriggerConfig struct {
	// GenerateHour and GenerateMinute are the local time of the daily generation run
	GenerateHour   int
	GenerateMinute int

	// ReconcileInterval is the spacing of reconciliation runs; zero disables them
	ReconcileInterval time.Duration

	// CheckInterval is how often to check if a job is due
	CheckInterval time.Duration

	// Location is the zone the generation time is read in
	Location *time.Location
}

// DefaultTriggerConfig returns default trigger configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		GenerateHour:      6,
		GenerateMinute:    0,
		ReconcileInterval: time.Hour,
		CheckInterval:     time.Minute,
		Location:          time.UTC,
	}
}

func (c TriggerConfig) validate() error {
	if c.GenerateHour < 0 || c.GenerateHour > 23 || c.GenerateMinute < 0 || c.GenerateMinute > 59 {
		return fmt.Errorf("%w: generate time %02d:%02d", ErrInvalidConfig, c.GenerateHour, c.GenerateMinute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("%w: reconcile interval cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Jobs are the functions the trigger calls
type Jobs struct {
	Generate  JobFunc
	Reconcile JobFunc
}

// JobTrigger starts the daily generation run and the periodic reconciliation
// run. Every slot is claimed through the guard first, so instances sharing a
// Redis guard run each slot once.
type JobTrigger struct {
	config TriggerConfig
	runner *Runner
	guard  runguard.Guard
	clock  clock.Clock
	jobs   Jobs
	logger *zap.Logger

	cancel            context.CancelFunc
	wg                sync.WaitGroup
	mu                sync.Mutex
	isRunning         bool
	lastGenerateDate  string
	lastReconcileSlot time.Time
}

// NewJobTrigger creates a new trigger
func NewJobTrigger(
	config TriggerConfig,
	runner *Runner,
	guard runguard.Guard,
	c clock.Clock,
	jobs Jobs,
	logger *zap.Logger,
) (*JobTrigger, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if runner == nil || guard == nil || jobs.Generate == nil || jobs.Reconcile == nil {
		return nil, fmt.Errorf("%w: runner, guard and both jobs are required", ErrInvalidConfig)
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &JobTrigger{
		config: config,
		runner: runner,
		guard:  guard,
		clock:  c,
		jobs:   jobs,
		logger: logger.Named("job_trigger"),
	}, nil
}

// Start starts the check loop
func (t *JobTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Job trigger started",
		zap.String("generate_at", fmt.Sprintf("%02d:%02d", t.config.GenerateHour, t.config.GenerateMinute)),
		zap.String("timezone", t.config.Location.String()),
		zap.Duration("reconcile_interval", t.config.ReconcileInterval),
		zap.Duration("check_interval", t.config.CheckInterval),
	)

	return nil
}

// Stop stops the loop and waits for an in-flight run to observe cancellation
func (t *JobTrigger) Stop(ctx context.Context) error {
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
		t.logger.Info("Job trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *JobTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

func (t *JobTrigger) checkAndTrigger(ctx context.Context) {
	now := t.clock.Now().In(t.config.Location)
	t.maybeGenerate(ctx, now)
	if ctx.Err() == nil {
		t.maybeReconcile(ctx, now)
	}
}

// maybeGenerate runs generation once per local date, at or after the
// configured time. A missed tick is caught up later the same day.
func (t *JobTrigger) maybeGenerate(ctx context.Context, now time.Time) {
	date := now.Format("2006-01-02")

	t.mu.Lock()
	done := t.lastGenerateDate == date
	t.mu.Unlock()
	if done || now.Hour()*60+now.Minute() < t.config.GenerateHour*60+t.config.GenerateMinute {
		return
	}

	key := JobGenerate + ":" + date
	claimed, err := t.guard.Claim(ctx, key, generateClaimTTL)
	if err != nil {
		t.logger.Warn("Failed to claim generation slot", zap.String("date", date), zap.Error(err))
		return
	}

	t.mu.Lock()
	t.lastGenerateDate = date
	t.mu.Unlock()

	if !claimed {
		t.logger.Info("Generation already triggered for date", zap.String("date", date))
		return
	}

	if err := t.runJob(ctx, JobGenerate, t.jobs.Generate); err != nil && !errors.Is(err, ErrJobAlreadyRunning) {
		// retry on the next tick
		if relErr := t.guard.Release(context.WithoutCancel(ctx), key); relErr != nil {
			t.logger.Warn("Failed to release generation slot", zap.String("date", date), zap.Error(relErr))
			return
		}
		t.mu.Lock()
		t.lastGenerateDate = ""
		t.mu.Unlock()
	}
}

// maybeReconcile runs reconciliation once per interval slot
func (t *JobTrigger) maybeReconcile(ctx context.Context, now time.Time) {
	interval := t.config.ReconcileInterval
	if interval <= 0 {
		return
	}
	slot := now.Truncate(interval)

	t.mu.Lock()
	done := slot.Equal(t.lastReconcileSlot)
	t.mu.Unlock()
	if done {
		return
	}

	claimed, err := t.guard.Claim(ctx, JobReconcile+":"+strconv.FormatInt(slot.Unix(), 10), interval)
	if err != nil {
		t.logger.Warn("Failed to claim reconciliation slot", zap.Time("slot", slot), zap.Error(err))
		return
	}

	t.mu.Lock()
	t.lastReconcileSlot = slot
	t.mu.Unlock()

	if claimed {
		_ = t.runJob(ctx, JobReconcile, t.jobs.Reconcile)
	}
}

func (t *JobTrigger) runJob(ctx context.Context, job string, fn JobFunc) error {
	_, err := t.runner.Run(ctx, job, TriggerSchedule, fn)
	if errors.Is(err, ErrJobAlreadyRunning) {
		t.logger.Info("Skipping scheduled run, job already running", zap.String("job", job))
	}
	return err
}
