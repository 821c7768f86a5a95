// Package scheduler runs the console's periodic maintenance jobs: stats
// reconciliation and expiry of unconfirmed command intents.
//
// Due times come from a timeutil.Clock, so tests drive the scheduler with
// Tick and a fixed clock instead of sleeping.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/drivehub/admin-console/pkg/timeutil"
)

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the first run time after t.
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Clock drives due-time checks (default: timeutil.SystemClock).
	Clock timeutil.Clock

	// Tick is how often due jobs are checked (default: 1s).
	Tick time.Duration

	// MaxHistorySize bounds the execution history (default: 200).
	MaxHistorySize int

	// EnableMetrics enables aggregate counters.
	EnableMetrics bool
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Clock:          timeutil.SystemClock{},
		Tick:           time.Second,
		MaxHistorySize: 200,
		EnableMetrics:  true,
	}
}

type entry struct {
	job      Job
	schedule Schedule
	enabled  bool
	busy     bool
	nextRun  time.Time
	runs     int64
	fails    int64
	last     *JobResult
}

func (e *entry) due(now time.Time) bool {
	return e.enabled && !e.busy && !e.nextRun.IsZero() && !now.Before(e.nextRun)
}

func (e *entry) info() JobInfo {
	return JobInfo{
		Name:        e.job.Name(),
		Description: e.job.Description(),
		Enabled:     e.enabled,
		Schedule:    e.schedule.String(),
		NextRun:     e.nextRun,
		RunCount:    e.runs,
		FailCount:   e.fails,
		LastResult:  e.last,
	}
}

// Scheduler runs registered jobs when their schedule says they are due.
// A job never overlaps with itself.
type Scheduler struct {
	logger      *slog.Logger
	clock       timeutil.Clock
	tick        time.Duration
	historySize int
	metrics     *SchedulerMetrics

	mu         sync.RWMutex
	entries    map[string]*entry
	history    []JobResult
	onJobError func(jobName string, err error)

	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	loop     sync.WaitGroup
	inFlight sync.WaitGroup
	started  time.Time
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}
	if config.Tick <= 0 {
		config.Tick = time.Second
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 200
	}

	s := &Scheduler{
		logger:      config.Logger.With("component", "scheduler"),
		clock:       config.Clock,
		tick:        config.Tick,
		historySize: config.MaxHistorySize,
		entries:     make(map[string]*entry),
		runCtx:      context.Background(),
	}
	if config.EnableMetrics {
		s.metrics = NewSchedulerMetrics()
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job. Its first run is schedule.Next(now).
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule, enabled: true, nextRun: schedule.Next(s.clock.Now())}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Unregister removes a job. A run in progress finishes.
func (s *Scheduler) Unregister(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[jobName]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	delete(s.entries, jobName)
	return nil
}

// EnableJob resumes a job; its next run is one period from now.
func (s *Scheduler) EnableJob(jobName string) error {
	return s.setEnabled(jobName, true)
}

// DisableJob pauses a job without unregistering it.
func (s *Scheduler) DisableJob(jobName string) error {
	return s.setEnabled(jobName, false)
}

func (s *Scheduler) setEnabled(jobName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if enabled && !e.enabled {
		e.nextRun = e.schedule.Next(s.clock.Now())
	}
	e.enabled = enabled
	s.logger.Info("job toggled", "job", jobName, "enabled", enabled)
	return nil
}

// OnJobError sets a callback for failed runs.
func (s *Scheduler) OnJobError(fn func(jobName string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobError = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start runs the tick loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx, s.cancel = runCtx, cancel
	s.running = true
	s.started = s.clock.Now()
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", count, "tick", s.tick.String())

	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.launchDue()
			}
		}
	}()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.loop.Wait()
	s.inFlight.Wait()
	s.logger.Info("scheduler stopped", "uptime", s.clock.Now().Sub(s.started).String())
	return nil
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Tick launches every job due at the clock's current time and waits for
// them. It drives a scheduler that was not started.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.runCtx = ctx
	}
	s.mu.Unlock()

	s.launchDue()
	s.inFlight.Wait()
}

// launchDue claims due jobs under the lock, advancing their next run before
// they start, and runs each on its own goroutine.
func (s *Scheduler) launchDue() {
	now := s.clock.Now()

	s.mu.Lock()
	ctx := s.runCtx
	var due []*entry
	for _, e := range s.entries {
		if e.due(now) {
			e.busy = true
			e.nextRun = e.schedule.Next(now)
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.inFlight.Add(1)
		go func(e *entry) {
			defer s.inFlight.Done()
			s.execute(ctx, e, false)
		}(e)
	}
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, e, true)
	return &result, result.Error
}

func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) JobResult {
	name := e.job.Name()
	started := s.clock.Now()
	err := e.job.Run(ctx)
	completed := s.clock.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}
	if s.metrics != nil {
		s.metrics.RecordExecution(name, result.Duration, result.Success)
	}

	s.mu.Lock()
	if !manual {
		e.busy = false
	}
	e.runs++
	if err != nil {
		e.fails++
	}
	e.last = &result
	s.history = append(s.history, result)
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = s.history[over:]
	}
	onError := s.onJobError
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "manual", manual, "duration", result.Duration.String(), "error", err)
		if onError != nil {
			onError(name, err)
		}
	} else {
		s.logger.Debug("job completed", "job", name, "manual", manual, "duration", result.Duration.String())
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ListJobs returns every registered job sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetJobInfo returns one job.
func (s *Scheduler) GetJobInfo(jobName string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[jobName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	info := e.info()
	return &info, nil
}

// GetHistory returns up to limit most recent results, oldest first.
// A non-positive limit returns the whole history.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// GetMetrics returns the aggregate counters, or nil when disabled.
func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics aggregates executions across jobs.
type SchedulerMetrics struct {
	mu sync.Mutex

	executions int64
	failures   int64
	duration   time.Duration
	failedJobs map[string]int64
}

// NewSchedulerMetrics creates an empty tracker.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{failedJobs: make(map[string]int64)}
}

// RecordExecution records one run.
func (m *SchedulerMetrics) RecordExecution(jobName string, d time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.duration += d
	if !success {
		m.failures++
		m.failedJobs[jobName]++
	}
}

// MetricsSnapshot is a point-in-time copy of SchedulerMetrics.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
	FailuresByJob   map[string]int64
}

// Snapshot returns the current counters.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.executions - m.failures,
		TotalFailures:   m.failures,
		FailuresByJob:   make(map[string]int64, len(m.failedJobs)),
	}
	for k, v := range m.failedJobs {
		snap.FailuresByJob[k] = v
	}
	if m.executions > 0 {
		snap.SuccessRate = float64(snap.TotalSuccesses) / float64(m.executions)
		snap.AverageDuration = m.duration / time.Duration(m.executions)
	}
	return snap
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
