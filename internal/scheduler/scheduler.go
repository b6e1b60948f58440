// Package scheduler runs the job timetable.
//
// All jobs live in one static table evaluated by a single tick loop; no
// job owns a background timer of its own. Firings run in goroutines,
// but a per-job running flag guarantees at most one active run per job:
// a firing that arrives while the previous run is still going is
// skipped and logged, never queued.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/pkg/logger"
)

// Config holds scheduler parameters.
type Config struct {
	TickInterval   time.Duration
	MaxRetries     int // total attempts per firing
	RetryBaseDelay time.Duration
	StatusFile     string // persisted status table; empty disables persistence
}

type jobEntry struct {
	job           Job
	schedule      cron.Schedule
	maxRetries    int
	retryBase     time.Duration
	next          time.Time
	running       bool
	skipped       int
	lastSkippedAt time.Time
	lastRun       *JobRun
	lastSuccess   *time.Time
}

// Scheduler evaluates the timetable and runs job handlers with retry
// and failure notification.
type Scheduler struct {
	cfg      Config
	notifier contracts.Notifier
	logger   *logger.Logger

	mu      sync.Mutex
	entries []*jobEntry
	started time.Time
	beat    time.Time

	wg sync.WaitGroup
}

func New(cfg Config, notifier contracts.Notifier, log *logger.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, notifier: notifier, logger: log}
}

// Register adds a job to the timetable. Trigger specs are validated
// here so a malformed timetable fails at startup, not at fire time.
func (s *Scheduler) Register(job Job) error {
	schedule, err := job.Trigger.Schedule()
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name == job.Name {
			return fmt.Errorf("register job %s: duplicate name", job.Name)
		}
	}
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.cfg.MaxRetries
	}
	retryBase := job.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = s.cfg.RetryBaseDelay
	}
	s.entries = append(s.entries, &jobEntry{
		job:        job,
		schedule:   schedule,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		next:       schedule.Next(time.Now().UTC()),
	})
	s.logger.WithFields(map[string]interface{}{
		"job":     job.Name,
		"trigger": string(job.Trigger),
	}).Info("job registered")
	return nil
}

// Start runs the tick loop until ctx is cancelled, then waits for any
// in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now().UTC()
	s.beat = s.started
	n := len(s.entries)
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"jobs": n,
		"tick": s.cfg.TickInterval.String(),
	}).Info("scheduler started")
	s.persistStatus()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight runs")
			s.wg.Wait()
			s.persistStatus()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(ctx, now.UTC())
		}
	}
}

// tick fires every due entry. Called from the single loop goroutine.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.beat = now

	var due []*jobEntry
	for _, e := range s.entries {
		if e.next.After(now) {
			continue
		}
		e.next = e.schedule.Next(now)
		if e.running {
			// Previous run still active: skip, never queue.
			e.skipped++
			e.lastSkippedAt = now
			s.logger.WithField("job", e.job.Name).Warn("previous run still active, skipping firing")
			continue
		}
		e.running = true
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJob(ctx, e)
		}()
	}
	s.persistStatus()
}

// TriggerNow runs the named job synchronously, outside its timetable.
// It fails with ErrJobRunning if a scheduled run is already active.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (*JobRun, error) {
	s.mu.Lock()
	var entry *jobEntry
	for _, e := range s.entries {
		if e.job.Name == name {
			entry = e
			break
		}
	}
	if entry == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", contracts.ErrJobNotFound, name)
	}
	if entry.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", contracts.ErrJobRunning, name)
	}
	entry.running = true
	s.mu.Unlock()

	return s.runJob(ctx, entry), nil
}

// runJob executes one firing with retries. Exactly one webhook fires
// when all attempts are exhausted; a failure that later succeeds within
// the retry budget notifies nobody.
func (s *Scheduler) runJob(ctx context.Context, entry *jobEntry) *JobRun {
	run := &JobRun{
		RunID:     uuid.NewString()[:8],
		JobName:   entry.job.Name,
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
	}
	s.setLastRun(entry, run)

	log := s.logger.WithFields(map[string]interface{}{
		"job":    entry.job.Name,
		"run_id": run.RunID,
	})
	log.Info("job started")

	var lastErr error
	for attempt := 1; attempt <= entry.maxRetries; attempt++ {
		run.Attempts = attempt
		lastErr = entry.job.Handler(ctx)
		if lastErr == nil {
			break
		}
		log.WithError(lastErr).WithField("attempt", attempt).Warn("job attempt failed")
		if attempt == entry.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = fmt.Errorf("job interrupted: %w", ctx.Err())
			attempt = entry.maxRetries
		case <-time.After(Backoff(entry.retryBase, attempt)):
		}
	}

	run.FinishedAt = time.Now().UTC()
	if lastErr == nil {
		run.Status = RunStatusSuccess
		log.WithField("attempts", run.Attempts).Info("job succeeded")
	} else {
		run.Status = RunStatusFailed
		run.Error = lastErr.Error()
		log.WithError(lastErr).WithField("attempts", run.Attempts).Error("job failed, retries exhausted")
		s.notifyFailure(ctx, run, lastErr)
	}

	s.finishRun(entry, run)
	return run
}

func (s *Scheduler) notifyFailure(ctx context.Context, run *JobRun, err error) {
	subject := fmt.Sprintf("job failed: %s", run.JobName)
	body := fmt.Sprintf("run %s failed after %d attempts: %v", run.RunID, run.Attempts, err)
	// Notification failures are logged inside the notifier; a dead
	// webhook must not fail the scheduler.
	if nerr := s.notifier.NotifyFailure(ctx, subject, body); nerr != nil {
		s.logger.WithError(nerr).Error("failure notification not delivered")
	}
}

// setLastRun and finishRun store copies so the in-flight run can be
// mutated by its goroutine without racing status readers.
func (s *Scheduler) setLastRun(entry *jobEntry, run *JobRun) {
	copied := *run
	s.mu.Lock()
	entry.lastRun = &copied
	s.mu.Unlock()
	s.persistStatus()
}

func (s *Scheduler) finishRun(entry *jobEntry, run *JobRun) {
	copied := *run
	s.mu.Lock()
	entry.running = false
	entry.lastRun = &copied
	if copied.Status == RunStatusSuccess {
		// A later failed firing must not erase when the job last
		// succeeded.
		finished := copied.FinishedAt
		entry.lastSuccess = &finished
	}
	s.mu.Unlock()
	s.persistStatus()
}

// Status returns the current timetable state.
func (s *Scheduler) Status() *StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &StatusSnapshot{
		SchedulerStarted: s.started,
		LastHeartbeat:    s.beat,
		Jobs:             make(map[string]JobStatus, len(s.entries)),
	}
	for _, e := range s.entries {
		status := JobStatus{
			Name:           e.job.Name,
			Trigger:        string(e.job.Trigger),
			Running:        e.running,
			NextRun:        e.next,
			SkippedFirings: e.skipped,
			LastSkippedAt:  e.lastSkippedAt,
		}
		if e.lastRun != nil {
			copied := *e.lastRun
			status.LastRun = &copied
		}
		if e.lastSuccess != nil {
			succeeded := *e.lastSuccess
			status.LastSuccess = &succeeded
		}
		snap.Jobs[e.job.Name] = status
	}
	return snap
}

// Jobs returns the registered jobs sorted by name, for the CLI list
// command.
func (s *Scheduler) Jobs() []JobStatus {
	snap := s.Status()
	jobs := make([]JobStatus, 0, len(snap.Jobs))
	for _, job := range snap.Jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

func (s *Scheduler) persistStatus() {
	if s.cfg.StatusFile == "" {
		return
	}
	if err := saveStatus(s.cfg.StatusFile, s.Status()); err != nil {
		s.logger.WithError(err).Error("failed to persist scheduler status")
	}
}
