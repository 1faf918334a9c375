// Package scheduler runs periodic jobs such as the watch scrape on a cron clock.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds a single job run
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron       *cron.Cron
	logger     *zap.Logger
	jobTimeout time.Duration
	timezone   *time.Location

	// ctx is cancelled by Stop so running jobs unwind promptly
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a new scheduler with the given timezone. A run that is still going
// when its next tick fires is skipped rather than overlapped.
func New(timezone string, jobTimeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	logger = logger.Named("scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{logger.Sugar()}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
	)

	return &Scheduler{
		cron:       c,
		logger:     logger,
		jobTimeout: jobTimeout,
		timezone:   loc,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]cron.EntryID),
	}, nil
}

// AddJob adds a job with a cron schedule, replacing any job of the same name.
// schedule format: "0 7 * * *" (at 7:00 AM daily) or a descriptor like "@every 6h"
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		_ = s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	old, replaced := s.jobs[name]
	s.jobs[name] = entryID
	s.mu.Unlock()
	if replaced {
		s.cron.Remove(old)
	}

	s.logger.Info("Added job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// AddIntervalJob runs job every intervalHours hours
func (s *Scheduler) AddIntervalJob(name string, intervalHours int, job Job) error {
	if intervalHours <= 0 {
		return fmt.Errorf("interval for job %s must be positive, got %d", name, intervalHours)
	}
	return s.AddJob(name, fmt.Sprintf("@every %dh", intervalHours), job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	s.logger.Info("Starting job", zap.String("job", name))
	start := time.Now()

	if err := job(ctx); err != nil {
		s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
		return err
	}
	s.logger.Info("Job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(entryID)
		s.logger.Info("Removed job", zap.String("job", name))
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler and cancels running jobs. The returned context is
// done once they have returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	s.cancel()
	return ctx
}

// RunNow immediately executes job with the scheduler's timeout and logging
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

// ListJobs returns info about scheduled jobs sorted by name
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
