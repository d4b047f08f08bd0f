package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single run of a scheduled job.
const jobTimeout = 5 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
	log      *slog.Logger
}

// New creates a new scheduler with the given timezone. "Local" and "" use
// the system zone.
func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
		}
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		log:      logger.With("component", "scheduler"),
	}, nil
}

// AddJob adds a job with a cron schedule
// schedule format: "*/5 * * * *" (every five minutes)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.run(context.Background(), name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.Info("added job", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) run(parent context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	s.log.Debug("starting job", "job", name)
	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Error("job failed", "job", name, "err", err)
		return err
	}
	s.log.Debug("job completed", "job", name, "took", time.Since(start))
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.Info("removed job", "job", name)
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler", "timezone", s.timezone.String())
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.run(ctx, name, job)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

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

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}
