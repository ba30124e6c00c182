// Package scheduler runs periodic housekeeping: evicting idle catalog
// snapshots and idle login rate-limit buckets.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper evicts idle entries and reports how many were removed.
type Sweeper interface {
	Sweep() int
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func() int

func (f SweepFunc) Sweep() int { return f() }

// Scheduler wraps robfig/cron and owns the sweep jobs.
type Scheduler struct {
	cron *cron.Cron
	spec string // cron spec, e.g. "@every 5m"
	jobs map[string]Sweeper
}

// New creates a Scheduler that runs every registered sweeper once per interval.
func New(interval time.Duration) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		spec: fmt.Sprintf("@every %s", interval),
		jobs: make(map[string]Sweeper),
	}
}

// Add registers a named sweeper. It must be called before Start.
func (s *Scheduler) Add(name string, sw Sweeper) {
	s.jobs[name] = sw
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	for name, sw := range s.jobs {
		if _, err := s.cron.AddFunc(s.spec, func() { s.run(name, sw) }); err != nil {
			return fmt.Errorf("cron.AddFunc %s: %w", name, err)
		}
	}

	s.cron.Start()
	slog.Info("scheduler started", "spec", s.spec, "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunNow runs every sweeper once on the calling goroutine.
func (s *Scheduler) RunNow() {
	for name, sw := range s.jobs {
		s.run(name, sw)
	}
}

func (s *Scheduler) run(name string, sw Sweeper) {
	if removed := sw.Sweep(); removed > 0 {
		slog.Debug("sweep complete", "job", name, "removed", removed)
	}
}
