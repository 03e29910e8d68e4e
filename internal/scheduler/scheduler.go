// Package scheduler wires up the cron job that periodically runs the
// followup sweep over previously-bid projects.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job interface {
	Run(ctx context.Context)
}

// Scheduler wraps robfig/cron around a single periodic job.
type Scheduler struct {
	cron *cron.Cron
	job  Job
	spec string
	log  *slog.Logger
}

// New creates a Scheduler that fires every interval.
func New(job Job, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		job:  job,
		spec: fmt.Sprintf("@every %s", interval),
		log:  log,
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so a restart catches up without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.job.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", "spec", s.spec)

	go s.job.Run(ctx)

	return nil
}

// Stop shuts the scheduler down and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}
