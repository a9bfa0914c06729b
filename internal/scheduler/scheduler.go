// Package scheduler runs recurring maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one recurring unit of work
type Job struct {
	Name     string
	Schedule string // cron expression, @every syntax accepted
	Run      func(ctx context.Context) error
}

// Scheduler wraps a cron runner with logging and per-job timeouts
type Scheduler struct {
	cron       *cron.Cron
	jobTimeout time.Duration
	log        zerolog.Logger
}

// New creates a scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		jobTimeout: 10 * time.Minute,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a job to the schedule
func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name).
				Msg("Scheduled job failed")
			return
		}

		s.log.Info().
			Str("job", job.Name).
			Dur("took", time.Since(started)).
			Msg("Scheduled job completed")
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name, err)
	}

	s.log.Info().
		Str("job", job.Name).
		Str("schedule", job.Schedule).
		Msg("Job registered")

	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
