package scheduler

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
)

// runJob executes a job with a timeout and records its outcome.
// Job failures are logged and never propagate.
func (s *Service) runJob(job string, run func(ctx context.Context) error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	// Track job duration and update last run timestamp on exit
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(job)
	}()

	if err := run(ctx); err != nil {
		prommetrics.RecordSchedulerJobRun(job, "error")
		s.log.Error().
			Err(err).
			Str("job", job).
			Dur("duration", time.Since(start)).
			Msg("Scheduler job failed")
		return
	}

	prommetrics.RecordSchedulerJobRun(job, "success")
	s.log.Debug().
		Str("job", job).
		Dur("duration", time.Since(start)).
		Msg("Scheduler job completed")
}

// runCooldownSweep removes cooldowns of every kind older than the configured
// max age. The sweeper swallows storage errors itself.
func (s *Service) runCooldownSweep(ctx context.Context) error {
	removed := s.sweeper.Sweep(ctx, s.config.CooldownMaxAge, "")

	s.log.Info().
		Int64("removed", removed).
		Dur("max_age", s.config.CooldownMaxAge).
		Msg("Cooldown sweep job finished")
	return nil
}

// runStatsRefresh publishes ledger totals as gauges. On failure the gauges
// keep their last published values.
func (s *Service) runStatsRefresh(ctx context.Context) error {
	stats, err := s.stats.ComputeServerStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh ledger stats: %w", err)
	}

	prommetrics.SetLedgerTotals(
		stats.TotalUsers,
		stats.TotalFeedback,
		stats.TotalCredits,
		stats.TotalLeases,
		stats.ActiveThisMonth,
	)
	return nil
}
