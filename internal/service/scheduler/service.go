// Package scheduler runs periodic ledger maintenance: the cooldown sweep and
// the refresh of ledger-wide Prometheus gauges.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/feedback-ledger/internal/config"
	"github.com/aimd54/feedback-ledger/internal/service/cooldowns"
	"github.com/aimd54/feedback-ledger/internal/service/leaderboard"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// Job names, used as metric labels.
const (
	JobCooldownSweep = "cooldown_sweep"
	JobStatsRefresh  = "stats_refresh"
)

// CooldownSweeper removes stale cooldown rows.
type CooldownSweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration, actionKind string) int64
}

// StatsSource provides ledger-wide statistics.
type StatsSource interface {
	ComputeServerStats(ctx context.Context) (leaderboard.ServerStats, error)
}

// Service handles maintenance job scheduling.
type Service struct {
	config     *config.SchedulerConfig
	sweeper    CooldownSweeper
	stats      StatsSource
	log        *logger.Logger
	cron       *cron.Cron
	jobTimeout time.Duration
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	cooldownService *cooldowns.Service,
	leaderboardService *leaderboard.Service,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, cooldownService, leaderboardService, log)
}

// NewServiceWithInterfaces creates a new scheduler service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(cfg *config.SchedulerConfig, sweeper CooldownSweeper, stats StatsSource, log *logger.Logger) *Service {
	return &Service{
		config:     cfg,
		sweeper:    sweeper,
		stats:      stats,
		log:        log,
		jobTimeout: 5 * time.Minute,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if err := s.register(JobCooldownSweep, s.config.CooldownSweep, s.runCooldownSweep); err != nil {
		return err
	}

	if s.config.StatsRefresh != "" && s.stats != nil {
		if err := s.register(JobStatsRefresh, s.config.StatsRefresh, s.runStatsRefresh); err != nil {
			return err
		}
	}

	// Publish gauges right away instead of waiting for the first tick.
	if s.config.StatsRefresh != "" && s.stats != nil {
		s.runJob(JobStatsRefresh, s.runStatsRefresh)
	}

	s.cron.Start()

	nextRun := ""
	if entries := s.cron.Entries(); len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("cooldown_sweep", s.config.CooldownSweep).
		Dur("cooldown_max_age", s.config.CooldownMaxAge).
		Str("stats_refresh", s.config.StatsRefresh).
		Str("timezone", s.config.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

func (s *Service) register(job, spec string, run func(ctx context.Context) error) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", job, spec, err)
	}

	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(job, run)
	})
	if err != nil {
		return fmt.Errorf("failed to register %s job: %w", job, err)
	}

	s.log.Info().Str("job", job).Str("schedule", spec).Msg("Scheduler job registered")
	return nil
}
