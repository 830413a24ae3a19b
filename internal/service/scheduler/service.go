// Package scheduler runs periodic background jobs such as the donation rank expiry sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/forum-progression/internal/config"
	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/relay"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// JobRankSweep is the metrics label of the rank expiry job.
const JobRankSweep = "rank_sweep"

// RankSweeper clears expired donation ranks.
type RankSweeper interface {
	SweepExpired(ctx context.Context) ([]uint, error)
}

// CacheInvalidator drops cached leaderboards after rank changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service handles background job scheduling.
type Service struct {
	config      *config.SchedulerConfig
	ranks       RankSweeper
	broadcaster relay.Broadcaster
	cache       CacheInvalidator
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service. broadcaster and cache may be nil.
func NewService(
	cfg *config.SchedulerConfig,
	ranks RankSweeper,
	broadcaster relay.Broadcaster,
	cache CacheInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		ranks:       ranks,
		broadcaster: broadcaster,
		cache:       cache,
		log:         log,
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

	schedule := s.config.RankSweep
	if schedule == "" {
		schedule = "@hourly"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid rank sweep schedule %q: %w", schedule, err)
	}

	s.cron = cron.New(cron.WithLocation(location))
	if _, err := s.cron.AddFunc(schedule, func() {
		s.runRankSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register rank sweep job: %w", err)
	}

	s.cron.Start()

	nextRun := ""
	if entries := s.cron.Entries(); len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("timezone", location.String()).
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

// RunNow runs the rank sweep immediately, outside the schedule.
func (s *Service) RunNow(ctx context.Context) {
	s.runRankSweep(ctx)
}

// runRankSweep clears expired ranks and tells the relay about each removal.
func (s *Service) runRankSweep(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(JobRankSweep, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(JobRankSweep)
	}()

	s.log.Debug().Msg("Running rank expiry sweep")

	cleared, err := s.ranks.SweepExpired(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Rank expiry sweep failed")
		prommetrics.RecordSchedulerJobRun(JobRankSweep, "error")
		return
	}
	prommetrics.RecordSchedulerJobRun(JobRankSweep, "success")

	if len(cleared) == 0 {
		return
	}

	for _, userID := range cleared {
		relay.Notify(s.broadcaster, s.log, &relay.Event{
			Type:    relay.EventUserRankRemoved,
			UserID:  userID,
			Payload: relay.RankPayload{},
		})
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
		}
	}

	s.log.Info().
		Int("cleared", len(cleared)).
		Dur("duration", time.Since(start)).
		Msg("Rank expiry sweep completed")
}
