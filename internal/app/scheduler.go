package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

// ScheduleRunner runs a named tier schedule
type ScheduleRunner interface {
	Run(ctx context.Context, name string) (*models.ScheduleOutcome, error)
}

// Scheduler drives the tier schedules in-process with gocron. Every job goes
// through the runner, so in-process ticks and the cron endpoint share the same
// persisted throttle.
type Scheduler struct {
	cron    *gocron.Scheduler
	runner  ScheduleRunner
	logger  *common.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewScheduler registers the realtime, daily, weekly and quarterly jobs in
// the exchange timezone. Quarterly is checked daily and left to the throttle.
func NewScheduler(cfg common.SchedulerConfig, loc *time.Location, runner ScheduleRunner, logger *common.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    gocron.NewScheduler(loc),
		runner:  runner,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timeout: 2 * time.Hour,
	}
	// A slow batch is never overlapped by its own next tick
	s.cron.SingletonModeAll()

	interval := cfg.RealTimeInterval
	if interval <= 0 {
		interval = 5
	}

	jobs := []struct {
		tier models.Tier
		job  func() (*gocron.Job, error)
	}{
		{models.TierRealTime, func() (*gocron.Job, error) {
			return s.cron.Every(interval).Minutes().Tag(string(models.TierRealTime)).Do(s.trigger, string(models.TierRealTime))
		}},
		{models.TierDaily, func() (*gocron.Job, error) {
			return s.cron.Every(1).Day().At(cfg.DailyAt).Tag(string(models.TierDaily)).Do(s.trigger, string(models.TierDaily))
		}},
		{models.TierWeekly, func() (*gocron.Job, error) {
			return s.cron.Every(1).Week().Sunday().At(cfg.WeeklyAt).Tag(string(models.TierWeekly)).Do(s.trigger, string(models.TierWeekly))
		}},
		{models.TierQuarterly, func() (*gocron.Job, error) {
			return s.cron.Every(1).Day().At(cfg.QuarterlyAt).Tag(string(models.TierQuarterly)).Do(s.trigger, string(models.TierQuarterly))
		}},
	}
	for _, j := range jobs {
		if _, err := j.job(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s refresh: %w", j.tier, err)
		}
	}

	return s, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Int("jobs", s.cron.Len()).Msg("Scheduler started")
}

// Stop cancels running batches and stops the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
}

// trigger is the job body. Panics are logged and contained.
func (s *Scheduler) trigger(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("schedule", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in scheduled refresh")
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	outcome, err := s.runner.Run(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", name).Msg("Scheduled refresh failed")
		return
	}
	if outcome.Skipped {
		s.logger.Debug().Str("schedule", name).Str("reason", outcome.Reason).Msg("Scheduled refresh skipped")
	}
}

// StartScheduler starts the in-process scheduler when enabled in config.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled")
		return nil
	}
	clock := a.Clock
	if clock == nil {
		clock = common.NewMarketClock()
	}
	s, err := NewScheduler(a.Config.Scheduler, clock.Location(), a.Schedules, a.Logger)
	if err != nil {
		return err
	}
	a.scheduler = s
	s.Start()
	return nil
}
