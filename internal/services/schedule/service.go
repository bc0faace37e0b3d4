// Package schedule runs tier batches on behalf of the cron endpoint and the
// in-process scheduler, throttled by the persisted last run of each schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// Slack absorbs trigger jitter, so a daily job at 18:00:00.1 is not
// throttled by yesterday's run at 18:00:00.5.
const throttleSlack = time.Minute

// Skip reasons
const (
	ReasonThrottled    = "throttled"
	ReasonMarketClosed = "market closed"
)

// ErrUnknownSchedule is returned for schedule names that are not tiers.
var ErrUnknownSchedule = errors.New("unknown schedule")

// BatchRecorder receives the result of every batch that ran
type BatchRecorder interface {
	ObserveBatch(result *models.BatchResult)
}

// Service triggers tier batches
type Service struct {
	refresh  interfaces.RefreshService
	runs     interfaces.ScheduleStore
	policy   *common.StalenessPolicy
	clock    *common.MarketClock
	recorder BatchRecorder
	logger   *common.Logger
	flight   singleflight.Group
	now      func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithStalenessPolicy sets the thresholds used as minimum schedule intervals
func WithStalenessPolicy(p *common.StalenessPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithMarketClock sets the clock gating the realtime schedule
func WithMarketClock(c *common.MarketClock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBatchRecorder reports batch results, e.g. to metrics
func WithBatchRecorder(r BatchRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a schedule service
func NewService(refresh interfaces.RefreshService, runs interfaces.ScheduleStore, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		refresh: refresh,
		runs:    runs,
		policy:  common.NewStalenessPolicy(),
		clock:   common.NewMarketClock(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run triggers the batch for the named schedule across every tracked symbol.
// A schedule that ran within its tier threshold is skipped, as is the
// realtime schedule outside the trading session. Concurrent triggers of the
// same schedule share one run.
func (s *Service) Run(ctx context.Context, name string) (*models.ScheduleOutcome, error) {
	tier, err := models.ParseTier(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
	}

	v, err, _ := s.flight.Do(string(tier), func() (interface{}, error) {
		return s.run(ctx, tier)
	})
	if err != nil {
		return nil, err
	}
	outcome := *v.(*models.ScheduleOutcome)
	return &outcome, nil
}

func (s *Service) run(ctx context.Context, tier models.Tier) (*models.ScheduleOutcome, error) {
	now := s.now()
	outcome := &models.ScheduleOutcome{Schedule: string(tier)}

	last, err := s.runs.LastRun(ctx, string(tier))
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w: %v", tier, common.ErrPersistence, err)
	}
	if last != nil {
		at := last.LastRunAt
		outcome.LastRunAt = &at
		// Slack lets a job that fired a few seconds late last time run on schedule
		if !s.policy.Due(&at, tier, now.Add(throttleSlack)) {
			outcome.Skipped = true
			outcome.Reason = ReasonThrottled
			s.logger.Debug().Str("schedule", string(tier)).Time("last_run", at).Msg("Schedule throttled")
			return outcome, nil
		}
	}

	if tier == models.TierRealTime && !s.clock.IsOpen(now) {
		outcome.Skipped = true
		outcome.Reason = ReasonMarketClosed
		s.logger.Debug().Str("schedule", string(tier)).Msg("Schedule skipped: market closed")
		return outcome, nil
	}

	batch, err := s.refresh.RefreshAll(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", tier, err)
	}
	outcome.Batch = batch
	if s.recorder != nil {
		s.recorder.ObserveBatch(batch)
	}

	run := &models.ScheduleRun{
		Name:      string(tier),
		LastRunAt: now,
		Total:     batch.Total,
		Failed:    len(batch.Failed),
	}
	// The batch already ran; a lost row only weakens throttling
	if err := s.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn().Err(err).Str("schedule", string(tier)).Msg("Failed to record schedule run")
	}

	s.logger.Info().
		Str("schedule", string(tier)).
		Int("total", batch.Total).
		Int("failed", len(batch.Failed)).
		Dur("elapsed", s.now().Sub(now)).
		Msg("Schedule run complete")

	return outcome, nil
}
