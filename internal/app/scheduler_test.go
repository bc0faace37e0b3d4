package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

type fakeRunner struct {
	mu    sync.Mutex
	names []string
	runFn func(ctx context.Context, name string) (*models.ScheduleOutcome, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string) (*models.ScheduleOutcome, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	if f.runFn != nil {
		return f.runFn(ctx, name)
	}
	return &models.ScheduleOutcome{Schedule: name}, nil
}

func TestNewScheduler_RegistersTierJobs(t *testing.T) {
	cfg := common.NewDefaultConfig().Scheduler
	s, err := NewScheduler(cfg, nil, &fakeRunner{}, common.NewSilentLogger())
	require.NoError(t, err)
	defer s.Stop()

	var tags []string
	for _, j := range s.cron.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	sort.Strings(tags)
	assert.Equal(t, []string{"daily", "quarterly", "realtime", "weekly"}, tags)
}

func TestNewScheduler_InvalidTime(t *testing.T) {
	cfg := common.NewDefaultConfig().Scheduler
	cfg.DailyAt = "25:99"

	_, err := NewScheduler(cfg, nil, &fakeRunner{}, common.NewSilentLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")
}

func TestScheduler_TriggerRunsSchedule(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(common.NewDefaultConfig().Scheduler, nil, runner, common.NewSilentLogger())
	require.NoError(t, err)
	defer s.Stop()

	s.trigger("weekly")
	assert.Equal(t, []string{"weekly"}, runner.names)
}

func TestScheduler_TriggerContainsFailures(t *testing.T) {
	calls := 0
	runner := &fakeRunner{runFn: func(ctx context.Context, name string) (*models.ScheduleOutcome, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		panic("runner exploded")
	}}
	s, err := NewScheduler(common.NewDefaultConfig().Scheduler, nil, runner, common.NewSilentLogger())
	require.NoError(t, err)
	defer s.Stop()

	assert.NotPanics(t, func() { s.trigger("daily") })
	assert.NotPanics(t, func() { s.trigger("daily") })
	assert.Equal(t, 2, calls)
}

func TestScheduler_StopCancelsRunContext(t *testing.T) {
	var seen context.Context
	runner := &fakeRunner{runFn: func(ctx context.Context, name string) (*models.ScheduleOutcome, error) {
		seen = ctx
		return &models.ScheduleOutcome{Schedule: name}, nil
	}}
	s, err := NewScheduler(common.NewDefaultConfig().Scheduler, nil, runner, common.NewSilentLogger())
	require.NoError(t, err)

	s.Stop()
	s.trigger("daily")
	require.NotNil(t, seen)
	assert.Error(t, seen.Err())
}

func TestStartScheduler_UsesMarketTimezone(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Market.Timezone = "America/Chicago"
	cfg.Scheduler.Enabled = true

	a, err := NewAppFromConfig(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Clock)
	assert.Equal(t, "America/Chicago", a.Clock.Location().String())

	require.NoError(t, a.StartScheduler())
	require.NotNil(t, a.scheduler)
	assert.Equal(t, "America/Chicago", a.scheduler.cron.Location().String())
}

func TestNewAppFromConfig_InvalidTimezone(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Market.Timezone = "Mars/Olympus_Mons"

	_, err := NewAppFromConfig(cfg, common.NewSilentLogger())
	assert.Error(t, err)
}

func TestStartScheduler_Disabled(t *testing.T) {
	a, err := NewAppFromConfig(common.NewDefaultConfig(), common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.StartScheduler())
	assert.Nil(t, a.scheduler)
}
