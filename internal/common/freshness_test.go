package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/portwatch/internal/models"
)

func TestStalenessPolicy_NilTimestampIsDue(t *testing.T) {
	p := NewStalenessPolicy()
	for _, tier := range models.AllTiers {
		assert.True(t, p.Due(nil, tier, time.Now()), "tier %s with no timestamp should be due", tier)
	}
}

func TestStalenessPolicy_JustRefreshedIsNotDue(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	p := NewStalenessPolicy()
	for _, tier := range models.AllTiers {
		last := now
		assert.False(t, p.Due(&last, tier, now), "tier %s refreshed now should not be due", tier)
	}
}

func TestStalenessPolicy_Thresholds(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	p := NewStalenessPolicy()

	tests := []struct {
		tier    models.Tier
		minutes int
	}{
		{models.TierRealTime, 5},
		{models.TierDaily, 1440},
		{models.TierWeekly, 10080},
		{models.TierQuarterly, 131400},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			atThreshold := now.Add(-time.Duration(tt.minutes) * time.Minute)
			justUnder := atThreshold.Add(time.Second)
			assert.True(t, p.Due(&atThreshold, tt.tier, now))
			assert.False(t, p.Due(&justUnder, tt.tier, now))
		})
	}
}

func TestNewStalenessPolicyFromConfig(t *testing.T) {
	p := NewStalenessPolicyFromConfig(RefreshConfig{
		Thresholds: ThresholdsConfig{Daily: "12h", Weekly: "garbage"},
	})
	assert.Equal(t, 12*time.Hour, p.Threshold(models.TierDaily))
	assert.Equal(t, ThresholdWeekly, p.Threshold(models.TierWeekly))
	assert.Equal(t, ThresholdRealTime, p.Threshold(models.TierRealTime))
}

func TestNeedsRefresh_ZeroTimestampIsDue(t *testing.T) {
	var zero time.Time
	assert.True(t, NeedsRefresh(&zero, time.Hour, time.Now()))
}
