// Package common provides shared utilities for portwatch
package common

import (
	"time"

	"github.com/bobmcallan/portwatch/internal/models"
)

// Default staleness thresholds per tier
const (
	ThresholdRealTime  = 5 * time.Minute
	ThresholdDaily     = 1440 * time.Minute
	ThresholdWeekly    = 10080 * time.Minute
	ThresholdQuarterly = 131400 * time.Minute // ~91 days
)

// StalenessPolicy decides whether a tier is due for refresh.
type StalenessPolicy struct {
	thresholds map[models.Tier]time.Duration
}

// NewStalenessPolicy returns a policy with the default thresholds.
func NewStalenessPolicy() *StalenessPolicy {
	return &StalenessPolicy{
		thresholds: map[models.Tier]time.Duration{
			models.TierRealTime:  ThresholdRealTime,
			models.TierDaily:     ThresholdDaily,
			models.TierWeekly:    ThresholdWeekly,
			models.TierQuarterly: ThresholdQuarterly,
		},
	}
}

// NewStalenessPolicyFromConfig applies any configured threshold overrides.
func NewStalenessPolicyFromConfig(cfg RefreshConfig) *StalenessPolicy {
	p := NewStalenessPolicy()
	for tier, raw := range map[models.Tier]string{
		models.TierRealTime:  cfg.Thresholds.RealTime,
		models.TierDaily:     cfg.Thresholds.Daily,
		models.TierWeekly:    cfg.Thresholds.Weekly,
		models.TierQuarterly: cfg.Thresholds.Quarterly,
	} {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			p.thresholds[tier] = d
		}
	}
	return p
}

// Threshold returns the refresh interval for tier.
func (p *StalenessPolicy) Threshold(tier models.Tier) time.Duration {
	return p.thresholds[tier]
}

// Due reports whether a tier last refreshed at last needs refreshing at now.
func (p *StalenessPolicy) Due(last *time.Time, tier models.Tier, now time.Time) bool {
	return NeedsRefresh(last, p.Threshold(tier), now)
}

// NeedsRefresh is true when last is absent or at least threshold has elapsed.
func NeedsRefresh(last *time.Time, threshold time.Duration, now time.Time) bool {
	if last == nil || last.IsZero() {
		return true
	}
	return now.Sub(*last) >= threshold
}
