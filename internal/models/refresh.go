package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier identifies a refresh cadence and the field groups it owns.
type Tier string

const (
	TierRealTime  Tier = "realtime"
	TierDaily     Tier = "daily"
	TierWeekly    Tier = "weekly"
	TierQuarterly Tier = "quarterly"
)

// AllTiers lists the tiers in cadence order.
var AllTiers = []Tier{TierRealTime, TierDaily, TierWeekly, TierQuarterly}

// ParseTier normalises a tier name. "real-time" and "real_time" are accepted.
func ParseTier(s string) (Tier, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "", "_", "").Replace(v)
	for _, t := range AllTiers {
		if v == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown refresh tier %q", s)
}

// RefreshStatus is the outcome recorded in the audit log.
type RefreshStatus string

const (
	StatusSuccess RefreshStatus = "success"
	StatusPartial RefreshStatus = "partial"
	StatusFailed  RefreshStatus = "failed"
)

// RefreshLogEntry is an immutable audit row, one per refresh attempt.
type RefreshLogEntry struct {
	ID            string        `json:"id"`
	StockID       string        `json:"stock_id"`
	Symbol        string        `json:"symbol"`
	Tier          Tier          `json:"tier"`
	Status        RefreshStatus `json:"status"`
	FieldsUpdated []string      `json:"fields_updated"`
	Error         string        `json:"error,omitempty"`
	Endpoint      string        `json:"endpoint,omitempty"`
	LatencyMs     int64         `json:"latency_ms"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RefreshResult is returned to callers of a single-symbol refresh.
type RefreshResult struct {
	Symbol        string        `json:"symbol"`
	Tier          Tier          `json:"tier"`
	Status        RefreshStatus `json:"status"`
	FieldsUpdated []string      `json:"fields_updated"`
	Skipped       bool          `json:"skipped,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// BatchResult aggregates a multi-symbol refresh.
type BatchResult struct {
	Tier       Tier     `json:"tier"`
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
	Total      int      `json:"total"`
}

// ScheduleRun records the last time a named schedule was triggered.
type ScheduleRun struct {
	Name      string    `json:"name"`
	LastRunAt time.Time `json:"last_run_at"`
	Total     int       `json:"total"`
	Failed    int       `json:"failed"`
}

// ScheduleOutcome is returned by a scheduled tier trigger.
type ScheduleOutcome struct {
	Schedule  string       `json:"schedule"`
	Skipped   bool         `json:"skipped"`
	Reason    string       `json:"reason,omitempty"`
	LastRunAt *time.Time   `json:"last_run_at,omitempty"`
	Batch     *BatchResult `json:"batch,omitempty"`
}
