package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// MarketClock reports whether the tracked exchange is in its regular session.
type MarketClock struct {
	loc      *time.Location
	open     int // minute of day, inclusive
	close    int // minute of day, inclusive
	holidays *calendar.Calendar
}

// NewMarketClock returns a Monday–Friday 09:30–16:00 America/New_York clock.
func NewMarketClock() *MarketClock {
	return &MarketClock{
		loc:   mustLoadLocation("America/New_York", -5),
		open:  9*60 + 30,
		close: 16 * 60,
	}
}

// NewMarketClockFromConfig builds a clock from the market section of the config.
// An empty holiday MIC leaves holiday handling off.
func NewMarketClockFromConfig(cfg MarketConfig) (*MarketClock, error) {
	c := NewMarketClock()
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load market timezone %s: %w", cfg.Timezone, err)
		}
		c.loc = loc
	}
	if cfg.Open != "" {
		m, err := parseMinuteOfDay(cfg.Open)
		if err != nil {
			return nil, err
		}
		c.open = m
	}
	if cfg.Close != "" {
		m, err := parseMinuteOfDay(cfg.Close)
		if err != nil {
			return nil, err
		}
		c.close = m
	}
	if c.close < c.open {
		return nil, fmt.Errorf("market close %s is before open %s", cfg.Close, cfg.Open)
	}
	if cfg.HolidayMIC != "" {
		cal := calendar.GetCalendar(strings.ToLower(cfg.HolidayMIC))
		if cal == nil {
			return nil, fmt.Errorf("unknown exchange calendar %q", cfg.HolidayMIC)
		}
		c.holidays = cal
	}
	return c, nil
}

// Location returns the exchange timezone.
func (c *MarketClock) Location() *time.Location {
	return c.loc
}

// IsOpen is true when now falls inside the session window on a weekday.
// Both boundary minutes count as open.
func (c *MarketClock) IsOpen(now time.Time) bool {
	local := now.In(c.loc)
	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	if c.holidays != nil && !c.holidays.IsBusinessDay(local) {
		return false
	}
	hour, min, _ := local.Clock()
	minuteOfDay := hour*60 + min
	return minuteOfDay >= c.open && minuteOfDay <= c.close
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid session time %q (want HH:MM): %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// mustLoadLocation falls back to a fixed offset when tzdata is unavailable
// (e.g., minimal container).
func mustLoadLocation(name string, offsetHours int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offsetHours*60*60)
	}
	return loc
}
