package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyTime(t *testing.T, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// March 2026: the 2nd is a Monday
	return time.Date(2026, time.March, day, hour, min, 0, 0, loc)
}

func TestMarketClock_WeekdayBoundaries(t *testing.T) {
	clock := NewMarketClock()

	for day := 2; day <= 6; day++ { // Mon..Fri
		open := nyTime(t, day, 9, 30)
		require.NotEqual(t, time.Saturday, open.Weekday())

		assert.False(t, clock.IsOpen(nyTime(t, day, 9, 29)), "%s 09:29", open.Weekday())
		assert.True(t, clock.IsOpen(open), "%s 09:30", open.Weekday())
		assert.True(t, clock.IsOpen(nyTime(t, day, 12, 0)), "%s noon", open.Weekday())
		assert.True(t, clock.IsOpen(nyTime(t, day, 16, 0)), "%s 16:00", open.Weekday())
		assert.False(t, clock.IsOpen(nyTime(t, day, 16, 1)), "%s 16:01", open.Weekday())
	}
}

func TestMarketClock_WeekendClosed(t *testing.T) {
	clock := NewMarketClock()
	for _, day := range []int{7, 8} { // Sat, Sun
		for hour := 0; hour < 24; hour++ {
			assert.False(t, clock.IsOpen(nyTime(t, day, hour, 0)))
		}
	}
}

func TestMarketClock_ConvertsTimezone(t *testing.T) {
	clock := NewMarketClock()
	// 14:30 UTC on a Monday in March 2026 (EST) is 09:30 New York
	assert.True(t, clock.IsOpen(time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC)))
	assert.False(t, clock.IsOpen(time.Date(2026, time.March, 2, 14, 29, 0, 0, time.UTC)))
}

func TestNewMarketClockFromConfig(t *testing.T) {
	clock, err := NewMarketClockFromConfig(MarketConfig{
		Timezone: "Australia/Sydney",
		Open:     "10:00",
		Close:    "16:30",
	})
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	loc := clock.Location()
	// 2026-03-02 is a Monday
	assert.True(t, clock.IsOpen(time.Date(2026, time.March, 2, 16, 30, 0, 0, loc)))
	assert.False(t, clock.IsOpen(time.Date(2026, time.March, 2, 9, 59, 0, 0, loc)))
}

func TestNewMarketClockFromConfig_Invalid(t *testing.T) {
	_, err := NewMarketClockFromConfig(MarketConfig{Open: "9am"})
	assert.Error(t, err)

	_, err = NewMarketClockFromConfig(MarketConfig{Open: "16:00", Close: "09:30"})
	assert.Error(t, err)
}
