package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockPatch_ApplyTo_RetainsExistingFields(t *testing.T) {
	rec := &StockRecord{Symbol: "ACME"}
	rec.Sector = Ptr("Tech")

	patch := StockPatch{}
	patch.MarketCap = Ptr(5e8)

	touched := patch.ApplyTo(rec)

	assert.Equal(t, []string{"marketCap"}, touched)
	require.NotNil(t, rec.Sector)
	assert.Equal(t, "Tech", *rec.Sector)
	assert.Equal(t, 5e8, *rec.MarketCap)
}

func TestStockPatch_Fields_Sorted(t *testing.T) {
	patch := StockPatch{}
	patch.Sector = Ptr("Industrials")
	patch.MarketCap = Ptr(5e8)
	patch.Volume = Ptr(int64(100))

	assert.Equal(t, []string{"marketCap", "sector", "volume"}, patch.Fields())
	assert.False(t, patch.IsEmpty())
	assert.True(t, (&StockPatch{}).IsEmpty())
}

func TestStockPatch_ApplyTo_CopiesValues(t *testing.T) {
	price := 10.0
	patch := StockPatch{}
	patch.CurrentPrice = &price

	rec := &StockRecord{}
	patch.ApplyTo(rec)
	price = 99

	assert.Equal(t, 10.0, *rec.CurrentPrice, "record must not alias patch values")
}

func TestStockRecord_Stamp(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	for _, tier := range AllTiers {
		t.Run(string(tier), func(t *testing.T) {
			rec := &StockRecord{}
			rec.Stamp(tier, now)
			require.NotNil(t, rec.LastRefresh(tier))
			assert.Equal(t, now, *rec.LastRefresh(tier))
			assert.Equal(t, now, *rec.LastUpdated)
			for _, other := range AllTiers {
				if other != tier {
					assert.Nil(t, rec.LastRefresh(other))
				}
			}
		})
	}
}

func TestStockRecord_Clone(t *testing.T) {
	now := time.Now()
	rec := &StockRecord{ID: "acme", Symbol: "ACME"}
	rec.Sector = Ptr("Tech")
	rec.Stamp(TierDaily, now)

	cp := rec.Clone()
	*cp.Sector = "Energy"

	assert.Equal(t, "Tech", *rec.Sector)
	assert.Equal(t, "ACME", cp.Symbol)
	assert.Equal(t, now, *cp.LastDailyUpdate)
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"daily", TierDaily, false},
		{"REALTIME", TierRealTime, false},
		{"real-time", TierRealTime, false},
		{"real_time", TierRealTime, false},
		{" weekly ", TierWeekly, false},
		{"quarterly", TierQuarterly, false},
		{"monthly", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTier(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
