package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

func TestStockStore_InsertGetUpdate(t *testing.T) {
	db := testDB(t)
	store := NewStockStore(db, testLogger())
	ctx := context.Background()

	_, err := store.Get(ctx, "ACME")
	assert.ErrorIs(t, err, common.ErrNotFound)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := store.Insert(ctx, &models.StockRecord{ID: "s1", Symbol: "acme", CreatedAt: created})
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.ID)
	assert.Equal(t, "ACME", rec.Symbol)

	again, err := store.Insert(ctx, &models.StockRecord{ID: "s2", Symbol: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "s1", again.ID, "existing record is returned")

	at := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	patch := &models.StockPatch{}
	patch.Sector = models.Ptr("Industrials")
	patch.MarketCap = models.Ptr(1.5e9)
	updated, err := store.Update(ctx, "s1", patch, models.TierDaily, at)
	require.NoError(t, err)
	require.NotNil(t, updated.Sector)
	assert.Equal(t, "Industrials", *updated.Sector)
	assert.InDelta(t, 1.5e9, *updated.MarketCap, 1)
	require.NotNil(t, updated.LastDailyUpdate)
	assert.True(t, at.Equal(*updated.LastDailyUpdate))
	assert.True(t, at.Equal(*updated.LastUpdated))
	assert.Nil(t, updated.LastWeeklyUpdate)

	// A later patch without sector keeps it
	later := at.Add(time.Hour)
	patch = &models.StockPatch{}
	patch.Website = models.Ptr("https://acme.example")
	_, err = store.Update(ctx, "s1", patch, models.TierWeekly, later)
	require.NoError(t, err)

	got, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "Industrials", *got.Sector)
	assert.Equal(t, "https://acme.example", *got.Website)
	assert.True(t, at.Equal(*got.LastDailyUpdate))
	assert.True(t, later.Equal(*got.LastWeeklyUpdate))

	_, err = store.Update(ctx, "missing", patch, models.TierDaily, at)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStockStore_ListSymbols(t *testing.T) {
	db := testDB(t)
	store := NewStockStore(db, testLogger())
	ctx := context.Background()

	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, symbols)

	for i, sym := range []string{"MSFT", "AAPL", "ACME"} {
		_, err := store.Insert(ctx, &models.StockRecord{ID: string(rune('a' + i)), Symbol: sym})
		require.NoError(t, err)
	}
	symbols, err = store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "ACME", "MSFT"}, symbols)
}

func TestStockStore_ReplaceSatellites(t *testing.T) {
	db := testDB(t)
	store := NewStockStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.ReplaceEarnings(ctx, "s1", []models.EarningsRecord{
		{Symbol: "ACME", FiscalDate: "2025-09-30", EPSActual: models.Ptr(1.1)},
		{Symbol: "ACME", FiscalDate: "2025-12-31", EPSActual: models.Ptr(1.2)},
	}))
	require.NoError(t, store.ReplaceEarnings(ctx, "s2", []models.EarningsRecord{{Symbol: "OTHER", FiscalDate: "2025-12-31"}}))
	require.NoError(t, store.ReplaceEarnings(ctx, "s1", []models.EarningsRecord{
		{Symbol: "ACME", FiscalDate: "2026-03-31", EPSActual: models.Ptr(1.3)},
	}))

	rows, err := store.ListEarnings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-31", rows[0].FiscalDate)
	assert.Equal(t, "s1", rows[0].StockID)

	other, err := store.ListEarnings(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other stocks are untouched")

	require.NoError(t, store.ReplaceInstitutionalHolders(ctx, "s1", []models.InstitutionalHolderRecord{
		{Holder: "Small Fund", Shares: models.Ptr(int64(10))},
		{Holder: "Big Fund", Shares: models.Ptr(int64(1000))},
	}))
	holders, err := store.ListInstitutionalHolders(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "Big Fund", holders[0].Holder)

	require.NoError(t, store.ReplaceFinancialStatements(ctx, "s1", []models.FinancialStatementRecord{{FiscalDate: "2025-12-31", Period: "quarterly"}}))
	statements, err := store.ListFinancialStatements(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, statements, 1)

	require.NoError(t, store.DeleteSatellites(ctx, "s1", models.SatelliteEarnings))
	rows, err = store.ListEarnings(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Empty snapshot clears the table for the stock
	require.NoError(t, store.ReplaceInstitutionalHolders(ctx, "s1", nil))
	holders, err = store.ListInstitutionalHolders(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, holders)

	assert.Error(t, store.DeleteSatellites(ctx, "s1", models.SatelliteKind("bogus")))
}

func TestStockStore_AuditLog(t *testing.T) {
	db := testDB(t)
	store := NewStockStore(db, testLogger())
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, store.AppendAuditLog(ctx, &models.RefreshLogEntry{
			ID:            id,
			StockID:       "s1",
			Symbol:        "ACME",
			Tier:          models.TierDaily,
			Status:        models.StatusSuccess,
			FieldsUpdated: []string{"sector"},
			Endpoint:      "eodhd",
			LatencyMs:     int64(10 * (i + 1)),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.ListAuditLog(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e3", entries[0].ID)
	assert.Equal(t, "e2", entries[1].ID)
	assert.Equal(t, models.TierDaily, entries[0].Tier)
	assert.Equal(t, []string{"sector"}, entries[0].FieldsUpdated)
	assert.Equal(t, int64(30), entries[0].LatencyMs)

	all, err := store.ListAuditLog(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Error(t, store.AppendAuditLog(ctx, &models.RefreshLogEntry{}))
}

func TestScheduleStore_RecordAndLastRun(t *testing.T) {
	db := testDB(t)
	store := NewScheduleStore(db, testLogger())
	ctx := context.Background()

	run, err := store.LastRun(ctx, "daily")
	require.NoError(t, err)
	assert.Nil(t, run)

	at := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, &models.ScheduleRun{Name: "daily", LastRunAt: at, Total: 3, Failed: 1}))
	require.NoError(t, store.RecordRun(ctx, &models.ScheduleRun{Name: "daily", LastRunAt: at.Add(time.Hour), Total: 4}))

	run, err = store.LastRun(ctx, "daily")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, at.Add(time.Hour).Equal(run.LastRunAt))
	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 0, run.Failed)

	assert.Error(t, store.RecordRun(ctx, &models.ScheduleRun{}))
}

func TestManager_Stores(t *testing.T) {
	db := testDB(t)
	m := newManager(db, testLogger())

	assert.NotNil(t, m.StockStore())
	assert.NotNil(t, m.ScheduleStore())
}
