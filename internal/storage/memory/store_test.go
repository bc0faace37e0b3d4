package memory

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
	ctx := context.Background()
	store := NewStockStore()

	_, err := store.Get(ctx, "ACME")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rec, err := store.Insert(ctx, &models.StockRecord{ID: "s1", Symbol: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "ACME", rec.Symbol)

	again, err := store.Insert(ctx, &models.StockRecord{ID: "s2", Symbol: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "s1", again.ID, "existing record is returned")

	at := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	patch := &models.StockPatch{}
	patch.Sector = models.Ptr("Industrials")
	updated, err := store.Update(ctx, "s1", patch, models.TierDaily, at)
	require.NoError(t, err)
	assert.Equal(t, "Industrials", *updated.Sector)
	assert.Equal(t, at, *updated.LastDailyUpdate)
	assert.Equal(t, at, *updated.LastUpdated)
	assert.Nil(t, updated.LastWeeklyUpdate)

	// Returned copies are detached from stored state
	*updated.Sector = "Changed"
	got, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Industrials", *got.Sector)

	_, err = store.Update(ctx, "missing", patch, models.TierDaily, at)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStockStore_ListSymbolsSorted(t *testing.T) {
	ctx := context.Background()
	store := NewStockStore()
	for i, sym := range []string{"MSFT", "AAPL", "ACME"} {
		_, err := store.Insert(ctx, &models.StockRecord{ID: string(rune('a' + i)), Symbol: sym})
		require.NoError(t, err)
	}
	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "ACME", "MSFT"}, symbols)
}

func TestStockStore_SatelliteReplace(t *testing.T) {
	ctx := context.Background()
	store := NewStockStore()

	require.NoError(t, store.ReplaceEarnings(ctx, "s1", []models.EarningsRecord{{FiscalDate: "2025-09-30"}, {FiscalDate: "2025-12-31"}}))
	require.NoError(t, store.ReplaceEarnings(ctx, "s1", []models.EarningsRecord{{FiscalDate: "2026-03-31"}}))

	rows, err := store.ListEarnings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-31", rows[0].FiscalDate)

	require.NoError(t, store.DeleteSatellites(ctx, "s1", models.SatelliteEarnings))
	rows, err = store.ListEarnings(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Error(t, store.DeleteSatellites(ctx, "s1", models.SatelliteKind("bogus")))
}

func TestStockStore_EmptySnapshotClearsKind(t *testing.T) {
	ctx := context.Background()
	store := NewStockStore()

	require.NoError(t, store.ReplaceInstitutionalHolders(ctx, "s1", []models.InstitutionalHolderRecord{{Holder: "BlackRock"}}))
	require.NoError(t, store.ReplaceEarnings(ctx, "s1", []models.EarningsRecord{{FiscalDate: "2025-12-31"}}))
	require.NoError(t, store.ReplaceInstitutionalHolders(ctx, "s1", nil))

	holders, err := store.ListInstitutionalHolders(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, holders)

	earnings, err := store.ListEarnings(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, earnings, 1, "other kinds are untouched")
}

func TestStockStore_AuditLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStockStore()
	for i, status := range []models.RefreshStatus{models.StatusSuccess, models.StatusPartial, models.StatusFailed} {
		require.NoError(t, store.AppendAuditLog(ctx, &models.RefreshLogEntry{
			ID:      string(rune('a' + i)),
			StockID: "s1",
			Status:  status,
		}))
	}

	all, err := store.ListAuditLog(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.StatusFailed, all[0].Status)
	assert.Equal(t, models.StatusSuccess, all[2].Status)

	two, err := store.ListAuditLog(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()

	run, err := store.LastRun(ctx, "daily")
	require.NoError(t, err)
	assert.Nil(t, run)

	at := time.Now().UTC()
	require.NoError(t, store.RecordRun(ctx, &models.ScheduleRun{Name: "daily", LastRunAt: at, Total: 3, Failed: 1}))
	run, err = store.LastRun(ctx, "daily")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.Total)
	assert.True(t, at.Equal(run.LastRunAt))

	assert.Error(t, store.RecordRun(ctx, &models.ScheduleRun{}))
}
