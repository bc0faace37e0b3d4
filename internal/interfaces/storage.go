package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/portwatch/internal/models"
)

// StorageManager coordinates the storage backends
type StorageManager interface {
	StockStore() StockStore
	ScheduleStore() ScheduleStore

	// Close releases backend connections
	Close() error
}

// StockStore persists stock records, their quarterly satellites and the
// refresh audit log. Records are keyed by upper-case symbol.
type StockStore interface {
	// Get returns the record for symbol or an error wrapping common.ErrNotFound
	Get(ctx context.Context, symbol string) (*models.StockRecord, error)

	// Insert creates a record. Inserting an existing symbol returns the stored record.
	Insert(ctx context.Context, rec *models.StockRecord) (*models.StockRecord, error)

	// Update applies patch, sets the tier timestamp and lastUpdated to at, atomically
	Update(ctx context.Context, id string, patch *models.StockPatch, tier models.Tier, at time.Time) (*models.StockRecord, error)

	// ListSymbols returns every tracked symbol in ascending order
	ListSymbols(ctx context.Context) ([]string, error)

	// DeleteSatellites removes all rows of one satellite kind for a stock.
	// Replace* with no rows is equivalent; it also serves retention outside the engine.
	DeleteSatellites(ctx context.Context, stockID string, kind models.SatelliteKind) error

	// Replace* swap a stock's satellite rows for a new snapshot in one transaction.
	// An empty snapshot deletes the kind.
	ReplaceEarnings(ctx context.Context, stockID string, rows []models.EarningsRecord) error
	ReplaceFinancialStatements(ctx context.Context, stockID string, rows []models.FinancialStatementRecord) error
	ReplaceInstitutionalHolders(ctx context.Context, stockID string, rows []models.InstitutionalHolderRecord) error

	ListEarnings(ctx context.Context, stockID string) ([]models.EarningsRecord, error)
	ListFinancialStatements(ctx context.Context, stockID string) ([]models.FinancialStatementRecord, error)
	ListInstitutionalHolders(ctx context.Context, stockID string) ([]models.InstitutionalHolderRecord, error)

	// AppendAuditLog stores an immutable refresh log entry
	AppendAuditLog(ctx context.Context, entry *models.RefreshLogEntry) error

	// ListAuditLog returns the newest entries for a stock first, up to limit (0 = all)
	ListAuditLog(ctx context.Context, stockID string, limit int) ([]models.RefreshLogEntry, error)
}

// ScheduleStore persists the last run of each named schedule
type ScheduleStore interface {
	// LastRun returns the last recorded run, or nil when the schedule never ran
	LastRun(ctx context.Context, name string) (*models.ScheduleRun, error)

	RecordRun(ctx context.Context, run *models.ScheduleRun) error
}
