// Package surrealdb implements the storage interfaces on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
)

// Table names
const (
	tableStock               = "stock"
	tableEarnings            = "earnings"
	tableFinancialStatements = "financial_statement"
	tableInstitutionalHolder = "institutional_holder"
	tableRefreshLog          = "refresh_log"
	tableScheduleRun         = "schedule_run"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	stockStore    *StockStore
	scheduleStore *ScheduleStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	// Connect to SurrealDB
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		return nil, err
	}

	m := newManager(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:            db,
		logger:        logger,
		stockStore:    NewStockStore(db, logger),
		scheduleStore: NewScheduleStore(db, logger),
	}
}

// defineSchema ensures tables and indexes exist (SurrealDB v3 errors on querying non-existent tables)
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	statements := []string{
		"DEFINE TABLE IF NOT EXISTS " + tableStock + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS stock_symbol ON " + tableStock + " FIELDS symbol UNIQUE",
		"DEFINE TABLE IF NOT EXISTS " + tableEarnings + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS earnings_stock ON " + tableEarnings + " FIELDS stock_id",
		"DEFINE TABLE IF NOT EXISTS " + tableFinancialStatements + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS financial_statement_stock ON " + tableFinancialStatements + " FIELDS stock_id",
		"DEFINE TABLE IF NOT EXISTS " + tableInstitutionalHolder + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS institutional_holder_stock ON " + tableInstitutionalHolder + " FIELDS stock_id",
		"DEFINE TABLE IF NOT EXISTS " + tableRefreshLog + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS refresh_log_stock ON " + tableRefreshLog + " FIELDS stock_id, created_at",
		"DEFINE TABLE IF NOT EXISTS " + tableScheduleRun + " SCHEMALESS",
	}
	for _, sql := range statements {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define schema (%s): %w", sql, err)
		}
	}
	return nil
}

func (m *Manager) StockStore() interfaces.StockStore {
	return m.stockStore
}

func (m *Manager) ScheduleStore() interfaces.ScheduleStore {
	return m.scheduleStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
