package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// refreshLogSelectFields aliases entry_id to id for struct mapping.
const refreshLogSelectFields = "entry_id as id, stock_id, symbol, tier, status, fields_updated, error, endpoint, latency_ms, created_at"

// stockRow is the stored shape of a StockRecord. The record key is the
// stock id; stock_id duplicates it as a plain string for decoding.
type stockRow struct {
	RID     *surrealmodels.RecordID `json:"id,omitempty"`
	StockID string                  `json:"stock_id"`
	models.StockRecord
}

func (r *stockRow) record() *models.StockRecord {
	rec := r.StockRecord
	rec.ID = r.StockID
	return &rec
}

// stockMerge is the MERGE payload of an update: the patch fields plus the
// timestamps that the tier advances. Nil pointers are omitted.
type stockMerge struct {
	models.StockPatch
	LastRealTimeUpdate  *time.Time `json:"lastRealTimeUpdate,omitempty"`
	LastDailyUpdate     *time.Time `json:"lastDailyUpdate,omitempty"`
	LastWeeklyUpdate    *time.Time `json:"lastWeeklyUpdate,omitempty"`
	LastQuarterlyUpdate *time.Time `json:"lastQuarterlyUpdate,omitempty"`
	LastUpdated         *time.Time `json:"lastUpdated,omitempty"`
}

// StockStore implements interfaces.StockStore using SurrealDB.
type StockStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewStockStore creates a new StockStore.
func NewStockStore(db *surrealdb.DB, logger *common.Logger) *StockStore {
	return &StockStore{db: db, logger: logger}
}

func stockRID(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableStock, id)
}

func (s *StockStore) Get(ctx context.Context, symbol string) (*models.StockRecord, error) {
	sql := "SELECT * FROM " + tableStock + " WHERE symbol = $symbol LIMIT 1"
	vars := map[string]any{"symbol": strings.ToUpper(symbol)}

	results, err := surrealdb.Query[[]stockRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s: %w", symbol, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("stock %s: %w", symbol, common.ErrNotFound)
	}
	return (*results)[0].Result[0].record(), nil
}

func (s *StockStore) Insert(ctx context.Context, rec *models.StockRecord) (*models.StockRecord, error) {
	if rec == nil || rec.ID == "" || rec.Symbol == "" {
		return nil, fmt.Errorf("insert: record requires id and symbol")
	}
	if existing, err := s.Get(ctx, rec.Symbol); err == nil {
		return existing, nil
	}

	row := stockRow{StockID: rec.ID, StockRecord: *rec}
	row.Symbol = strings.ToUpper(rec.Symbol)

	sql := "CREATE $rid CONTENT $data"
	vars := map[string]any{"rid": stockRID(rec.ID), "data": row}
	if _, err := surrealdb.Query[[]stockRow](ctx, s.db, sql, vars); err != nil {
		// Lost a race on the unique symbol index
		if existing, getErr := s.Get(ctx, rec.Symbol); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to insert stock %s: %w", rec.Symbol, err)
	}
	return s.Get(ctx, row.Symbol)
}

func (s *StockStore) Update(ctx context.Context, id string, patch *models.StockPatch, tier models.Tier, at time.Time) (*models.StockRecord, error) {
	var stamped models.StockRecord
	stamped.Stamp(tier, at)

	merge := stockMerge{
		LastRealTimeUpdate:  stamped.LastRealTimeUpdate,
		LastDailyUpdate:     stamped.LastDailyUpdate,
		LastWeeklyUpdate:    stamped.LastWeeklyUpdate,
		LastQuarterlyUpdate: stamped.LastQuarterlyUpdate,
		LastUpdated:         stamped.LastUpdated,
	}
	if patch != nil {
		merge.StockPatch = *patch
	}

	// A single MERGE statement is atomic for the record
	sql := "UPDATE $rid MERGE $data RETURN AFTER"
	vars := map[string]any{"rid": stockRID(id), "data": merge}

	results, err := surrealdb.Query[[]stockRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock %s: %w", id, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("stock id %s: %w", id, common.ErrNotFound)
	}
	return (*results)[0].Result[0].record(), nil
}

func (s *StockStore) ListSymbols(ctx context.Context) ([]string, error) {
	type symbolResult struct {
		Symbol string `json:"symbol"`
	}

	sql := "SELECT symbol FROM " + tableStock + " ORDER BY symbol ASC"
	results, err := surrealdb.Query[[]symbolResult](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}

	symbols := []string{}
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			symbols = append(symbols, r.Symbol)
		}
	}
	return symbols, nil
}

func satelliteTable(kind models.SatelliteKind) (string, error) {
	switch kind {
	case models.SatelliteEarnings:
		return tableEarnings, nil
	case models.SatelliteFinancialStatements:
		return tableFinancialStatements, nil
	case models.SatelliteInstitutionalHolders:
		return tableInstitutionalHolder, nil
	}
	return "", fmt.Errorf("unknown satellite kind %q", kind)
}

func (s *StockStore) DeleteSatellites(ctx context.Context, stockID string, kind models.SatelliteKind) error {
	table, err := satelliteTable(kind)
	if err != nil {
		return err
	}
	if _, err := surrealdb.Query[any](ctx, s.db, deleteSatellitesSQL(table), map[string]any{"stock_id": stockID}); err != nil {
		return fmt.Errorf("failed to delete %s for %s: %w", table, stockID, err)
	}
	return nil
}

func deleteSatellitesSQL(table string) string {
	return "DELETE " + table + " WHERE stock_id = $stock_id"
}

// replace swaps a stock's rows in one transaction so no reader sees the
// table empty between the delete and the insert. An empty snapshot is a delete.
func (s *StockStore) replace(ctx context.Context, kind models.SatelliteKind, stockID string, rows any, n int) error {
	if n == 0 {
		return s.DeleteSatellites(ctx, stockID, kind)
	}
	table, err := satelliteTable(kind)
	if err != nil {
		return err
	}

	sql := "BEGIN TRANSACTION; " +
		deleteSatellitesSQL(table) + "; " +
		"INSERT INTO " + table + " $rows; " +
		"COMMIT TRANSACTION;"
	vars := map[string]any{"stock_id": stockID, "rows": rows}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to replace %s for %s: %w", table, stockID, err)
	}
	return nil
}

func (s *StockStore) ReplaceEarnings(ctx context.Context, stockID string, rows []models.EarningsRecord) error {
	for i := range rows {
		rows[i].StockID = stockID
	}
	return s.replace(ctx, models.SatelliteEarnings, stockID, rows, len(rows))
}

func (s *StockStore) ReplaceFinancialStatements(ctx context.Context, stockID string, rows []models.FinancialStatementRecord) error {
	for i := range rows {
		rows[i].StockID = stockID
	}
	return s.replace(ctx, models.SatelliteFinancialStatements, stockID, rows, len(rows))
}

func (s *StockStore) ReplaceInstitutionalHolders(ctx context.Context, stockID string, rows []models.InstitutionalHolderRecord) error {
	for i := range rows {
		rows[i].StockID = stockID
	}
	return s.replace(ctx, models.SatelliteInstitutionalHolders, stockID, rows, len(rows))
}

// listSatellites selects a stock's rows with the given ordering
func listSatellites[T any](ctx context.Context, db *surrealdb.DB, table, stockID, orderBy string) ([]T, error) {
	sql := "SELECT * OMIT id FROM " + table + " WHERE stock_id = $stock_id ORDER BY " + orderBy
	results, err := surrealdb.Query[[]T](ctx, db, sql, map[string]any{"stock_id": stockID})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for %s: %w", table, stockID, err)
	}
	out := []T{}
	if results != nil && len(*results) > 0 {
		out = append(out, (*results)[0].Result...)
	}
	return out, nil
}

func (s *StockStore) ListEarnings(ctx context.Context, stockID string) ([]models.EarningsRecord, error) {
	return listSatellites[models.EarningsRecord](ctx, s.db, tableEarnings, stockID, "fiscal_date DESC")
}

func (s *StockStore) ListFinancialStatements(ctx context.Context, stockID string) ([]models.FinancialStatementRecord, error) {
	return listSatellites[models.FinancialStatementRecord](ctx, s.db, tableFinancialStatements, stockID, "fiscal_date DESC")
}

func (s *StockStore) ListInstitutionalHolders(ctx context.Context, stockID string) ([]models.InstitutionalHolderRecord, error) {
	return listSatellites[models.InstitutionalHolderRecord](ctx, s.db, tableInstitutionalHolder, stockID, "shares DESC")
}

func (s *StockStore) AppendAuditLog(ctx context.Context, entry *models.RefreshLogEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("append audit log: entry requires an id")
	}

	sql := `CREATE $rid SET
		entry_id = $entry_id, stock_id = $stock_id, symbol = $symbol, tier = $tier,
		status = $status, fields_updated = $fields_updated, error = $error,
		endpoint = $endpoint, latency_ms = $latency_ms, created_at = $created_at`
	fields := entry.FieldsUpdated
	if fields == nil {
		fields = []string{}
	}
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID(tableRefreshLog, entry.ID),
		"entry_id":       entry.ID,
		"stock_id":       entry.StockID,
		"symbol":         entry.Symbol,
		"tier":           string(entry.Tier),
		"status":         string(entry.Status),
		"fields_updated": fields,
		"error":          entry.Error,
		"endpoint":       entry.Endpoint,
		"latency_ms":     entry.LatencyMs,
		"created_at":     entry.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append refresh log: %w", err)
	}
	return nil
}

func (s *StockStore) ListAuditLog(ctx context.Context, stockID string, limit int) ([]models.RefreshLogEntry, error) {
	sql := "SELECT " + refreshLogSelectFields + " FROM " + tableRefreshLog + " WHERE stock_id = $stock_id ORDER BY created_at DESC"
	vars := map[string]any{"stock_id": stockID}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]models.RefreshLogEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh log: %w", err)
	}
	out := []models.RefreshLogEntry{}
	if results != nil && len(*results) > 0 {
		out = append(out, (*results)[0].Result...)
	}
	return out, nil
}

// Compile-time check
var _ interfaces.StockStore = (*StockStore)(nil)
