// Package memory provides an in-process storage backend. It is the default
// backend and the one used by service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// Manager implements interfaces.StorageManager in memory
type Manager struct {
	stocks    *StockStore
	schedules *ScheduleStore
}

// NewManager creates an empty in-memory storage manager
func NewManager() *Manager {
	return &Manager{
		stocks:    NewStockStore(),
		schedules: NewScheduleStore(),
	}
}

func (m *Manager) StockStore() interfaces.StockStore       { return m.stocks }
func (m *Manager) ScheduleStore() interfaces.ScheduleStore { return m.schedules }
func (m *Manager) Close() error                            { return nil }

// StockStore keeps records, satellites and audit entries behind one mutex.
// Values are cloned on the way in and out so callers never share state.
type StockStore struct {
	mu       sync.RWMutex
	bySymbol map[string]*models.StockRecord
	byID     map[string]string // id -> symbol

	earnings   map[string][]models.EarningsRecord
	statements map[string][]models.FinancialStatementRecord
	holders    map[string][]models.InstitutionalHolderRecord
	audit      map[string][]models.RefreshLogEntry
}

// NewStockStore creates an empty stock store
func NewStockStore() *StockStore {
	return &StockStore{
		bySymbol:   make(map[string]*models.StockRecord),
		byID:       make(map[string]string),
		earnings:   make(map[string][]models.EarningsRecord),
		statements: make(map[string][]models.FinancialStatementRecord),
		holders:    make(map[string][]models.InstitutionalHolderRecord),
		audit:      make(map[string][]models.RefreshLogEntry),
	}
}

func (s *StockStore) Get(ctx context.Context, symbol string) (*models.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("stock %s: %w", symbol, common.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *StockStore) Insert(ctx context.Context, rec *models.StockRecord) (*models.StockRecord, error) {
	if rec == nil || rec.ID == "" || rec.Symbol == "" {
		return nil, fmt.Errorf("insert: record requires id and symbol")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := strings.ToUpper(rec.Symbol)
	if existing, ok := s.bySymbol[symbol]; ok {
		return existing.Clone(), nil
	}

	stored := rec.Clone()
	stored.Symbol = symbol
	s.bySymbol[symbol] = stored
	s.byID[stored.ID] = symbol
	return stored.Clone(), nil
}

func (s *StockStore) Update(ctx context.Context, id string, patch *models.StockPatch, tier models.Tier, at time.Time) (*models.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("stock id %s: %w", id, common.ErrNotFound)
	}
	rec := s.bySymbol[symbol]
	if patch != nil {
		patch.ApplyTo(rec)
	}
	rec.Stamp(tier, at)
	return rec.Clone(), nil
}

func (s *StockStore) ListSymbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.bySymbol))
	for symbol := range s.bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// DeleteSatellites drops one satellite table for a stock. The Replace methods
// use it for empty snapshots; retention jobs outside the engine may call it directly.
func (s *StockStore) DeleteSatellites(ctx context.Context, stockID string, kind models.SatelliteKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case models.SatelliteEarnings:
		delete(s.earnings, stockID)
	case models.SatelliteFinancialStatements:
		delete(s.statements, stockID)
	case models.SatelliteInstitutionalHolders:
		delete(s.holders, stockID)
	default:
		return fmt.Errorf("unknown satellite kind %q", kind)
	}
	return nil
}

// Replacements swap the whole slice under the write lock, so readers see the
// old snapshot or the new one and never an empty table in between. An empty
// snapshot is a delete.

func (s *StockStore) ReplaceEarnings(ctx context.Context, stockID string, rows []models.EarningsRecord) error {
	if len(rows) == 0 {
		return s.DeleteSatellites(ctx, stockID, models.SatelliteEarnings)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earnings[stockID] = append([]models.EarningsRecord(nil), rows...)
	return nil
}

func (s *StockStore) ReplaceFinancialStatements(ctx context.Context, stockID string, rows []models.FinancialStatementRecord) error {
	if len(rows) == 0 {
		return s.DeleteSatellites(ctx, stockID, models.SatelliteFinancialStatements)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statements[stockID] = append([]models.FinancialStatementRecord(nil), rows...)
	return nil
}

func (s *StockStore) ReplaceInstitutionalHolders(ctx context.Context, stockID string, rows []models.InstitutionalHolderRecord) error {
	if len(rows) == 0 {
		return s.DeleteSatellites(ctx, stockID, models.SatelliteInstitutionalHolders)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[stockID] = append([]models.InstitutionalHolderRecord(nil), rows...)
	return nil
}

func (s *StockStore) ListEarnings(ctx context.Context, stockID string) ([]models.EarningsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EarningsRecord{}, s.earnings[stockID]...), nil
}

func (s *StockStore) ListFinancialStatements(ctx context.Context, stockID string) ([]models.FinancialStatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FinancialStatementRecord{}, s.statements[stockID]...), nil
}

func (s *StockStore) ListInstitutionalHolders(ctx context.Context, stockID string) ([]models.InstitutionalHolderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.InstitutionalHolderRecord{}, s.holders[stockID]...), nil
}

func (s *StockStore) AppendAuditLog(ctx context.Context, entry *models.RefreshLogEntry) error {
	if entry == nil {
		return fmt.Errorf("append audit log: nil entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	e.FieldsUpdated = append([]string{}, entry.FieldsUpdated...)
	s.audit[e.StockID] = append(s.audit[e.StockID], e)
	return nil
}

// ListAuditLog returns entries newest first. Entries are appended in time
// order, so this walks the slice backwards.
func (s *StockStore) ListAuditLog(ctx context.Context, stockID string, limit int) ([]models.RefreshLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.audit[stockID]
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.RefreshLogEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		e := entries[i]
		e.FieldsUpdated = append([]string{}, e.FieldsUpdated...)
		out = append(out, e)
	}
	return out, nil
}

// ScheduleStore keeps the last run per schedule name
type ScheduleStore struct {
	mu   sync.RWMutex
	runs map[string]models.ScheduleRun
}

// NewScheduleStore creates an empty schedule store
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{runs: make(map[string]models.ScheduleRun)}
}

func (s *ScheduleStore) LastRun(ctx context.Context, name string) (*models.ScheduleRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[name]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *ScheduleStore) RecordRun(ctx context.Context, run *models.ScheduleRun) error {
	if run == nil || run.Name == "" {
		return fmt.Errorf("record run: schedule name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Name] = *run
	return nil
}

// Compile-time checks
var (
	_ interfaces.StorageManager = (*Manager)(nil)
	_ interfaces.StockStore     = (*StockStore)(nil)
	_ interfaces.ScheduleStore  = (*ScheduleStore)(nil)
)
