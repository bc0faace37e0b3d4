package common

import (
	"context"
	"sync"

	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// MockRefreshService implements interfaces.RefreshService with funcs and call counters.
// A nil func returns a zero result.
type MockRefreshService struct {
	RefreshTierFn func(ctx context.Context, symbol string, tier models.Tier) (*models.RefreshResult, bool)
	RefreshManyFn func(ctx context.Context, symbols []string, tier models.Tier) *models.BatchResult
	RefreshAllFn  func(ctx context.Context, tier models.Tier) (*models.BatchResult, error)
	LookupStockFn func(ctx context.Context, query string) (*models.StockRecord, error)
	GetStockFn    func(ctx context.Context, symbol string) (*models.StockRecord, error)
	RefreshLogFn  func(ctx context.Context, symbol string, limit int) ([]models.RefreshLogEntry, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockRefreshService) count(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked
func (m *MockRefreshService) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockRefreshService) RefreshTier(ctx context.Context, symbol string, tier models.Tier) (*models.RefreshResult, bool) {
	m.count("RefreshTier")
	if m.RefreshTierFn == nil {
		return &models.RefreshResult{Symbol: symbol, Tier: tier, Status: models.StatusSuccess, FieldsUpdated: []string{}}, true
	}
	return m.RefreshTierFn(ctx, symbol, tier)
}

func (m *MockRefreshService) RefreshMany(ctx context.Context, symbols []string, tier models.Tier) *models.BatchResult {
	m.count("RefreshMany")
	if m.RefreshManyFn == nil {
		return &models.BatchResult{Tier: tier, Successful: symbols, Failed: []string{}, Total: len(symbols)}
	}
	return m.RefreshManyFn(ctx, symbols, tier)
}

func (m *MockRefreshService) RefreshAll(ctx context.Context, tier models.Tier) (*models.BatchResult, error) {
	m.count("RefreshAll")
	if m.RefreshAllFn == nil {
		return &models.BatchResult{Tier: tier, Successful: []string{}, Failed: []string{}}, nil
	}
	return m.RefreshAllFn(ctx, tier)
}

func (m *MockRefreshService) LookupStock(ctx context.Context, query string) (*models.StockRecord, error) {
	m.count("LookupStock")
	if m.LookupStockFn == nil {
		return nil, ErrMockUnset
	}
	return m.LookupStockFn(ctx, query)
}

func (m *MockRefreshService) GetStock(ctx context.Context, symbol string) (*models.StockRecord, error) {
	m.count("GetStock")
	if m.GetStockFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetStockFn(ctx, symbol)
}

func (m *MockRefreshService) RefreshLog(ctx context.Context, symbol string, limit int) ([]models.RefreshLogEntry, error) {
	m.count("RefreshLog")
	if m.RefreshLogFn == nil {
		return nil, ErrMockUnset
	}
	return m.RefreshLogFn(ctx, symbol, limit)
}

var _ interfaces.RefreshService = (*MockRefreshService)(nil)
