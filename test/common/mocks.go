// Package common provides shared test infrastructure
package common

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// ErrMockUnset is returned by MockProvider operations without a configured func
var ErrMockUnset = errors.New("mock: operation not configured")

// MockProvider implements interfaces.DataProvider with per-operation funcs and call counters.
// A nil func fails the call with ErrMockUnset.
type MockProvider struct {
	ProviderName string

	SearchSymbolFn            func(ctx context.Context, query string) ([]models.SymbolMatch, error)
	GetQuoteFn                func(ctx context.Context, symbol string) (*models.Quote, error)
	GetOverviewFn             func(ctx context.Context, symbol string) (*models.Overview, error)
	GetHistoryFn              func(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error)
	GetFundamentalsFn         func(ctx context.Context, symbol string) (*models.FinancialHealth, error)
	GetAnalystTrendFn         func(ctx context.Context, symbol string) (*models.Analyst, error)
	GetProfileFn              func(ctx context.Context, symbol string) (*models.Profile, error)
	GetESGFn                  func(ctx context.Context, symbol string) (*models.ESG, error)
	GetEarningsFn             func(ctx context.Context, symbol string) ([]models.EarningsRecord, error)
	GetFinancialStatementsFn  func(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error)
	GetInstitutionalHoldersFn func(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockProvider creates a mock provider with no operations configured
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{ProviderName: name, calls: make(map[string]int)}
}

func (m *MockProvider) count(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked
func (m *MockProvider) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Operations returns the invoked operation names, sorted
func (m *MockProvider) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, 0, len(m.calls))
	for op := range m.calls {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (m *MockProvider) Name() string { return m.ProviderName }

func (m *MockProvider) SearchSymbol(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	m.count("SearchSymbol")
	if m.SearchSymbolFn == nil {
		return nil, ErrMockUnset
	}
	return m.SearchSymbolFn(ctx, query)
}

func (m *MockProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	m.count("GetQuote")
	if m.GetQuoteFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetQuoteFn(ctx, symbol)
}

func (m *MockProvider) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	m.count("GetOverview")
	if m.GetOverviewFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetOverviewFn(ctx, symbol)
}

func (m *MockProvider) GetHistory(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
	m.count("GetHistory")
	if m.GetHistoryFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetHistoryFn(ctx, symbol, interval, from, to)
}

func (m *MockProvider) GetFundamentals(ctx context.Context, symbol string) (*models.FinancialHealth, error) {
	m.count("GetFundamentals")
	if m.GetFundamentalsFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetFundamentalsFn(ctx, symbol)
}

func (m *MockProvider) GetAnalystTrend(ctx context.Context, symbol string) (*models.Analyst, error) {
	m.count("GetAnalystTrend")
	if m.GetAnalystTrendFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetAnalystTrendFn(ctx, symbol)
}

func (m *MockProvider) GetProfile(ctx context.Context, symbol string) (*models.Profile, error) {
	m.count("GetProfile")
	if m.GetProfileFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetProfileFn(ctx, symbol)
}

func (m *MockProvider) GetESG(ctx context.Context, symbol string) (*models.ESG, error) {
	m.count("GetESG")
	if m.GetESGFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetESGFn(ctx, symbol)
}

func (m *MockProvider) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error) {
	m.count("GetEarnings")
	if m.GetEarningsFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetEarningsFn(ctx, symbol)
}

func (m *MockProvider) GetFinancialStatements(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error) {
	m.count("GetFinancialStatements")
	if m.GetFinancialStatementsFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetFinancialStatementsFn(ctx, symbol)
}

func (m *MockProvider) GetInstitutionalHolders(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error) {
	m.count("GetInstitutionalHolders")
	if m.GetInstitutionalHoldersFn == nil {
		return nil, ErrMockUnset
	}
	return m.GetInstitutionalHoldersFn(ctx, symbol)
}

// GenerateBars returns n daily bars ending today with a gentle uptrend, oldest first
func GenerateBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -n)
	price := 50.0
	for i := 0; i < n; i++ {
		// Sawtooth so both gains and losses occur
		if i%3 == 2 {
			price -= 0.4
		} else {
			price += 0.5
		}
		bars[i] = models.Bar{
			Time:   start.AddDate(0, 0, i+1),
			Open:   price - 0.2,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000000 + int64(i*1000),
		}
	}
	return bars
}

var _ interfaces.DataProvider = (*MockProvider)(nil)
