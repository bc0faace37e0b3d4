// Package interfaces defines service contracts for portwatch
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/portwatch/internal/models"
)

// DataProvider is an upstream market data source. Implementations normalise
// their responses into models types and return common.ErrNotSupported for
// operations the upstream does not offer.
type DataProvider interface {
	// Name identifies the provider in logs, metrics and audit entries
	Name() string

	// SearchSymbol finds symbols by ticker or company name
	SearchSymbol(ctx context.Context, query string) ([]models.SymbolMatch, error)

	// GetQuote retrieves a real-time quote
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetOverview retrieves identity and valuation data
	GetOverview(ctx context.Context, symbol string) (*models.Overview, error)

	// GetHistory retrieves bars between from and to, oldest first
	GetHistory(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error)

	// GetFundamentals retrieves margins, growth and leverage ratios
	GetFundamentals(ctx context.Context, symbol string) (*models.FinancialHealth, error)

	// GetAnalystTrend retrieves the latest analyst recommendation counts
	GetAnalystTrend(ctx context.Context, symbol string) (*models.Analyst, error)

	// GetProfile retrieves the company profile
	GetProfile(ctx context.Context, symbol string) (*models.Profile, error)

	// GetESG retrieves sustainability scores
	GetESG(ctx context.Context, symbol string) (*models.ESG, error)

	// GetEarnings retrieves quarterly earnings history
	GetEarnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error)

	// GetFinancialStatements retrieves summarised quarterly statements
	GetFinancialStatements(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error)

	// GetInstitutionalHolders retrieves institutional ownership
	GetInstitutionalHolders(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error)
}
