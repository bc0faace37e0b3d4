package models

import "time"

// EarningsRecord is one reported (or estimated) earnings period.
type EarningsRecord struct {
	StockID         string    `json:"stock_id"`
	Symbol          string    `json:"symbol"`
	FiscalDate      string    `json:"fiscal_date"`
	ReportDate      string    `json:"report_date,omitempty"`
	EPSActual       *float64  `json:"eps_actual,omitempty"`
	EPSEstimate     *float64  `json:"eps_estimate,omitempty"`
	Surprise        *float64  `json:"surprise,omitempty"`
	SurprisePercent *float64  `json:"surprise_percent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FinancialStatementRecord is a summarised quarterly statement.
type FinancialStatementRecord struct {
	StockID           string    `json:"stock_id"`
	Symbol            string    `json:"symbol"`
	FiscalDate        string    `json:"fiscal_date"`
	Period            string    `json:"period"`
	TotalRevenue      *float64  `json:"total_revenue,omitempty"`
	GrossProfit       *float64  `json:"gross_profit,omitempty"`
	OperatingIncome   *float64  `json:"operating_income,omitempty"`
	NetIncome         *float64  `json:"net_income,omitempty"`
	TotalAssets       *float64  `json:"total_assets,omitempty"`
	TotalLiabilities  *float64  `json:"total_liabilities,omitempty"`
	OperatingCashFlow *float64  `json:"operating_cash_flow,omitempty"`
	FreeCashFlow      *float64  `json:"free_cash_flow,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// InstitutionalHolderRecord is one institution's reported position.
type InstitutionalHolderRecord struct {
	StockID      string    `json:"stock_id"`
	Symbol       string    `json:"symbol"`
	Holder       string    `json:"holder"`
	Shares       *int64    `json:"shares,omitempty"`
	Value        *float64  `json:"value,omitempty"`
	PercentHeld  *float64  `json:"percent_held,omitempty"`
	ReportedDate string    `json:"reported_date,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SatelliteKind names a quarterly satellite table.
type SatelliteKind string

const (
	SatelliteEarnings             SatelliteKind = "earnings"
	SatelliteFinancialStatements  SatelliteKind = "financialStatements"
	SatelliteInstitutionalHolders SatelliteKind = "institutionalHolders"
)
