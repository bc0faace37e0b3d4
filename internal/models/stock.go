// Package models defines data structures for portwatch
package models

import (
	"sort"
	"time"
)

// StockRecord is the persisted, cached view of one tracked symbol.
// JSON names double as the field names reported in refresh audit entries.
type StockRecord struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`

	Identity
	RealTime
	Valuation
	FinancialHealth
	Technicals
	Analyst
	ESG
	Profile

	LastRealTimeUpdate  *time.Time `json:"lastRealTimeUpdate,omitempty"`
	LastDailyUpdate     *time.Time `json:"lastDailyUpdate,omitempty"`
	LastWeeklyUpdate    *time.Time `json:"lastWeeklyUpdate,omitempty"`
	LastQuarterlyUpdate *time.Time `json:"lastQuarterlyUpdate,omitempty"`
	LastUpdated         *time.Time `json:"lastUpdated,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// Identity holds descriptive company fields
type Identity struct {
	LongName  *string `json:"longName,omitempty"`
	ShortName *string `json:"shortName,omitempty"`
	Sector    *string `json:"sector,omitempty"`
	Industry  *string `json:"industry,omitempty"`
	Exchange  *string `json:"exchange,omitempty"`
	Currency  *string `json:"currency,omitempty"`
}

// RealTime holds intraday price fields
type RealTime struct {
	CurrentPrice     *float64 `json:"currentPrice,omitempty"`
	Bid              *float64 `json:"bid,omitempty"`
	Ask              *float64 `json:"ask,omitempty"`
	PreviousClose    *float64 `json:"previousClose,omitempty"`
	DayChange        *float64 `json:"dayChange,omitempty"`
	DayChangePercent *float64 `json:"dayChangePercent,omitempty"`
	Volume           *int64   `json:"volume,omitempty"`
}

// Valuation holds size and valuation multiples
type Valuation struct {
	MarketCap         *float64 `json:"marketCap,omitempty"`
	SharesOutstanding *int64   `json:"sharesOutstanding,omitempty"`
	FloatShares       *int64   `json:"floatShares,omitempty"`
	PERatio           *float64 `json:"peRatio,omitempty"`
	ForwardPE         *float64 `json:"forwardPE,omitempty"`
	PBRatio           *float64 `json:"pbRatio,omitempty"`
	PSRatio           *float64 `json:"psRatio,omitempty"`
	EVToEBITDA        *float64 `json:"evToEbitda,omitempty"`
	PEGRatio          *float64 `json:"pegRatio,omitempty"`
	BookValue         *float64 `json:"bookValue,omitempty"`
	DividendRate      *float64 `json:"dividendRate,omitempty"`
	DividendYield     *float64 `json:"dividendYield,omitempty"`
}

// FinancialHealth holds margins, growth, leverage and return ratios
type FinancialHealth struct {
	ProfitMargin    *float64 `json:"profitMargin,omitempty"`
	OperatingMargin *float64 `json:"operatingMargin,omitempty"`
	GrossMargin     *float64 `json:"grossMargin,omitempty"`
	RevenueGrowth   *float64 `json:"revenueGrowth,omitempty"`
	EarningsGrowth  *float64 `json:"earningsGrowth,omitempty"`
	DebtToEquity    *float64 `json:"debtToEquity,omitempty"`
	CurrentRatio    *float64 `json:"currentRatio,omitempty"`
	QuickRatio      *float64 `json:"quickRatio,omitempty"`
	ReturnOnEquity  *float64 `json:"returnOnEquity,omitempty"`
	ReturnOnAssets  *float64 `json:"returnOnAssets,omitempty"`
	Beta            *float64 `json:"beta,omitempty"`
}

// Technicals holds indicator values derived from price history
type Technicals struct {
	SMA20            *float64 `json:"sma20,omitempty"`
	SMA50            *float64 `json:"sma50,omitempty"`
	RSI              *float64 `json:"rsi,omitempty"`
	MACD             *float64 `json:"macd,omitempty"`
	MACDSignal       *float64 `json:"macdSignal,omitempty"`
	MACDHistogram    *float64 `json:"macdHistogram,omitempty"`
	ATR              *float64 `json:"atr,omitempty"`
	Support1         *float64 `json:"support1,omitempty"`
	Support2         *float64 `json:"support2,omitempty"`
	Resistance1      *float64 `json:"resistance1,omitempty"`
	Resistance2      *float64 `json:"resistance2,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow,omitempty"`
}

// Analyst holds consensus recommendation data
type Analyst struct {
	StrongBuy      *int     `json:"strongBuy,omitempty"`
	Buy            *int     `json:"buy,omitempty"`
	Hold           *int     `json:"hold,omitempty"`
	Sell           *int     `json:"sell,omitempty"`
	StrongSell     *int     `json:"strongSell,omitempty"`
	Recommendation *string  `json:"recommendation,omitempty"`
	TargetPrice    *float64 `json:"targetPrice,omitempty"`
}

// ESG holds sustainability scores
type ESG struct {
	TotalESG         *float64 `json:"totalEsg,omitempty"`
	EnvironmentScore *float64 `json:"environmentScore,omitempty"`
	SocialScore      *float64 `json:"socialScore,omitempty"`
	GovernanceScore  *float64 `json:"governanceScore,omitempty"`
}

// Profile holds slow-moving company profile data
type Profile struct {
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
	Country     *string `json:"country,omitempty"`
	Employees   *int64  `json:"employees,omitempty"`
}

// StockPatch is a partial update. Only non-nil fields are written.
type StockPatch struct {
	Identity
	RealTime
	Valuation
	FinancialHealth
	Technicals
	Analyst
	ESG
	Profile
}

// Fields returns the sorted names of the fields set on the patch.
func (p *StockPatch) Fields() []string {
	var scratch StockRecord
	return p.ApplyTo(&scratch)
}

// IsEmpty reports whether the patch carries no fields.
func (p *StockPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// ApplyTo copies every non-nil field of the patch onto rec and returns the
// sorted names of the fields written. Nil fields never clear existing values.
func (p *StockPatch) ApplyTo(rec *StockRecord) []string {
	var touched []string

	set(&rec.LongName, p.LongName, "longName", &touched)
	set(&rec.ShortName, p.ShortName, "shortName", &touched)
	set(&rec.Sector, p.Sector, "sector", &touched)
	set(&rec.Industry, p.Industry, "industry", &touched)
	set(&rec.Exchange, p.Exchange, "exchange", &touched)
	set(&rec.Currency, p.Currency, "currency", &touched)

	set(&rec.CurrentPrice, p.CurrentPrice, "currentPrice", &touched)
	set(&rec.Bid, p.Bid, "bid", &touched)
	set(&rec.Ask, p.Ask, "ask", &touched)
	set(&rec.PreviousClose, p.PreviousClose, "previousClose", &touched)
	set(&rec.DayChange, p.DayChange, "dayChange", &touched)
	set(&rec.DayChangePercent, p.DayChangePercent, "dayChangePercent", &touched)
	set(&rec.Volume, p.Volume, "volume", &touched)

	set(&rec.MarketCap, p.MarketCap, "marketCap", &touched)
	set(&rec.SharesOutstanding, p.SharesOutstanding, "sharesOutstanding", &touched)
	set(&rec.FloatShares, p.FloatShares, "floatShares", &touched)
	set(&rec.PERatio, p.PERatio, "peRatio", &touched)
	set(&rec.ForwardPE, p.ForwardPE, "forwardPE", &touched)
	set(&rec.PBRatio, p.PBRatio, "pbRatio", &touched)
	set(&rec.PSRatio, p.PSRatio, "psRatio", &touched)
	set(&rec.EVToEBITDA, p.EVToEBITDA, "evToEbitda", &touched)
	set(&rec.PEGRatio, p.PEGRatio, "pegRatio", &touched)
	set(&rec.BookValue, p.BookValue, "bookValue", &touched)
	set(&rec.DividendRate, p.DividendRate, "dividendRate", &touched)
	set(&rec.DividendYield, p.DividendYield, "dividendYield", &touched)

	set(&rec.ProfitMargin, p.ProfitMargin, "profitMargin", &touched)
	set(&rec.OperatingMargin, p.OperatingMargin, "operatingMargin", &touched)
	set(&rec.GrossMargin, p.GrossMargin, "grossMargin", &touched)
	set(&rec.RevenueGrowth, p.RevenueGrowth, "revenueGrowth", &touched)
	set(&rec.EarningsGrowth, p.EarningsGrowth, "earningsGrowth", &touched)
	set(&rec.DebtToEquity, p.DebtToEquity, "debtToEquity", &touched)
	set(&rec.CurrentRatio, p.CurrentRatio, "currentRatio", &touched)
	set(&rec.QuickRatio, p.QuickRatio, "quickRatio", &touched)
	set(&rec.ReturnOnEquity, p.ReturnOnEquity, "returnOnEquity", &touched)
	set(&rec.ReturnOnAssets, p.ReturnOnAssets, "returnOnAssets", &touched)
	set(&rec.Beta, p.Beta, "beta", &touched)

	set(&rec.SMA20, p.SMA20, "sma20", &touched)
	set(&rec.SMA50, p.SMA50, "sma50", &touched)
	set(&rec.RSI, p.RSI, "rsi", &touched)
	set(&rec.MACD, p.MACD, "macd", &touched)
	set(&rec.MACDSignal, p.MACDSignal, "macdSignal", &touched)
	set(&rec.MACDHistogram, p.MACDHistogram, "macdHistogram", &touched)
	set(&rec.ATR, p.ATR, "atr", &touched)
	set(&rec.Support1, p.Support1, "support1", &touched)
	set(&rec.Support2, p.Support2, "support2", &touched)
	set(&rec.Resistance1, p.Resistance1, "resistance1", &touched)
	set(&rec.Resistance2, p.Resistance2, "resistance2", &touched)
	set(&rec.FiftyTwoWeekHigh, p.FiftyTwoWeekHigh, "fiftyTwoWeekHigh", &touched)
	set(&rec.FiftyTwoWeekLow, p.FiftyTwoWeekLow, "fiftyTwoWeekLow", &touched)

	set(&rec.StrongBuy, p.StrongBuy, "strongBuy", &touched)
	set(&rec.Buy, p.Buy, "buy", &touched)
	set(&rec.Hold, p.Hold, "hold", &touched)
	set(&rec.Sell, p.Sell, "sell", &touched)
	set(&rec.StrongSell, p.StrongSell, "strongSell", &touched)
	set(&rec.Recommendation, p.Recommendation, "recommendation", &touched)
	set(&rec.TargetPrice, p.TargetPrice, "targetPrice", &touched)

	set(&rec.TotalESG, p.TotalESG, "totalEsg", &touched)
	set(&rec.EnvironmentScore, p.EnvironmentScore, "environmentScore", &touched)
	set(&rec.SocialScore, p.SocialScore, "socialScore", &touched)
	set(&rec.GovernanceScore, p.GovernanceScore, "governanceScore", &touched)

	set(&rec.Description, p.Description, "description", &touched)
	set(&rec.Website, p.Website, "website", &touched)
	set(&rec.Country, p.Country, "country", &touched)
	set(&rec.Employees, p.Employees, "employees", &touched)

	sort.Strings(touched)
	return touched
}

func set[T any](dst **T, src *T, name string, touched *[]string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
	*touched = append(*touched, name)
}

// Stamp sets the tier timestamp and the rollup timestamp on rec.
func (rec *StockRecord) Stamp(tier Tier, at time.Time) {
	ts := at
	switch tier {
	case TierRealTime:
		rec.LastRealTimeUpdate = &ts
	case TierDaily:
		rec.LastDailyUpdate = &ts
	case TierWeekly:
		rec.LastWeeklyUpdate = &ts
	case TierQuarterly:
		rec.LastQuarterlyUpdate = &ts
	}
	rec.LastUpdated = &ts
}

// LastRefresh returns the timestamp of the last refresh of tier, or nil.
func (rec *StockRecord) LastRefresh(tier Tier) *time.Time {
	switch tier {
	case TierRealTime:
		return rec.LastRealTimeUpdate
	case TierDaily:
		return rec.LastDailyUpdate
	case TierWeekly:
		return rec.LastWeeklyUpdate
	case TierQuarterly:
		return rec.LastQuarterlyUpdate
	}
	return nil
}

// Clone returns a deep copy of the record.
func (rec *StockRecord) Clone() *StockRecord {
	out := &StockRecord{ID: rec.ID, Symbol: rec.Symbol, CreatedAt: rec.CreatedAt}
	all := StockPatch{
		Identity:        rec.Identity,
		RealTime:        rec.RealTime,
		Valuation:       rec.Valuation,
		FinancialHealth: rec.FinancialHealth,
		Technicals:      rec.Technicals,
		Analyst:         rec.Analyst,
		ESG:             rec.ESG,
		Profile:         rec.Profile,
	}
	all.ApplyTo(out)
	out.LastRealTimeUpdate = cloneTime(rec.LastRealTimeUpdate)
	out.LastDailyUpdate = cloneTime(rec.LastDailyUpdate)
	out.LastWeeklyUpdate = cloneTime(rec.LastWeeklyUpdate)
	out.LastQuarterlyUpdate = cloneTime(rec.LastQuarterlyUpdate)
	out.LastUpdated = cloneTime(rec.LastUpdated)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Ptr returns a pointer to v. Used when building patches from provider data.
func Ptr[T any](v T) *T {
	return &v
}
