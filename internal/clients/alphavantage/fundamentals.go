package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

// overviewResponse is the OVERVIEW payload; every value is a string
type overviewResponse struct {
	Symbol                     string `json:"Symbol"`
	Name                       string `json:"Name"`
	Description                string `json:"Description"`
	Exchange                   string `json:"Exchange"`
	Currency                   string `json:"Currency"`
	Country                    string `json:"Country"`
	Sector                     string `json:"Sector"`
	Industry                   string `json:"Industry"`
	OfficialSite               string `json:"OfficialSite"`
	MarketCapitalization       string `json:"MarketCapitalization"`
	PERatio                    string `json:"PERatio"`
	PEGRatio                   string `json:"PEGRatio"`
	BookValue                  string `json:"BookValue"`
	DividendPerShare           string `json:"DividendPerShare"`
	DividendYield              string `json:"DividendYield"`
	ProfitMargin               string `json:"ProfitMargin"`
	OperatingMarginTTM         string `json:"OperatingMarginTTM"`
	ReturnOnAssetsTTM          string `json:"ReturnOnAssetsTTM"`
	ReturnOnEquityTTM          string `json:"ReturnOnEquityTTM"`
	RevenueTTM                 string `json:"RevenueTTM"`
	GrossProfitTTM             string `json:"GrossProfitTTM"`
	QuarterlyEarningsGrowthYOY string `json:"QuarterlyEarningsGrowthYOY"`
	QuarterlyRevenueGrowthYOY  string `json:"QuarterlyRevenueGrowthYOY"`
	AnalystTargetPrice         string `json:"AnalystTargetPrice"`
	AnalystRatingStrongBuy     string `json:"AnalystRatingStrongBuy"`
	AnalystRatingBuy           string `json:"AnalystRatingBuy"`
	AnalystRatingHold          string `json:"AnalystRatingHold"`
	AnalystRatingSell          string `json:"AnalystRatingSell"`
	AnalystRatingStrongSell    string `json:"AnalystRatingStrongSell"`
	ForwardPE                  string `json:"ForwardPE"`
	PriceToSalesRatioTTM       string `json:"PriceToSalesRatioTTM"`
	PriceToBookRatio           string `json:"PriceToBookRatio"`
	EVToEBITDA                 string `json:"EVToEBITDA"`
	Beta                       string `json:"Beta"`
	FiftyTwoWeekHigh           string `json:"52WeekHigh"`
	FiftyTwoWeekLow            string `json:"52WeekLow"`
	SharesOutstanding          string `json:"SharesOutstanding"`
	SharesFloat                string `json:"SharesFloat"`
}

func (c *Client) overview(ctx context.Context, symbol string) (*overviewResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp overviewResponse
	if err := c.query(ctx, "OVERVIEW", params, &resp); err != nil {
		return nil, err
	}
	// Unknown symbols come back as {}
	if resp.Symbol == "" {
		return nil, fmt.Errorf("alphavantage: no overview for %s: %w", symbol, common.ErrNotFound)
	}
	return &resp, nil
}

// GetOverview maps OVERVIEW onto identity and valuation fields
func (c *Client) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	r, err := c.overview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	o := &models.Overview{}
	o.LongName = str(r.Name)
	o.Sector = str(titleCase(r.Sector))
	o.Industry = str(titleCase(r.Industry))
	o.Exchange = str(r.Exchange)
	o.Currency = str(r.Currency)

	o.MarketCap = num(r.MarketCapitalization)
	o.SharesOutstanding = integer(r.SharesOutstanding)
	o.FloatShares = integer(r.SharesFloat)
	o.PERatio = num(r.PERatio)
	o.ForwardPE = num(r.ForwardPE)
	o.PBRatio = num(r.PriceToBookRatio)
	o.PSRatio = num(r.PriceToSalesRatioTTM)
	o.EVToEBITDA = num(r.EVToEBITDA)
	o.PEGRatio = num(r.PEGRatio)
	o.BookValue = num(r.BookValue)
	o.DividendRate = num(r.DividendPerShare)
	o.DividendYield = num(r.DividendYield)

	o.FiftyTwoWeekHigh = num(r.FiftyTwoWeekHigh)
	o.FiftyTwoWeekLow = num(r.FiftyTwoWeekLow)
	return o, nil
}

// GetFundamentals maps the ratio fields of OVERVIEW. Liquidity ratios are not offered.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.FinancialHealth, error) {
	r, err := c.overview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	h := &models.FinancialHealth{
		ProfitMargin:    num(r.ProfitMargin),
		OperatingMargin: num(r.OperatingMarginTTM),
		RevenueGrowth:   num(r.QuarterlyRevenueGrowthYOY),
		EarningsGrowth:  num(r.QuarterlyEarningsGrowthYOY),
		ReturnOnEquity:  num(r.ReturnOnEquityTTM),
		ReturnOnAssets:  num(r.ReturnOnAssetsTTM),
		Beta:            num(r.Beta),
	}
	if rev, gp := num(r.RevenueTTM), num(r.GrossProfitTTM); rev != nil && gp != nil && *rev != 0 {
		h.GrossMargin = models.Ptr(*gp / *rev)
	}
	return h, nil
}

// GetAnalystTrend maps the analyst rating counts of OVERVIEW
func (c *Client) GetAnalystTrend(ctx context.Context, symbol string) (*models.Analyst, error) {
	r, err := c.overview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	a := &models.Analyst{
		StrongBuy:   count(r.AnalystRatingStrongBuy),
		Buy:         count(r.AnalystRatingBuy),
		Hold:        count(r.AnalystRatingHold),
		Sell:        count(r.AnalystRatingSell),
		StrongSell:  count(r.AnalystRatingStrongSell),
		TargetPrice: num(r.AnalystTargetPrice),
	}
	if rec := consensus(a); rec != "" {
		a.Recommendation = &rec
	}
	return a, nil
}

// consensus picks the bucket with the most analysts; ties go to the more cautious bucket.
func consensus(a *models.Analyst) string {
	buckets := []struct {
		name string
		n    *int
	}{
		{"strong_sell", a.StrongSell},
		{"sell", a.Sell},
		{"hold", a.Hold},
		{"buy", a.Buy},
		{"strong_buy", a.StrongBuy},
	}
	best, bestN := "", 0
	for _, b := range buckets {
		if b.n != nil && *b.n > bestN {
			best, bestN = b.name, *b.n
		}
	}
	return best
}

// GetProfile maps the descriptive fields of OVERVIEW
func (c *Client) GetProfile(ctx context.Context, symbol string) (*models.Profile, error) {
	r, err := c.overview(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &models.Profile{
		Description: str(r.Description),
		Website:     str(r.OfficialSite),
		Country:     str(r.Country),
	}, nil
}

// GetESG is not offered by Alpha Vantage
func (c *Client) GetESG(ctx context.Context, symbol string) (*models.ESG, error) {
	return nil, fmt.Errorf("alphavantage: esg: %w", common.ErrNotSupported)
}

// GetInstitutionalHolders is not offered by Alpha Vantage
func (c *Client) GetInstitutionalHolders(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error) {
	return nil, fmt.Errorf("alphavantage: institutional holders: %w", common.ErrNotSupported)
}

type seriesBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// GetHistory runs TIME_SERIES_INTRADAY or TIME_SERIES_DAILY and trims to [from, to]
func (c *Client) GetHistory(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var function, seriesKey, layout string
	switch interval {
	case models.Interval1Min:
		function, seriesKey, layout = "TIME_SERIES_INTRADAY", "Time Series (1min)", "2006-01-02 15:04:05"
		params.Set("interval", "1min")
	case models.Interval5Min:
		function, seriesKey, layout = "TIME_SERIES_INTRADAY", "Time Series (5min)", "2006-01-02 15:04:05"
		params.Set("interval", "5min")
	case models.IntervalDaily:
		function, seriesKey, layout = "TIME_SERIES_DAILY", "Time Series (Daily)", "2006-01-02"
	default:
		return nil, fmt.Errorf("alphavantage: interval %s: %w", interval, common.ErrNotSupported)
	}
	params.Set("outputsize", "compact")

	var resp map[string]json.RawMessage
	if err := c.query(ctx, function, params, &resp); err != nil {
		return nil, err
	}

	var series map[string]seriesBar
	if raw, ok := resp[seriesKey]; ok {
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", seriesKey, err)
		}
	}
	bars := make([]models.Bar, 0, len(series))
	for stamp, b := range series {
		t, err := time.ParseInLocation(layout, stamp, c.location)
		if err != nil {
			continue
		}
		if (!from.IsZero() && t.Before(from)) || (!to.IsZero() && t.After(to)) {
			continue
		}
		closePrice := num(b.Close)
		if closePrice == nil {
			continue
		}
		bar := models.Bar{Time: t, Close: *closePrice}
		if v := num(b.Open); v != nil {
			bar.Open = *v
		}
		if v := num(b.High); v != nil {
			bar.High = *v
		}
		if v := num(b.Low); v != nil {
			bar.Low = *v
		}
		if v := integer(b.Volume); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// GetEarnings runs EARNINGS and returns the quarterly rows, newest first
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Quarterly []struct {
			FiscalDateEnding   string `json:"fiscalDateEnding"`
			ReportedDate       string `json:"reportedDate"`
			ReportedEPS        string `json:"reportedEPS"`
			EstimatedEPS       string `json:"estimatedEPS"`
			Surprise           string `json:"surprise"`
			SurprisePercentage string `json:"surprisePercentage"`
		} `json:"quarterlyEarnings"`
	}
	if err := c.query(ctx, "EARNINGS", params, &resp); err != nil {
		return nil, err
	}

	rows := make([]models.EarningsRecord, 0, len(resp.Quarterly))
	for _, q := range resp.Quarterly {
		rows = append(rows, models.EarningsRecord{
			Symbol:          strings.ToUpper(symbol),
			FiscalDate:      q.FiscalDateEnding,
			ReportDate:      q.ReportedDate,
			EPSActual:       num(q.ReportedEPS),
			EPSEstimate:     num(q.EstimatedEPS),
			Surprise:        num(q.Surprise),
			SurprisePercent: num(q.SurprisePercentage),
		})
	}
	return rows, nil
}

type quarterlyReports struct {
	Quarterly []map[string]string `json:"quarterlyReports"`
}

// GetFinancialStatements joins INCOME_STATEMENT, BALANCE_SHEET and CASH_FLOW by
// fiscal date. Only the income statement is required.
func (c *Client) GetFinancialStatements(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error) {
	params := func() url.Values {
		p := url.Values{}
		p.Set("symbol", symbol)
		return p
	}

	var income quarterlyReports
	if err := c.query(ctx, "INCOME_STATEMENT", params(), &income); err != nil {
		return nil, err
	}

	byDate := func(function string) map[string]map[string]string {
		var r quarterlyReports
		if err := c.query(ctx, function, params(), &r); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Str("function", function).Msg("Statement unavailable")
			return nil
		}
		out := make(map[string]map[string]string, len(r.Quarterly))
		for _, row := range r.Quarterly {
			out[row["fiscalDateEnding"]] = row
		}
		return out
	}
	balance := byDate("BALANCE_SHEET")
	cash := byDate("CASH_FLOW")

	rows := make([]models.FinancialStatementRecord, 0, len(income.Quarterly))
	for _, inc := range income.Quarterly {
		date := inc["fiscalDateEnding"]
		row := models.FinancialStatementRecord{
			Symbol:          strings.ToUpper(symbol),
			FiscalDate:      date,
			Period:          "quarterly",
			TotalRevenue:    num(inc["totalRevenue"]),
			GrossProfit:     num(inc["grossProfit"]),
			OperatingIncome: num(inc["operatingIncome"]),
			NetIncome:       num(inc["netIncome"]),
		}
		if bs, ok := balance[date]; ok {
			row.TotalAssets = num(bs["totalAssets"])
			row.TotalLiabilities = num(bs["totalLiabilities"])
		}
		if cf, ok := cash[date]; ok {
			row.OperatingCashFlow = num(cf["operatingCashflow"])
			if ocf, capex := num(cf["operatingCashflow"]), num(cf["capitalExpenditures"]); ocf != nil && capex != nil {
				row.FreeCashFlow = models.Ptr(*ocf - *capex)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// titleCase turns Alpha Vantage's upper-case sector names ("TECHNOLOGY") into "Technology"
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
