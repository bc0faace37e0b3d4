package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/portwatch/internal/models"
)

// flexFloat64 handles JSON values that may be a number, a numeric string,
// null or a placeholder such as "NA". ok is false unless a number was read.
type flexFloat64 struct {
	v  float64
	ok bool
}

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	*f = flexFloat64{}
	if string(data) == "null" {
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64{v: num, ok: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || s == "NA" || s == "N/A" {
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		*f = flexFloat64{v: num, ok: true}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

func (f flexFloat64) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

func (f flexFloat64) intPtr() *int64 {
	if !f.ok {
		return nil
	}
	v := int64(f.v)
	return &v
}

func (f flexFloat64) countPtr() *int {
	if !f.ok {
		return nil
	}
	v := int(f.v)
	return &v
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" {
		return nil
	}
	return &s
}

// fundamentalsResponse is the subset of /fundamentals the engine reads.
type fundamentalsResponse struct {
	General struct {
		Code              string      `json:"Code"`
		Name              string      `json:"Name"`
		Exchange          string      `json:"Exchange"`
		CurrencyCode      string      `json:"CurrencyCode"`
		CountryName       string      `json:"CountryName"`
		Sector            string      `json:"Sector"`
		Industry          string      `json:"Industry"`
		Description       string      `json:"Description"`
		WebURL            string      `json:"WebURL"`
		FullTimeEmployees flexFloat64 `json:"FullTimeEmployees"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization       flexFloat64 `json:"MarketCapitalization"`
		PERatio                    flexFloat64 `json:"PERatio"`
		PEGRatio                   flexFloat64 `json:"PEGRatio"`
		BookValue                  flexFloat64 `json:"BookValue"`
		DividendShare              flexFloat64 `json:"DividendShare"`
		DividendYield              flexFloat64 `json:"DividendYield"`
		ProfitMargin               flexFloat64 `json:"ProfitMargin"`
		OperatingMarginTTM         flexFloat64 `json:"OperatingMarginTTM"`
		ReturnOnAssetsTTM          flexFloat64 `json:"ReturnOnAssetsTTM"`
		ReturnOnEquityTTM          flexFloat64 `json:"ReturnOnEquityTTM"`
		RevenueTTM                 flexFloat64 `json:"RevenueTTM"`
		GrossProfitTTM             flexFloat64 `json:"GrossProfitTTM"`
		QuarterlyRevenueGrowthYOY  flexFloat64 `json:"QuarterlyRevenueGrowthYOY"`
		QuarterlyEarningsGrowthYOY flexFloat64 `json:"QuarterlyEarningsGrowthYOY"`
		WallStreetTargetPrice      flexFloat64 `json:"WallStreetTargetPrice"`
	} `json:"Highlights"`
	Valuation struct {
		ForwardPE             flexFloat64 `json:"ForwardPE"`
		PriceSalesTTM         flexFloat64 `json:"PriceSalesTTM"`
		PriceBookMRQ          flexFloat64 `json:"PriceBookMRQ"`
		EnterpriseValueEbitda flexFloat64 `json:"EnterpriseValueEbitda"`
	} `json:"Valuation"`
	SharesStats struct {
		SharesOutstanding flexFloat64 `json:"SharesOutstanding"`
		SharesFloat       flexFloat64 `json:"SharesFloat"`
	} `json:"SharesStats"`
	Technicals struct {
		Beta          flexFloat64 `json:"Beta"`
		FiftyTwoWHigh flexFloat64 `json:"52WeekHigh"`
		FiftyTwoWLow  flexFloat64 `json:"52WeekLow"`
	} `json:"Technicals"`
	SplitsDividends struct {
		ForwardAnnualDividendRate flexFloat64 `json:"ForwardAnnualDividendRate"`
	} `json:"SplitsDividends"`
	AnalystRatings struct {
		Rating      flexFloat64 `json:"Rating"`
		TargetPrice flexFloat64 `json:"TargetPrice"`
		StrongBuy   flexFloat64 `json:"StrongBuy"`
		Buy         flexFloat64 `json:"Buy"`
		Hold        flexFloat64 `json:"Hold"`
		Sell        flexFloat64 `json:"Sell"`
		StrongSell  flexFloat64 `json:"StrongSell"`
	} `json:"AnalystRatings"`
	ESGScores struct {
		TotalEsg         flexFloat64 `json:"TotalEsg"`
		EnvironmentScore flexFloat64 `json:"EnvironmentScore"`
		SocialScore      flexFloat64 `json:"SocialScore"`
		GovernanceScore  flexFloat64 `json:"GovernanceScore"`
	} `json:"ESGScores"`
	Holders struct {
		Institutions map[string]struct {
			Name          string      `json:"name"`
			Date          string      `json:"date"`
			CurrentShares flexFloat64 `json:"currentShares"`
			TotalShares   flexFloat64 `json:"totalShares"` // percent of outstanding
			TotalAssets   flexFloat64 `json:"totalAssets"`
		} `json:"Institutions"`
	} `json:"Holders"`
	Earnings struct {
		History map[string]struct {
			ReportDate      string      `json:"reportDate"`
			Date            string      `json:"date"`
			EPSActual       flexFloat64 `json:"epsActual"`
			EPSEstimate     flexFloat64 `json:"epsEstimate"`
			EPSDifference   flexFloat64 `json:"epsDifference"`
			SurprisePercent flexFloat64 `json:"surprisePercent"`
		} `json:"History"`
	} `json:"Earnings"`
	Financials struct {
		BalanceSheet struct {
			Quarterly map[string]struct {
				TotalAssets       flexFloat64 `json:"totalAssets"`
				TotalLiab         flexFloat64 `json:"totalLiab"`
				CurrentAssets     flexFloat64 `json:"totalCurrentAssets"`
				CurrentLiab       flexFloat64 `json:"totalCurrentLiabilities"`
				Inventory         flexFloat64 `json:"inventory"`
				StockholderEquity flexFloat64 `json:"totalStockholderEquity"`
			} `json:"quarterly"`
		} `json:"Balance_Sheet"`
		IncomeStatement struct {
			Quarterly map[string]struct {
				TotalRevenue    flexFloat64 `json:"totalRevenue"`
				GrossProfit     flexFloat64 `json:"grossProfit"`
				OperatingIncome flexFloat64 `json:"operatingIncome"`
				NetIncome       flexFloat64 `json:"netIncome"`
			} `json:"quarterly"`
		} `json:"Income_Statement"`
		CashFlow struct {
			Quarterly map[string]struct {
				OperatingCashFlow flexFloat64 `json:"totalCashFromOperatingActivities"`
				FreeCashFlow      flexFloat64 `json:"freeCashFlow"`
			} `json:"quarterly"`
		} `json:"Cash_Flow"`
	} `json:"Financials"`
}

type cachedFundamentals struct {
	doc       *fundamentalsResponse
	fetchedAt time.Time
}

// fundamentals returns the full document for a symbol. A filter narrowed to
// one section unwraps the response, so the whole payload is decoded instead.
// Documents are reused for docTTL and concurrent callers share one request.
// The returned document is shared and must not be modified.
func (c *Client) fundamentals(ctx context.Context, symbol string) (*fundamentalsResponse, error) {
	key := apiSymbol(symbol)

	c.docsMu.Lock()
	if cached, ok := c.docs[key]; ok && c.now().Sub(cached.fetchedAt) < c.docTTL {
		c.docsMu.Unlock()
		return cached.doc, nil
	}
	c.docsMu.Unlock()

	// The shared request outlives any one caller; each caller still honours
	// its own cancellation.
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		var resp fundamentalsResponse
		if err := c.get(context.WithoutCancel(ctx), "/fundamentals/"+key, nil, &resp); err != nil {
			return nil, err
		}
		c.storeFundamentals(key, &resp)
		return &resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*fundamentalsResponse), nil
	}
}

func (c *Client) storeFundamentals(key string, doc *fundamentalsResponse) {
	if c.docTTL <= 0 {
		return
	}
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	now := c.now()
	for k, v := range c.docs {
		if now.Sub(v.fetchedAt) >= c.docTTL {
			delete(c.docs, k)
		}
	}
	c.docs[key] = cachedFundamentals{doc: doc, fetchedAt: now}
}

// GetOverview retrieves identity and valuation fields
func (c *Client) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	o := &models.Overview{}
	o.LongName = strPtr(resp.General.Name)
	o.Sector = strPtr(resp.General.Sector)
	o.Industry = strPtr(resp.General.Industry)
	o.Exchange = strPtr(resp.General.Exchange)
	o.Currency = strPtr(resp.General.CurrencyCode)

	o.MarketCap = resp.Highlights.MarketCapitalization.ptr()
	o.SharesOutstanding = resp.SharesStats.SharesOutstanding.intPtr()
	o.FloatShares = resp.SharesStats.SharesFloat.intPtr()
	o.PERatio = resp.Highlights.PERatio.ptr()
	o.ForwardPE = resp.Valuation.ForwardPE.ptr()
	o.PBRatio = resp.Valuation.PriceBookMRQ.ptr()
	o.PSRatio = resp.Valuation.PriceSalesTTM.ptr()
	o.EVToEBITDA = resp.Valuation.EnterpriseValueEbitda.ptr()
	o.PEGRatio = resp.Highlights.PEGRatio.ptr()
	o.BookValue = resp.Highlights.BookValue.ptr()
	o.DividendRate = resp.SplitsDividends.ForwardAnnualDividendRate.ptr()
	o.DividendYield = resp.Highlights.DividendYield.ptr()

	o.FiftyTwoWeekHigh = resp.Technicals.FiftyTwoWHigh.ptr()
	o.FiftyTwoWeekLow = resp.Technicals.FiftyTwoWLow.ptr()
	return o, nil
}

// GetFundamentals retrieves margins, growth, leverage and return ratios
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.FinancialHealth, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	h := &models.FinancialHealth{
		ProfitMargin:    resp.Highlights.ProfitMargin.ptr(),
		OperatingMargin: resp.Highlights.OperatingMarginTTM.ptr(),
		RevenueGrowth:   resp.Highlights.QuarterlyRevenueGrowthYOY.ptr(),
		EarningsGrowth:  resp.Highlights.QuarterlyEarningsGrowthYOY.ptr(),
		ReturnOnEquity:  resp.Highlights.ReturnOnEquityTTM.ptr(),
		ReturnOnAssets:  resp.Highlights.ReturnOnAssetsTTM.ptr(),
		Beta:            resp.Technicals.Beta.ptr(),
	}
	if rev, gp := resp.Highlights.RevenueTTM, resp.Highlights.GrossProfitTTM; rev.ok && gp.ok && rev.v != 0 {
		h.GrossMargin = models.Ptr(gp.v / rev.v)
	}

	// Liquidity and leverage from the most recent balance sheet
	if latest := latestKey(resp.Financials.BalanceSheet.Quarterly); latest != "" {
		bs := resp.Financials.BalanceSheet.Quarterly[latest]
		if bs.CurrentAssets.ok && bs.CurrentLiab.ok && bs.CurrentLiab.v != 0 {
			h.CurrentRatio = models.Ptr(bs.CurrentAssets.v / bs.CurrentLiab.v)
			if bs.Inventory.ok {
				h.QuickRatio = models.Ptr((bs.CurrentAssets.v - bs.Inventory.v) / bs.CurrentLiab.v)
			}
		}
		if bs.TotalLiab.ok && bs.StockholderEquity.ok && bs.StockholderEquity.v != 0 {
			h.DebtToEquity = models.Ptr(bs.TotalLiab.v / bs.StockholderEquity.v)
		}
	}
	return h, nil
}

// GetAnalystTrend retrieves consensus ratings
func (c *Client) GetAnalystTrend(ctx context.Context, symbol string) (*models.Analyst, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	r := resp.AnalystRatings
	a := &models.Analyst{
		StrongBuy:   r.StrongBuy.countPtr(),
		Buy:         r.Buy.countPtr(),
		Hold:        r.Hold.countPtr(),
		Sell:        r.Sell.countPtr(),
		StrongSell:  r.StrongSell.countPtr(),
		TargetPrice: r.TargetPrice.ptr(),
	}
	if a.TargetPrice == nil {
		a.TargetPrice = resp.Highlights.WallStreetTargetPrice.ptr()
	}
	if r.Rating.ok {
		a.Recommendation = models.Ptr(recommendationFromRating(r.Rating.v))
	}
	return a, nil
}

// recommendationFromRating maps EODHD's 1 (sell) to 5 (strong buy) scale.
func recommendationFromRating(rating float64) string {
	switch {
	case rating >= 4.5:
		return "strong_buy"
	case rating >= 3.5:
		return "buy"
	case rating >= 2.5:
		return "hold"
	case rating >= 1.5:
		return "sell"
	default:
		return "strong_sell"
	}
}

// GetProfile retrieves the company profile
func (c *Client) GetProfile(ctx context.Context, symbol string) (*models.Profile, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &models.Profile{
		Description: strPtr(resp.General.Description),
		Website:     strPtr(resp.General.WebURL),
		Country:     strPtr(resp.General.CountryName),
		Employees:   resp.General.FullTimeEmployees.intPtr(),
	}, nil
}

// GetESG retrieves sustainability scores
func (c *Client) GetESG(ctx context.Context, symbol string) (*models.ESG, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &models.ESG{
		TotalESG:         resp.ESGScores.TotalEsg.ptr(),
		EnvironmentScore: resp.ESGScores.EnvironmentScore.ptr(),
		SocialScore:      resp.ESGScores.SocialScore.ptr(),
		GovernanceScore:  resp.ESGScores.GovernanceScore.ptr(),
	}, nil
}

// GetEarnings retrieves reported earnings, newest first
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var rows []models.EarningsRecord
	for _, key := range sortedKeysDesc(resp.Earnings.History) {
		e := resp.Earnings.History[key]
		if !e.EPSActual.ok && !e.EPSEstimate.ok {
			continue
		}
		rows = append(rows, models.EarningsRecord{
			Symbol:          strings.ToUpper(symbol),
			FiscalDate:      key,
			ReportDate:      e.ReportDate,
			EPSActual:       e.EPSActual.ptr(),
			EPSEstimate:     e.EPSEstimate.ptr(),
			Surprise:        e.EPSDifference.ptr(),
			SurprisePercent: e.SurprisePercent.ptr(),
		})
	}
	return rows, nil
}

// GetFinancialStatements joins the quarterly income, balance and cash flow statements
func (c *Client) GetFinancialStatements(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	fin := resp.Financials
	var rows []models.FinancialStatementRecord
	for _, key := range sortedKeysDesc(fin.IncomeStatement.Quarterly) {
		inc := fin.IncomeStatement.Quarterly[key]
		row := models.FinancialStatementRecord{
			Symbol:          strings.ToUpper(symbol),
			FiscalDate:      key,
			Period:          "quarterly",
			TotalRevenue:    inc.TotalRevenue.ptr(),
			GrossProfit:     inc.GrossProfit.ptr(),
			OperatingIncome: inc.OperatingIncome.ptr(),
			NetIncome:       inc.NetIncome.ptr(),
		}
		if bs, ok := fin.BalanceSheet.Quarterly[key]; ok {
			row.TotalAssets = bs.TotalAssets.ptr()
			row.TotalLiabilities = bs.TotalLiab.ptr()
		}
		if cf, ok := fin.CashFlow.Quarterly[key]; ok {
			row.OperatingCashFlow = cf.OperatingCashFlow.ptr()
			row.FreeCashFlow = cf.FreeCashFlow.ptr()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetInstitutionalHolders retrieves the reported institutional holders
func (c *Client) GetInstitutionalHolders(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error) {
	resp, err := c.fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rows := make([]models.InstitutionalHolderRecord, 0, len(resp.Holders.Institutions))
	for _, h := range resp.Holders.Institutions {
		if h.Name == "" {
			continue
		}
		rows = append(rows, models.InstitutionalHolderRecord{
			Symbol:       strings.ToUpper(symbol),
			Holder:       h.Name,
			Shares:       h.CurrentShares.intPtr(),
			PercentHeld:  h.TotalShares.ptr(),
			ReportedDate: h.Date,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return sharesOf(rows[i]) > sharesOf(rows[j])
	})
	return rows, nil
}

func sharesOf(r models.InstitutionalHolderRecord) int64 {
	if r.Shares == nil {
		return 0
	}
	return *r.Shares
}

func sortedKeysDesc[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

func latestKey[V any](m map[string]V) string {
	keys := sortedKeysDesc(m)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
