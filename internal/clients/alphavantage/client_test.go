package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

// newFunctionServer routes on the "function" query parameter
func newFunctionServer(t *testing.T, bodies map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" || r.URL.Query().Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, ok := bodies[r.URL.Query().Get("function")]
		if !ok {
			w.Write([]byte(`{"Error Message":"Invalid API call."}`))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))
}

func TestGetQuote(t *testing.T) {
	client := newFunctionServer(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote":{"01. symbol":"IBM","05. price":"182.5000","06. volume":"3012000",
			"07. latest trading day":"2026-03-02","08. previous close":"180.0000","09. change":"2.5000","10. change percent":"1.3889%"}}`,
	})

	q, err := client.GetQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 182.5, *q.CurrentPrice)
	assert.Equal(t, int64(3012000), *q.Volume)
	assert.InDelta(t, 1.3889, *q.DayChangePercent, 1e-9)
	assert.Equal(t, 2026, q.Timestamp.Year())
}

func TestGetQuote_UnknownSymbolIsEmpty(t *testing.T) {
	client := newFunctionServer(t, map[string]string{"GLOBAL_QUOTE": `{"Global Quote":{}}`})

	q, err := client.GetQuote(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, q.Empty())
}

func TestQuery_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error_message", `{"Error Message":"Invalid API call."}`},
		{"rate_limit_note", `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`},
		{"information", `{"Information":"This is a premium endpoint."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFunctionServer(t, map[string]string{"GLOBAL_QUOTE": tt.body})
			_, err := client.GetQuote(context.Background(), "IBM")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, "GLOBAL_QUOTE", apiErr.Function)
		})
	}
}

func TestSearchSymbol(t *testing.T) {
	client := newFunctionServer(t, map[string]string{
		"SYMBOL_SEARCH": `{"bestMatches":[{"1. symbol":"acme","2. name":"Acme Corp","3. type":"Equity","4. region":"United States","8. currency":"USD"}]}`,
	})

	matches, err := client.SearchSymbol(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ACME", matches[0].Symbol)
	assert.Equal(t, "Acme Corp", matches[0].Name)
}

const overviewFixture = `{"Symbol":"ACME","Name":"Acme Corp","Description":"Makes anvils.","Exchange":"NYSE","Currency":"USD",
	"Country":"USA","Sector":"INDUSTRIALS","Industry":"SPECIALTY INDUSTRIAL MACHINERY","OfficialSite":"https://acme.example",
	"MarketCapitalization":"500000000","PERatio":"18.5","PEGRatio":"None","BookValue":"12.1","DividendPerShare":"0.6",
	"DividendYield":"0.012","ProfitMargin":"0.11","OperatingMarginTTM":"0.15","ReturnOnAssetsTTM":"0.07","ReturnOnEquityTTM":"0.2",
	"RevenueTTM":"1000","GrossProfitTTM":"400","QuarterlyEarningsGrowthYOY":"-","QuarterlyRevenueGrowthYOY":"0.05",
	"AnalystTargetPrice":"58","AnalystRatingStrongBuy":"5","AnalystRatingBuy":"7","AnalystRatingHold":"7","AnalystRatingSell":"1",
	"AnalystRatingStrongSell":"0","ForwardPE":"16","PriceToSalesRatioTTM":"1.4","PriceToBookRatio":"2.1","EVToEBITDA":"9.5",
	"Beta":"1.1","52WeekHigh":"60","52WeekLow":"40","SharesOutstanding":"10000000","SharesFloat":"9000000"}`

func TestOverviewDerivedGroups(t *testing.T) {
	client := newFunctionServer(t, map[string]string{"OVERVIEW": overviewFixture})
	ctx := context.Background()

	o, err := client.GetOverview(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Industrials", *o.Sector)
	assert.Equal(t, "Specialty Industrial Machinery", *o.Industry)
	assert.Equal(t, 500000000.0, *o.MarketCap)
	assert.Nil(t, o.PEGRatio)
	assert.Equal(t, 40.0, *o.FiftyTwoWeekLow)

	h, err := client.GetFundamentals(ctx, "ACME")
	require.NoError(t, err)
	assert.Nil(t, h.EarningsGrowth)
	assert.InDelta(t, 0.4, *h.GrossMargin, 1e-9)
	assert.Nil(t, h.CurrentRatio)

	a, err := client.GetAnalystTrend(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "hold", *a.Recommendation, "tie between hold and buy resolves to hold")
	assert.Equal(t, 58.0, *a.TargetPrice)

	p, err := client.GetProfile(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example", *p.Website)
	assert.Nil(t, p.Employees)
}

func TestGetOverview_UnknownSymbol(t *testing.T) {
	client := newFunctionServer(t, map[string]string{"OVERVIEW": `{}`})
	_, err := client.GetOverview(context.Background(), "NOPE")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUnsupportedOperations(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.GetESG(context.Background(), "ACME")
	assert.ErrorIs(t, err, common.ErrNotSupported)
	_, err = client.GetInstitutionalHolders(context.Background(), "ACME")
	assert.ErrorIs(t, err, common.ErrNotSupported)
}

func TestGetHistory_Intraday(t *testing.T) {
	client := newFunctionServer(t, map[string]string{
		"TIME_SERIES_INTRADAY": `{"Meta Data":{"1. Information":"Intraday (1min)"},"Time Series (1min)":{
			"2026-03-02 15:59:00":{"1. open":"10.5","2. high":"11","3. low":"10","4. close":"10.8","5. volume":"200"},
			"2026-03-02 15:58:00":{"1. open":"10","2. high":"10.6","3. low":"9.9","4. close":"10.5","5. volume":"100"},
			"2026-03-01 15:58:00":{"1. open":"9","2. high":"9","3. low":"9","4. close":"9","5. volume":"1"}
		}}`,
	})

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars, err := client.GetHistory(context.Background(), "ACME", models.Interval1Min, from, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 2, "bars before from are trimmed")
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 10.8, bars[1].Close)
	assert.Equal(t, int64(200), bars[1].Volume)
}

func TestGetEarningsAndStatements(t *testing.T) {
	client := newFunctionServer(t, map[string]string{
		"EARNINGS": `{"symbol":"ACME","quarterlyEarnings":[
			{"fiscalDateEnding":"2025-12-31","reportedDate":"2026-01-30","reportedEPS":"1.3","estimatedEPS":"1.2","surprise":"0.1","surprisePercentage":"8.3"}]}`,
		"INCOME_STATEMENT": `{"quarterlyReports":[{"fiscalDateEnding":"2025-12-31","totalRevenue":"260","grossProfit":"100","operatingIncome":"40","netIncome":"30"}]}`,
		"BALANCE_SHEET":    `{"quarterlyReports":[{"fiscalDateEnding":"2025-12-31","totalAssets":"5000","totalLiabilities":"2000"}]}`,
		"CASH_FLOW":        `{"quarterlyReports":[{"fiscalDateEnding":"2025-12-31","operatingCashflow":"50","capitalExpenditures":"15"}]}`,
	})
	ctx := context.Background()

	earnings, err := client.GetEarnings(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, "ACME", earnings[0].Symbol)
	assert.Equal(t, 1.3, *earnings[0].EPSActual)

	statements, err := client.GetFinancialStatements(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, 260.0, *statements[0].TotalRevenue)
	assert.Equal(t, 2000.0, *statements[0].TotalLiabilities)
	assert.Equal(t, 35.0, *statements[0].FreeCashFlow)
}
