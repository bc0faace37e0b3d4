// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	// DefaultFundamentalsTTL keeps one fundamentals document per symbol for the
	// duration of a tier refresh, which reads several sections of it.
	DefaultFundamentalsTTL = time.Minute
)

// Client implements interfaces.DataProvider against EODHD
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter

	docTTL time.Duration
	docsMu sync.Mutex
	docs   map[string]cachedFundamentals
	flight singleflight.Group
	now    func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithFundamentalsTTL sets how long a fetched fundamentals document is reused.
// Zero disables reuse across calls; concurrent calls still share one request.
func WithFundamentalsTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.docTTL = ttl
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		docTTL:  DefaultFundamentalsTTL,
		docs:    make(map[string]cachedFundamentals),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string { return "eodhd" }

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// apiSymbol converts a tracked symbol into EODHD's CODE.EXCHANGE form.
// Bare tickers are assumed to be US listings.
func apiSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".US"
}

// trackedSymbol is the inverse of apiSymbol
func trackedSymbol(code, exchange string) string {
	code = strings.ToUpper(code)
	if exchange == "" || strings.EqualFold(exchange, "US") {
		return code
	}
	return code + "." + strings.ToUpper(exchange)
}

// SearchSymbol searches by ticker or company name
func (c *Client) SearchSymbol(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	params := url.Values{}
	params.Set("limit", "10")

	var resp []struct {
		Code     string `json:"Code"`
		Exchange string `json:"Exchange"`
		Name     string `json:"Name"`
		Type     string `json:"Type"`
		Currency string `json:"Currency"`
	}
	if err := c.get(ctx, "/search/"+url.PathEscape(query), params, &resp); err != nil {
		return nil, err
	}

	matches := make([]models.SymbolMatch, 0, len(resp))
	for _, r := range resp {
		if r.Code == "" {
			continue
		}
		matches = append(matches, models.SymbolMatch{
			Symbol:   trackedSymbol(r.Code, r.Exchange),
			Name:     r.Name,
			Exchange: r.Exchange,
			Currency: r.Currency,
			Type:     r.Type,
		})
	}
	return matches, nil
}

// realTimeResponse is the /real-time payload. Missing values arrive as "NA".
type realTimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	Volume        flexFloat64 `json:"volume"`
	PreviousClose flexFloat64 `json:"previousClose"`
	Change        flexFloat64 `json:"change"`
	ChangeP       flexFloat64 `json:"change_p"`
}

// GetQuote retrieves a delayed real-time quote
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var resp realTimeResponse
	if err := c.get(ctx, "/real-time/"+apiSymbol(symbol), nil, &resp); err != nil {
		return nil, err
	}

	q := &models.Quote{}
	q.CurrentPrice = resp.Close.ptr()
	q.PreviousClose = resp.PreviousClose.ptr()
	q.DayChange = resp.Change.ptr()
	q.DayChangePercent = resp.ChangeP.ptr()
	q.Volume = resp.Volume.intPtr()
	if ts := resp.Timestamp.ptr(); ts != nil {
		q.Timestamp = time.Unix(int64(*ts), 0)
	}
	return q, nil
}

// GetHistory retrieves intraday or end-of-day bars, oldest first
func (c *Client) GetHistory(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
	var bars []models.Bar
	var err error
	switch interval {
	case models.IntervalDaily:
		bars, err = c.getEOD(ctx, symbol, from, to)
	case models.Interval1Min, models.Interval5Min:
		bars, err = c.getIntraday(ctx, symbol, interval, from, to)
	default:
		return nil, fmt.Errorf("eodhd: interval %s: %w", interval, common.ErrNotSupported)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

func (c *Client) getEOD(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var resp []eodBarResponse
	if err := c.get(ctx, "/eod/"+apiSymbol(symbol), params, &resp); err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(resp))
	for _, b := range resp {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

type intradayBarResponse struct {
	Timestamp int64       `json:"timestamp"`
	Open      flexFloat64 `json:"open"`
	High      flexFloat64 `json:"high"`
	Low       flexFloat64 `json:"low"`
	Close     flexFloat64 `json:"close"`
	Volume    flexFloat64 `json:"volume"`
}

func (c *Client) getIntraday(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("interval", string(interval))
	if !from.IsZero() {
		params.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		params.Set("to", strconv.FormatInt(to.Unix(), 10))
	}

	var resp []intradayBarResponse
	if err := c.get(ctx, "/intraday/"+apiSymbol(symbol), params, &resp); err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(resp))
	for _, b := range resp {
		if !b.Close.ok {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open.v,
			High:   b.High.v,
			Low:    b.Low.v,
			Close:  b.Close.v,
			Volume: int64(b.Volume.v),
		})
	}
	return bars, nil
}

// Ensure Client implements DataProvider
var _ interfaces.DataProvider = (*Client)(nil)
