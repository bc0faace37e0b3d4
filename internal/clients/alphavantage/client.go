// Package alphavantage provides a client for the Alpha Vantage API,
// used as the fallback data provider.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1 // requests per second; the free tier is far stricter per day
)

// Client implements interfaces.DataProvider against Alpha Vantage
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	location   *time.Location // intraday timestamps are exchange-local
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   common.NewSilentLogger(),
		location: loc,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string { return "alphavantage" }

// APIError represents an API error. Alpha Vantage reports most failures
// with HTTP 200 and an "Error Message", "Note" or "Information" body.
type APIError struct {
	StatusCode int
	Message    string
	Function   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Alpha Vantage API error: %s (status: %d, function: %s)", e.Message, e.StatusCode, e.Function)
}

// query performs a rate-limited call of one API function
func (c *Client) query(ctx context.Context, function string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("function", function)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", function).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Function: function}
	}

	var envelope struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, msg := range []string{envelope.ErrorMessage, envelope.Note, envelope.Information} {
			if msg != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: msg, Function: function}
			}
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// num parses Alpha Vantage's string-encoded numbers. "None", "-" and empty are absent.
func num(s string) *float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func integer(s string) *int64 {
	f := num(s)
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

func count(s string) *int {
	f := num(s)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

func str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	return &s
}

// SearchSymbol runs SYMBOL_SEARCH
func (c *Client) SearchSymbol(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	params := url.Values{}
	params.Set("keywords", query)

	var resp struct {
		BestMatches []struct {
			Symbol   string `json:"1. symbol"`
			Name     string `json:"2. name"`
			Type     string `json:"3. type"`
			Region   string `json:"4. region"`
			Currency string `json:"8. currency"`
		} `json:"bestMatches"`
	}
	if err := c.query(ctx, "SYMBOL_SEARCH", params, &resp); err != nil {
		return nil, err
	}

	matches := make([]models.SymbolMatch, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		if m.Symbol == "" {
			continue
		}
		matches = append(matches, models.SymbolMatch{
			Symbol:   strings.ToUpper(m.Symbol),
			Name:     m.Name,
			Exchange: m.Region,
			Currency: m.Currency,
			Type:     m.Type,
		})
	}
	return matches, nil
}

// GetQuote runs GLOBAL_QUOTE
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Quote struct {
			Price         string `json:"05. price"`
			Volume        string `json:"06. volume"`
			LatestDay     string `json:"07. latest trading day"`
			PreviousClose string `json:"08. previous close"`
			Change        string `json:"09. change"`
			ChangePercent string `json:"10. change percent"`
		} `json:"Global Quote"`
	}
	if err := c.query(ctx, "GLOBAL_QUOTE", params, &resp); err != nil {
		return nil, err
	}

	q := &models.Quote{}
	q.CurrentPrice = num(resp.Quote.Price)
	q.Volume = integer(resp.Quote.Volume)
	q.PreviousClose = num(resp.Quote.PreviousClose)
	q.DayChange = num(resp.Quote.Change)
	q.DayChangePercent = num(resp.Quote.ChangePercent)
	if d, err := time.ParseInLocation("2006-01-02", resp.Quote.LatestDay, c.location); err == nil {
		q.Timestamp = d
	}
	return q, nil
}

// Ensure Client implements DataProvider
var _ interfaces.DataProvider = (*Client)(nil)
