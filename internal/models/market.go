package models

import (
	"time"
)

// Bar is one OHLCV interval. Series are ordered oldest first.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Interval selects the bar size of a historical series request.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval5Min  Interval = "5m"
	IntervalDaily Interval = "1d"
)

// SymbolMatch is one result of a symbol or company-name search.
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Quote is a normalised real-time quote.
type Quote struct {
	RealTime
	Timestamp time.Time `json:"timestamp"`
}

// Overview carries identity and valuation data for a symbol.
type Overview struct {
	Identity
	Valuation
	FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow,omitempty"`
}

// Empty reports whether a provider returned nothing usable.
func (q *Quote) Empty() bool {
	return q == nil || (&StockPatch{RealTime: q.RealTime}).IsEmpty()
}

func (o *Overview) Empty() bool {
	return o == nil || ((&StockPatch{Identity: o.Identity, Valuation: o.Valuation}).IsEmpty() &&
		o.FiftyTwoWeekHigh == nil && o.FiftyTwoWeekLow == nil)
}

// Patch converts the overview into a stock patch.
func (o *Overview) Patch() StockPatch {
	p := StockPatch{Identity: o.Identity, Valuation: o.Valuation}
	p.FiftyTwoWeekHigh = o.FiftyTwoWeekHigh
	p.FiftyTwoWeekLow = o.FiftyTwoWeekLow
	return p
}
