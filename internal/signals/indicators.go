// Package signals provides technical indicator calculations.
// Every function takes bars ordered oldest first and reports ok=false
// when the series is too short to produce a value.
package signals

import (
	"math"

	"github.com/bobmcallan/portwatch/internal/models"
)

// Standard look-back periods
const (
	RSIPeriod   = 14
	ATRPeriod   = 14
	MACDFast    = 12
	MACDSlow    = 26
	MACDSignal  = 9
	SMAShort    = 20
	SMALong     = 50
	macdMinBars = MACDSlow + MACDSignal - 1
	srLevelOne  = 0.10
	srLevelTwo  = 0.20
)

// Closes extracts closing prices
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA calculates the Simple Moving Average of the last period closes
func SMA(bars []models.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}

	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period), true
}

// EMA calculates the Exponential Moving Average over values.
// The first value seeds the average.
func EMA(values []float64, period int) (float64, bool) {
	series := emaSeries(values, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// emaSeries returns the running EMA for each value, or nil when values is
// shorter than period.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI calculates the Relative Strength Index over the last period deltas.
// A series without losses reads 100; a flat series has no value.
func RSI(bars []models.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}

	window := bars[len(bars)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i].Close - window[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 0, false
	case avgLoss == 0:
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// MACDResult holds the three MACD outputs
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the 12/26 MACD line, its 9-period signal and the histogram.
// Needs enough bars for the signal EMA to run over a full MACD series.
func MACD(bars []models.Bar) (MACDResult, bool) {
	if len(bars) < macdMinBars {
		return MACDResult{}, false
	}

	closes := Closes(bars)
	fast := emaSeries(closes, MACDFast)
	slow := emaSeries(closes, MACDSlow)

	// MACD line is only meaningful once the slow EMA has a full window
	line := make([]float64, 0, len(closes)-MACDSlow+1)
	for i := MACDSlow - 1; i < len(closes); i++ {
		line = append(line, fast[i]-slow[i])
	}

	signal, ok := EMA(line, MACDSignal)
	if !ok {
		return MACDResult{}, false
	}

	last := line[len(line)-1]
	return MACDResult{Line: last, Signal: signal, Histogram: last - signal}, true
}

// ATR calculates the Average True Range as the mean of the last period true ranges
func ATR(bars []models.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}

	window := bars[len(bars)-period-1:]
	trSum := 0.0
	for i := 1; i < len(window); i++ {
		high := window[i].High
		low := window[i].Low
		prevClose := window[i-1].Close

		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)

		trSum += math.Max(tr1, math.Max(tr2, tr3))
	}

	return trSum / float64(period), true
}

// Levels holds two support and two resistance prices
type Levels struct {
	Support1    float64
	Support2    float64
	Resistance1 float64
	Resistance2 float64
}

// SupportResistance derives levels at fixed fractions of the window's range.
// Support sits 10% and 20% above the lowest low; resistance 10% and 20%
// below the highest high.
func SupportResistance(bars []models.Bar) (Levels, bool) {
	high, low, ok := Range52Week(bars)
	if !ok {
		return Levels{}, false
	}

	span := high - low
	return Levels{
		Support1:    low + span*srLevelOne,
		Support2:    low + span*srLevelTwo,
		Resistance1: high - span*srLevelOne,
		Resistance2: high - span*srLevelTwo,
	}, true
}

// Range52Week returns the highest high and lowest low of the supplied window.
// Callers pass a year of daily bars; shorter windows give the range they cover.
func Range52Week(bars []models.Bar) (high, low float64, ok bool) {
	if len(bars) == 0 {
		return 0, 0, false
	}

	high = bars[0].High
	low = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, true
}
