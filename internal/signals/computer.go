package signals

import (
	"github.com/bobmcallan/portwatch/internal/models"
)

// Compute assembles the technicals group from bars ordered oldest first.
// Indicators without enough history are left nil so they never overwrite
// stored values.
func Compute(bars []models.Bar) models.Technicals {
	var t models.Technicals

	if v, ok := SMA(bars, SMAShort); ok {
		t.SMA20 = models.Ptr(v)
	}
	if v, ok := SMA(bars, SMALong); ok {
		t.SMA50 = models.Ptr(v)
	}
	if v, ok := RSI(bars, RSIPeriod); ok {
		t.RSI = models.Ptr(v)
	}
	if m, ok := MACD(bars); ok {
		t.MACD = models.Ptr(m.Line)
		t.MACDSignal = models.Ptr(m.Signal)
		t.MACDHistogram = models.Ptr(m.Histogram)
	}
	if v, ok := ATR(bars, ATRPeriod); ok {
		t.ATR = models.Ptr(v)
	}
	if l, ok := SupportResistance(bars); ok {
		t.Support1 = models.Ptr(l.Support1)
		t.Support2 = models.Ptr(l.Support2)
		t.Resistance1 = models.Ptr(l.Resistance1)
		t.Resistance2 = models.Ptr(l.Resistance2)
	}

	return t
}
