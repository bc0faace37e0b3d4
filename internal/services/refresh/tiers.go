package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
	"github.com/bobmcallan/portwatch/internal/signals"
)

// Look-back windows for history fetches
const (
	intradayLookback    = 24 * time.Hour
	dailyLookbackMonths = 1
)

// Each fetch below treats its field groups independently: a failed group is
// recorded on the attempt and the remaining groups still run.

func (s *Service) fetchRealTime(ctx context.Context, a *attempt, now time.Time) {
	if q, err := s.provider.GetQuote(ctx, a.symbol); err != nil || q == nil {
		a.fail("quote", orNoData(err))
	} else {
		a.fetched++
		a.patch.RealTime = q.RealTime
	}

	bars, err := s.provider.GetHistory(ctx, a.symbol, models.Interval1Min, now.Add(-intradayLookback), now)
	if err != nil || len(bars) == 0 {
		a.fail("intraday", orNoData(err))
		return
	}
	a.fetched++
	a.patch.Technicals = signals.Compute(bars)
}

func (s *Service) fetchDaily(ctx context.Context, a *attempt, now time.Time) {
	if q, err := s.provider.GetQuote(ctx, a.symbol); err != nil || q == nil {
		a.fail("quote", orNoData(err))
	} else {
		a.fetched++
		a.patch.RealTime = q.RealTime
	}

	if o, err := s.provider.GetOverview(ctx, a.symbol); err != nil || o == nil {
		a.fail("overview", orNoData(err))
	} else {
		a.fetched++
		op := o.Patch()
		a.patch.Identity = op.Identity
		a.patch.Valuation = op.Valuation
		a.patch.FiftyTwoWeekHigh = op.FiftyTwoWeekHigh
		a.patch.FiftyTwoWeekLow = op.FiftyTwoWeekLow
	}

	if h, err := s.provider.GetFundamentals(ctx, a.symbol); err != nil || h == nil {
		a.fail("fundamentals", orNoData(err))
	} else {
		a.fetched++
		a.patch.FinancialHealth = *h
	}

	if an, err := s.provider.GetAnalystTrend(ctx, a.symbol); err != nil || an == nil {
		a.fail("analyst", orNoData(err))
	} else {
		a.fetched++
		a.patch.Analyst = *an
	}

	bars, err := s.provider.GetHistory(ctx, a.symbol, models.IntervalDaily, now.AddDate(0, -dailyLookbackMonths, 0), now)
	if err != nil || len(bars) == 0 {
		a.fail("history", orNoData(err))
		return
	}
	a.fetched++
	// Overview-supplied range wins
	if high, low, ok := signals.Range52Week(bars); ok {
		if a.patch.FiftyTwoWeekHigh == nil {
			a.patch.FiftyTwoWeekHigh = models.Ptr(high)
		}
		if a.patch.FiftyTwoWeekLow == nil {
			a.patch.FiftyTwoWeekLow = models.Ptr(low)
		}
	}
}

func (s *Service) fetchWeekly(ctx context.Context, a *attempt) {
	if p, err := s.provider.GetProfile(ctx, a.symbol); err != nil || p == nil {
		a.fail("profile", orNoData(err))
	} else {
		a.fetched++
		a.patch.Profile = *p
	}

	if e, err := s.provider.GetESG(ctx, a.symbol); err != nil || e == nil {
		a.fail("esg", orNoData(err))
	} else {
		a.fetched++
		a.patch.ESG = *e
	}
}

// fetchQuarterly snapshot-replaces each satellite table that returned data.
// A failed store write is a hard error for the attempt.
func (s *Service) fetchQuarterly(ctx context.Context, a *attempt, now time.Time) {
	id := a.record.ID

	if rows, err := s.provider.GetEarnings(ctx, a.symbol); err != nil || len(rows) == 0 {
		a.fail("earnings", orNoData(err))
	} else {
		a.fetched++
		for i := range rows {
			rows[i].StockID, rows[i].Symbol, rows[i].CreatedAt = id, a.symbol, now
		}
		if err := s.store.ReplaceEarnings(ctx, id, rows); err != nil {
			a.hardErr = persistErr(models.SatelliteEarnings, a.symbol, err)
			return
		}
		a.satellites = append(a.satellites, string(models.SatelliteEarnings))
	}

	if rows, err := s.provider.GetFinancialStatements(ctx, a.symbol); err != nil || len(rows) == 0 {
		a.fail("financial statements", orNoData(err))
	} else {
		a.fetched++
		for i := range rows {
			rows[i].StockID, rows[i].Symbol, rows[i].CreatedAt = id, a.symbol, now
		}
		if err := s.store.ReplaceFinancialStatements(ctx, id, rows); err != nil {
			a.hardErr = persistErr(models.SatelliteFinancialStatements, a.symbol, err)
			return
		}
		a.satellites = append(a.satellites, string(models.SatelliteFinancialStatements))
	}

	if rows, err := s.provider.GetInstitutionalHolders(ctx, a.symbol); err != nil || len(rows) == 0 {
		a.fail("institutional holders", orNoData(err))
	} else {
		a.fetched++
		for i := range rows {
			rows[i].StockID, rows[i].Symbol, rows[i].CreatedAt = id, a.symbol, now
		}
		if err := s.store.ReplaceInstitutionalHolders(ctx, id, rows); err != nil {
			a.hardErr = persistErr(models.SatelliteInstitutionalHolders, a.symbol, err)
			return
		}
		a.satellites = append(a.satellites, string(models.SatelliteInstitutionalHolders))
	}
}

var errNoData = errors.New("no data returned")

func orNoData(err error) error {
	if err != nil {
		return err
	}
	return errNoData
}

func persistErr(kind models.SatelliteKind, symbol string, err error) error {
	return fmt.Errorf("%w: replace %s for %s: %v", common.ErrPersistence, kind, symbol, err)
}
