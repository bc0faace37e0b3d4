package refresh

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/portwatch/internal/models"
)

// RefreshMany refreshes symbols one after another, pacing calls by the batch
// delay. A failing symbol never stops the loop; cancellation marks the
// remaining symbols failed.
func (s *Service) RefreshMany(ctx context.Context, symbols []string, tier models.Tier) *models.BatchResult {
	result := &models.BatchResult{
		Tier:       tier,
		Successful: []string{},
		Failed:     []string{},
		Total:      len(symbols),
	}

	var limiter *rate.Limiter
	if s.batchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.batchDelay), 1)
	}

	for i, raw := range symbols {
		symbol := NormalizeSymbol(raw)

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.abandon(result, symbols[i:], err)
				break
			}
		} else if err := ctx.Err(); err != nil {
			s.abandon(result, symbols[i:], err)
			break
		}

		if s.refreshOne(ctx, symbol, tier) {
			result.Successful = append(result.Successful, symbol)
		} else {
			result.Failed = append(result.Failed, symbol)
		}
	}

	s.logger.Info().
		Str("tier", string(tier)).
		Int("total", result.Total).
		Int("successful", len(result.Successful)).
		Int("failed", len(result.Failed)).
		Msg("Batch refresh complete")

	return result
}

// refreshOne isolates a single symbol from the batch
func (s *Service) refreshOne(ctx context.Context, symbol string, tier models.Tier) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("symbol", symbol).Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic in batch")
			ok = false
		}
	}()
	_, ok = s.RefreshTier(ctx, symbol, tier)
	return ok
}

func (s *Service) abandon(result *models.BatchResult, remaining []string, err error) {
	for _, raw := range remaining {
		result.Failed = append(result.Failed, NormalizeSymbol(raw))
	}
	s.logger.Warn().Err(err).Int("remaining", len(remaining)).Msg("Batch refresh cancelled")
}

// RefreshAll refreshes every tracked symbol
func (s *Service) RefreshAll(ctx context.Context, tier models.Tier) (*models.BatchResult, error) {
	symbols, err := s.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return s.RefreshMany(ctx, symbols, tier), nil
}
