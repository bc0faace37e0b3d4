package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
)

// LookupStock returns the tracked record for query, or searches the providers
// and starts tracking the first match.
func (s *Service) LookupStock(ctx context.Context, query string) (*models.StockRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}

	if rec, err := s.store.Get(ctx, NormalizeSymbol(query)); err == nil {
		return rec, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: get %s: %v", common.ErrPersistence, query, err)
	}

	matches, err := s.provider.SearchSymbol(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, common.ErrNotFound)
	}
	match := matches[0]
	symbol := NormalizeSymbol(match.Symbol)

	if rec, err := s.store.Get(ctx, symbol); err == nil {
		return rec, nil
	}

	var patch models.StockPatch
	if o, err := s.provider.GetOverview(ctx, symbol); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Overview unavailable during lookup")
	} else {
		patch = o.Patch()
	}
	if patch.LongName == nil && match.Name != "" {
		patch.LongName = models.Ptr(match.Name)
	}
	if patch.Exchange == nil && match.Exchange != "" {
		patch.Exchange = models.Ptr(match.Exchange)
	}
	if patch.Currency == nil && match.Currency != "" {
		patch.Currency = models.Ptr(match.Currency)
	}

	rec := &models.StockRecord{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		CreatedAt: s.now(),
	}
	patch.ApplyTo(rec)

	stored, err := s.store.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: insert %s: %v", common.ErrPersistence, symbol, err)
	}
	s.logger.Info().Str("symbol", symbol).Str("query", query).Msg("Tracking stock from lookup")
	return stored, nil
}

// GetStock returns a tracked record
func (s *Service) GetStock(ctx context.Context, symbol string) (*models.StockRecord, error) {
	return s.store.Get(ctx, NormalizeSymbol(symbol))
}

// RefreshLog returns the newest audit entries for a tracked symbol
func (s *Service) RefreshLog(ctx context.Context, symbol string, limit int) ([]models.RefreshLogEntry, error) {
	rec, err := s.store.Get(ctx, NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return s.store.ListAuditLog(ctx, rec.ID, limit)
}
