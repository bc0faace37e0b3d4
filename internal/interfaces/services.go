package interfaces

import (
	"context"

	"github.com/bobmcallan/portwatch/internal/models"
)

// RefreshService keeps stock records fresh, one tier at a time
type RefreshService interface {
	// RefreshTier refreshes one tier of one symbol. ok is false when the
	// attempt was recorded as failed; errors never escape.
	RefreshTier(ctx context.Context, symbol string, tier models.Tier) (*models.RefreshResult, bool)

	// RefreshMany refreshes a list of symbols sequentially with pacing
	RefreshMany(ctx context.Context, symbols []string, tier models.Tier) *models.BatchResult

	// RefreshAll refreshes every tracked symbol
	RefreshAll(ctx context.Context, tier models.Tier) (*models.BatchResult, error)

	// LookupStock returns a tracked record or creates it from a provider search
	LookupStock(ctx context.Context, query string) (*models.StockRecord, error)

	// GetStock returns a tracked record
	GetStock(ctx context.Context, symbol string) (*models.StockRecord, error)

	// RefreshLog returns the newest audit entries for a symbol
	RefreshLog(ctx context.Context, symbol string, limit int) ([]models.RefreshLogEntry, error)
}
