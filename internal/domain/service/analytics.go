package service

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// Analyzer turns a market snapshot into a recommendation. Implementations must
// be safe for concurrent use and must not modify the snapshot.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, snapshot models.MarketSnapshot, recentTrades []models.TradePrint) (models.Recommendation, error)
}
