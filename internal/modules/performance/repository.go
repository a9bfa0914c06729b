// Package performance maintains incremental aggregates over closed trade
// lots: one record per asset plus a portfolio-wide singleton.
package performance

import (
	"context"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// Repository persists per-asset performance records and the portfolio stats
// singleton
type Repository interface {
	// GetPerformance returns the asset's record, or nil if none exists yet
	GetPerformance(ctx context.Context, asset string) (*domain.PositionPerformance, error)

	// GetAllPerformance returns every asset record
	GetAllPerformance(ctx context.Context) ([]*domain.PositionPerformance, error)

	// SavePerformance upserts an asset record
	SavePerformance(ctx context.Context, p *domain.PositionPerformance) error

	// GetStats returns the portfolio singleton, zero-valued if never saved
	GetStats(ctx context.Context) (*domain.PortfolioStats, error)

	// SaveStats upserts the portfolio singleton
	SaveStats(ctx context.Context, s *domain.PortfolioStats) error

	// Reset deletes all performance records and the stats singleton
	Reset(ctx context.Context) error
}
