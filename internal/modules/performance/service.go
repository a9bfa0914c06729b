package performance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// Service maintains the per-asset and portfolio aggregates. Writes happen
// one closed lot at a time; a full rebuild replays every closed lot.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

// NewService creates a performance service
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "performance").Logger(),
	}
}

// OnOutcomeClosed folds one closed lot into the asset's record and the
// portfolio singleton
func (s *Service) OnOutcomeClosed(ctx context.Context, o *domain.TradeOutcome) error {
	if o.Status != domain.OutcomeClosed {
		return nil
	}

	asset := strings.ToUpper(o.Asset)

	perf, err := s.repo.GetPerformance(ctx, asset)
	if err != nil {
		return fmt.Errorf("failed to load performance for %s: %w", asset, err)
	}
	isNewAsset := perf == nil
	if isNewAsset {
		perf = &domain.PositionPerformance{Asset: asset, Symbol: o.Symbol}
	}

	perf.ApplyOutcome(o)
	if err := s.repo.SavePerformance(ctx, perf); err != nil {
		return fmt.Errorf("failed to save performance for %s: %w", asset, err)
	}

	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load portfolio stats: %w", err)
	}
	stats.ApplyOutcome(o)
	if isNewAsset {
		stats.UniqueAssets++
	}
	if err := s.repo.SaveStats(ctx, stats); err != nil {
		return fmt.Errorf("failed to save portfolio stats: %w", err)
	}

	s.log.Info().
		Str("asset", asset).
		Float64("pnl", o.RealizedPnL).
		Int("asset_trades", perf.TotalTrades).
		Int("portfolio_trades", stats.TotalTrades).
		Msg("Closed lot folded into aggregates")

	return nil
}

// RebuildAll discards every aggregate and replays the given closed lots. The
// caller supplies them in exit-time ascending order so streaks come out the
// same as they did live.
func (s *Service) RebuildAll(ctx context.Context, closed []*domain.TradeOutcome) error {
	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset aggregates: %w", err)
	}

	perfByAsset := make(map[string]*domain.PositionPerformance)
	stats := &domain.PortfolioStats{}

	for _, o := range closed {
		if o.Status != domain.OutcomeClosed {
			continue
		}
		asset := strings.ToUpper(o.Asset)
		perf, ok := perfByAsset[asset]
		if !ok {
			perf = &domain.PositionPerformance{Asset: asset, Symbol: o.Symbol}
			perfByAsset[asset] = perf
		}
		perf.ApplyOutcome(o)
		stats.ApplyOutcome(o)
	}
	stats.UniqueAssets = len(perfByAsset)

	// Deterministic write order
	assets := make([]string, 0, len(perfByAsset))
	for asset := range perfByAsset {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		if err := s.repo.SavePerformance(ctx, perfByAsset[asset]); err != nil {
			return fmt.Errorf("failed to save rebuilt performance for %s: %w", asset, err)
		}
	}
	if err := s.repo.SaveStats(ctx, stats); err != nil {
		return fmt.Errorf("failed to save rebuilt portfolio stats: %w", err)
	}

	s.log.Info().
		Int("lots_replayed", len(closed)).
		Int("assets", len(perfByAsset)).
		Msg("Aggregates rebuilt from closed lots")

	return nil
}

// Performance returns the asset's aggregate, or nil if it has no closed trades
func (s *Service) Performance(ctx context.Context, asset string) (*domain.PositionPerformance, error) {
	return s.repo.GetPerformance(ctx, asset)
}

// AllPerformance returns every asset aggregate
func (s *Service) AllPerformance(ctx context.Context) ([]*domain.PositionPerformance, error) {
	return s.repo.GetAllPerformance(ctx)
}

// Stats returns the portfolio-wide aggregate
func (s *Service) Stats(ctx context.Context) (*domain.PortfolioStats, error) {
	return s.repo.GetStats(ctx)
}
