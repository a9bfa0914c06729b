package paper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// LedgerService maintains the weighted-average cost basis per asset. Buys
// blend into the average, sells reduce quantity at a fixed average, and a
// fully sold position is deleted.
type LedgerService struct {
	repo Repository
	log  zerolog.Logger
}

// NewLedgerService creates a cost-basis ledger service
func NewLedgerService(repo Repository, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		repo: repo,
		log:  log.With().Str("service", "paper_ledger").Logger(),
	}
}

// RecordBuy folds a buy fill into the asset's cost basis
func (s *LedgerService) RecordBuy(ctx context.Context, asset string, quantity, price float64, at time.Time) (*domain.PaperPosition, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	pos, err := s.repo.GetPosition(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	if pos == nil {
		pos = &domain.PaperPosition{
			Asset:     asset,
			CreatedAt: at,
		}
	}

	pos.TotalCost += price * quantity
	pos.Quantity += quantity
	pos.AvgEntryPrice = pos.TotalCost / pos.Quantity
	pos.UpdatedAt = at

	if err := s.repo.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}

	trade := domain.PaperTrade{
		Side:       domain.TradeSideBuy,
		Asset:      asset,
		Quantity:   quantity,
		Price:      price,
		ExecutedAt: at,
	}
	if err := s.repo.AppendTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to record trade: %w", err)
	}

	s.log.Info().
		Str("asset", asset).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("avg_entry", pos.AvgEntryPrice).
		Msg("Buy folded into cost basis")

	return pos, nil
}

// RecordSell reduces the asset's position at its fixed average entry price
// and returns the realized P&L against that average. The returned position
// is nil when the sell fully closes it.
func (s *LedgerService) RecordSell(ctx context.Context, asset string, quantity, price float64, at time.Time) (*domain.PaperPosition, float64, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	pos, err := s.repo.GetPosition(ctx, asset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load position: %w", err)
	}
	if pos == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoPosition, asset)
	}
	if quantity > pos.Quantity+domain.QuantityTolerance {
		return nil, 0, fmt.Errorf("%w: %s holds %.6f, sell wants %.6f",
			ErrInsufficientQuantity, asset, pos.Quantity, quantity)
	}

	pnl := (price - pos.AvgEntryPrice) * quantity

	trade := domain.PaperTrade{
		Side:        domain.TradeSideSell,
		Asset:       asset,
		Quantity:    quantity,
		Price:       price,
		RealizedPnL: &pnl,
		ExecutedAt:  at,
	}

	if pos.Quantity-quantity <= domain.QuantityTolerance {
		if err := s.repo.DeletePosition(ctx, asset); err != nil {
			return nil, 0, fmt.Errorf("failed to delete closed position: %w", err)
		}
		if err := s.repo.AppendTrade(ctx, trade); err != nil {
			return nil, 0, fmt.Errorf("failed to record trade: %w", err)
		}

		s.log.Info().
			Str("asset", asset).
			Float64("pnl", pnl).
			Msg("Position fully closed")

		return nil, pnl, nil
	}

	// Average stays fixed on the way out, cost shrinks with quantity
	pos.Quantity -= quantity
	pos.TotalCost = pos.AvgEntryPrice * pos.Quantity
	pos.UpdatedAt = at

	if err := s.repo.SavePosition(ctx, pos); err != nil {
		return nil, 0, fmt.Errorf("failed to save position: %w", err)
	}
	if err := s.repo.AppendTrade(ctx, trade); err != nil {
		return nil, 0, fmt.Errorf("failed to record trade: %w", err)
	}

	s.log.Info().
		Str("asset", asset).
		Float64("remaining", pos.Quantity).
		Float64("pnl", pnl).
		Msg("Position reduced")

	return pos, pnl, nil
}

// AverageEntryPrice returns the asset's average entry price and whether a
// position is held
func (s *LedgerService) AverageEntryPrice(ctx context.Context, asset string) (float64, bool, error) {
	pos, err := s.repo.GetPosition(ctx, asset)
	if err != nil {
		return 0, false, err
	}
	if pos == nil {
		return 0, false, nil
	}
	return pos.AvgEntryPrice, true, nil
}

// Position returns the asset's cost-basis position, or nil if none is held
func (s *LedgerService) Position(ctx context.Context, asset string) (*domain.PaperPosition, error) {
	return s.repo.GetPosition(ctx, asset)
}

// Positions returns every held position
func (s *LedgerService) Positions(ctx context.Context) ([]*domain.PaperPosition, error) {
	return s.repo.GetAllPositions(ctx)
}

// TradeHistory returns the most recent paper trades, newest first
func (s *LedgerService) TradeHistory(ctx context.Context, limit int) ([]domain.PaperTrade, error) {
	return s.repo.GetTradeHistory(ctx, limit)
}

// ClearAll wipes positions, trade history, and the balance
func (s *LedgerService) ClearAll(ctx context.Context) error {
	return s.repo.ClearAll(ctx)
}
