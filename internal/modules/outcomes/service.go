package outcomes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// ExitResult describes the effect of matching one sell fill against open lots
type ExitResult struct {
	// Touched holds every lot this fill consumed from, in match order,
	// including lots left partially open
	Touched []*domain.TradeOutcome `json:"touched"`
	// Closed holds the lots this fill fully closed, in match order
	Closed []*domain.TradeOutcome `json:"closed"`
	// MatchedQuantity is how much of the fill found open lots to consume
	MatchedQuantity float64 `json:"matched_quantity"`
	// RealizedPnL is the total P&L realized by this fill across all slices
	RealizedPnL float64 `json:"realized_pnl"`
}

// Service owns lot lifecycle: entries open lots, exits consume them FIFO
type Service struct {
	repo Repository
	log  zerolog.Logger
}

// NewService creates an outcome service
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "outcomes").Logger(),
	}
}

// RecordEntry opens a new lot from a buy fill
func (s *Service) RecordEntry(ctx context.Context, fill domain.Fill) (*domain.TradeOutcome, error) {
	o := domain.NewTradeOutcome(fill.Symbol, fill.Asset, fill.Price, fill.Quantity, fill.ExecutedAt, fill.Rationale)

	if err := s.repo.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to record entry: %w", err)
	}

	return o, nil
}

// RecordExit matches a sell fill against the asset's open lots oldest first.
// Each matched slice realizes P&L against that lot's own entry price. When
// the fill exceeds what is open, the surplus is logged and dropped rather
// than failing the whole fill.
func (s *Service) RecordExit(ctx context.Context, fill domain.Fill) (*ExitResult, error) {
	asset := strings.ToUpper(strings.TrimSpace(fill.Asset))

	lots, err := s.repo.GetOpen(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load open lots: %w", err)
	}

	if len(lots) == 0 {
		s.log.Warn().
			Str("asset", asset).
			Float64("quantity", fill.Quantity).
			Msg("Sell fill with no open lots, nothing to match")
		return &ExitResult{}, nil
	}

	result := &ExitResult{}
	remaining := fill.Quantity

	for _, lot := range lots {
		if remaining <= domain.QuantityTolerance {
			break
		}

		qty := remaining
		if lot.RemainingQuantity < qty {
			qty = lot.RemainingQuantity
		}

		slicePnL := lot.RecordExit(fill.Price, qty, fill.ExecutedAt, fill.Rationale)
		if err := s.repo.Update(ctx, lot); err != nil {
			return nil, fmt.Errorf("failed to persist lot %s: %w", lot.ID, err)
		}

		result.MatchedQuantity += qty
		result.RealizedPnL += slicePnL
		result.Touched = append(result.Touched, lot)
		if lot.Status == domain.OutcomeClosed {
			result.Closed = append(result.Closed, lot)
		}
		remaining -= qty

		s.log.Debug().
			Str("outcome_id", lot.ID).
			Str("asset", asset).
			Float64("matched", qty).
			Float64("slice_pnl", slicePnL).
			Str("status", string(lot.Status)).
			Msg("Matched exit slice")
	}

	if remaining > domain.QuantityTolerance {
		s.log.Warn().
			Str("asset", asset).
			Float64("unmatched", remaining).
			Msg("Sell fill exceeded open lot quantity, surplus dropped")
	}

	s.log.Info().
		Str("asset", asset).
		Float64("matched", result.MatchedQuantity).
		Float64("realized_pnl", result.RealizedPnL).
		Int("lots_closed", len(result.Closed)).
		Msg("Exit recorded")

	return result, nil
}

// OpenEntries returns the asset's open and partial lots, oldest first
func (s *Service) OpenEntries(ctx context.Context, asset string) ([]*domain.TradeOutcome, error) {
	return s.repo.GetOpen(ctx, asset)
}

// AllOpenEntries returns open and partial lots across all assets
func (s *Service) AllOpenEntries(ctx context.Context) ([]*domain.TradeOutcome, error) {
	return s.repo.GetAllOpen(ctx)
}

// RecentOutcomes returns the asset's most recently closed lots
func (s *Service) RecentOutcomes(ctx context.Context, asset string, limit int) ([]*domain.TradeOutcome, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.GetRecentClosed(ctx, asset, limit)
}

// ClosedByExitTime returns every closed lot ordered by exit time ascending
func (s *Service) ClosedByExitTime(ctx context.Context) ([]*domain.TradeOutcome, error) {
	return s.repo.GetAllClosedByExitTime(ctx)
}
