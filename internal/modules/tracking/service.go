// Package tracking wires the accounting pipeline together: every executed
// fill flows through here into lots, aggregates, and the paper portfolio.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
	"github.com/vnnyx/lumina-capital/internal/modules/outcomes"
	"github.com/vnnyx/lumina-capital/internal/modules/paper"
	"github.com/vnnyx/lumina-capital/internal/modules/performance"
)

// FillResult reports what a single fill did to the books
type FillResult struct {
	Entry       *domain.TradeOutcome `json:"entry,omitempty"`
	Exit        *outcomes.ExitResult `json:"exit,omitempty"`
	LedgerPnL   *float64             `json:"ledger_pnl,omitempty"`
	AppliedAt   time.Time            `json:"applied_at"`
	RehearsalOn bool                 `json:"rehearsal"`
}

// DecisionSnapshot is the consolidated read model handed to the decision
// engine before it evaluates a trade
type DecisionSnapshot struct {
	GeneratedAt time.Time                        `json:"generated_at" msgpack:"generated_at"`
	Rehearsal   bool                             `json:"rehearsal" msgpack:"rehearsal"`
	Stats       *domain.PortfolioStats           `json:"stats" msgpack:"stats"`
	Performance []*domain.PositionPerformance    `json:"performance" msgpack:"performance"`
	OpenLots    []*domain.TradeOutcome           `json:"open_lots" msgpack:"open_lots"`
	Positions   []*domain.PaperPosition          `json:"positions" msgpack:"positions"`
	Balance     *domain.PaperBalance             `json:"balance,omitempty" msgpack:"balance"`
	PnL         performance.Distribution         `json:"pnl_distribution" msgpack:"pnl_distribution"`
	Summaries   []string                         `json:"summaries,omitempty" msgpack:"summaries"`
}

// Service serializes all fill processing behind one mutex. Throughput is
// bounded by the decision cycle, a few fills per minute at most.
type Service struct {
	mu sync.Mutex

	outcomes *outcomes.Service
	perf     *performance.Service
	ledger   *paper.LedgerService
	balance  *paper.BalanceService
	cache    *SnapshotCache

	rehearsal bool
	log       zerolog.Logger
}

// NewService creates the tracking service
func NewService(
	outcomeSvc *outcomes.Service,
	perfSvc *performance.Service,
	ledgerSvc *paper.LedgerService,
	balanceSvc *paper.BalanceService,
	cache *SnapshotCache,
	rehearsal bool,
	log zerolog.Logger,
) *Service {
	return &Service{
		outcomes:  outcomeSvc,
		perf:      perfSvc,
		ledger:    ledgerSvc,
		balance:   balanceSvc,
		cache:     cache,
		rehearsal: rehearsal,
		log:       log.With().Str("service", "tracking").Logger(),
	}
}

// ApplyFill runs one executed fill through the whole pipeline: lot
// accounting, aggregate updates for any lots it closes, the cost-basis
// ledger, and in rehearsal mode the simulated balance.
func (s *Service) ApplyFill(ctx context.Context, fill domain.Fill) (*FillResult, error) {
	if err := fill.Validate(); err != nil {
		return nil, fmt.Errorf("rejected fill: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &FillResult{
		AppliedAt:   fill.ExecutedAt,
		RehearsalOn: s.rehearsal,
	}

	var err error
	switch fill.Side {
	case domain.TradeSideBuy:
		err = s.applyBuy(ctx, fill, result)
	case domain.TradeSideSell:
		err = s.applySell(ctx, fill, result)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return result, nil
}

func (s *Service) applyBuy(ctx context.Context, fill domain.Fill, result *FillResult) error {
	entry, err := s.outcomes.RecordEntry(ctx, fill)
	if err != nil {
		return err
	}
	result.Entry = entry

	if _, err := s.ledger.RecordBuy(ctx, fill.Asset, fill.Quantity, fill.Price, fill.ExecutedAt); err != nil {
		return fmt.Errorf("cost basis update failed: %w", err)
	}

	if s.rehearsal {
		if err := s.balance.Debit(ctx, fill.Value()); err != nil {
			return fmt.Errorf("balance debit failed: %w", err)
		}
	}

	return nil
}

func (s *Service) applySell(ctx context.Context, fill domain.Fill, result *FillResult) error {
	exit, err := s.outcomes.RecordExit(ctx, fill)
	if err != nil {
		return err
	}
	result.Exit = exit

	for _, closed := range exit.Closed {
		if err := s.perf.OnOutcomeClosed(ctx, closed); err != nil {
			return fmt.Errorf("aggregate update failed: %w", err)
		}
	}

	_, ledgerPnL, err := s.ledger.RecordSell(ctx, fill.Asset, fill.Quantity, fill.Price, fill.ExecutedAt)
	switch {
	case errors.Is(err, paper.ErrNoPosition), errors.Is(err, paper.ErrInsufficientQuantity):
		// Lot accounting already happened; an out-of-sync cost basis is
		// logged rather than failing the fill
		s.log.Warn().Err(err).
			Str("asset", fill.Asset).
			Msg("Cost basis ledger rejected sell")
	case err != nil:
		return fmt.Errorf("cost basis update failed: %w", err)
	default:
		result.LedgerPnL = &ledgerPnL
	}

	if s.rehearsal {
		if err := s.balance.Credit(ctx, fill.Value()); err != nil {
			return fmt.Errorf("balance credit failed: %w", err)
		}
	}

	return nil
}

// RebuildAll replays every closed lot into fresh aggregates. Used after
// manual data edits or a suspected drift between lots and aggregates.
func (s *Service) RebuildAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed, err := s.outcomes.ClosedByExitTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to load closed lots: %w", err)
	}

	if err := s.perf.RebuildAll(ctx, closed); err != nil {
		return err
	}

	s.cache.Invalidate()
	return nil
}

// Snapshot assembles the decision read model, serving a cached copy when
// one is fresh
func (s *Service) Snapshot(ctx context.Context) (*DecisionSnapshot, error) {
	if cached, ok := s.cache.Load(); ok {
		return cached, nil
	}

	stats, err := s.perf.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio stats: %w", err)
	}

	allPerf, err := s.perf.AllPerformance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance records: %w", err)
	}

	openLots, err := s.outcomes.AllOpenEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open lots: %w", err)
	}

	positions, err := s.ledger.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	closed, err := s.outcomes.ClosedByExitTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load closed lots: %w", err)
	}

	snapshot := &DecisionSnapshot{
		GeneratedAt: time.Now().UTC(),
		Rehearsal:   s.rehearsal,
		Stats:       stats,
		Performance: allPerf,
		OpenLots:    openLots,
		Positions:   positions,
		PnL:         performance.PnLDistribution(closed),
	}

	if s.rehearsal {
		balance, err := s.balance.Balance(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load balance: %w", err)
		}
		snapshot.Balance = balance
	}

	snapshot.Summaries = append(snapshot.Summaries, stats.Summary())
	for _, p := range allPerf {
		snapshot.Summaries = append(snapshot.Summaries, p.Summary())
	}

	s.cache.Store(snapshot)
	return snapshot, nil
}
