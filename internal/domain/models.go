// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TradeSide represents the direction of a fill
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// QuantityTolerance is the floating-point slack used when comparing
// quantities. A remaining quantity at or below this is treated as zero.
const QuantityTolerance = 0.001

// Fill is the single inbound event driving the accounting engine: one
// executed trade reported by the order-execution collaborator.
type Fill struct {
	Symbol     string    `json:"symbol"` // Trading pair, e.g. BTCUSDT
	Asset      string    `json:"asset"`  // Base asset ticker, e.g. BTC
	Side       TradeSide `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	ExecutedAt time.Time `json:"executed_at"`
	Rationale  string    `json:"rationale"`
}

// Validate rejects fills that would violate accounting invariants
func (f Fill) Validate() error {
	if strings.TrimSpace(f.Asset) == "" {
		return fmt.Errorf("fill asset is required")
	}
	if f.Side != TradeSideBuy && f.Side != TradeSideSell {
		return fmt.Errorf("invalid fill side %q", f.Side)
	}
	if f.Quantity <= 0 {
		return fmt.Errorf("fill quantity must be positive, got %v", f.Quantity)
	}
	if f.Price < 0 {
		return fmt.Errorf("fill price must not be negative, got %v", f.Price)
	}
	return nil
}

// Value returns the notional value of the fill
func (f Fill) Value() float64 {
	return f.Price * f.Quantity
}

// OutcomeStatus is the lifecycle state of a trade outcome (lot)
type OutcomeStatus string

const (
	OutcomeOpen    OutcomeStatus = "open"    // Entry recorded, awaiting exit
	OutcomePartial OutcomeStatus = "partial" // Partially closed
	OutcomeClosed  OutcomeStatus = "closed"  // Fully closed, P&L final
)

// TradeOutcome tracks a single purchase lot from entry to exit with realized
// P&L. Sells are matched against the oldest open lots first (FIFO). A lot is
// never deleted, only transitioned to closed - it is the audit trail.
type TradeOutcome struct {
	ID     string `json:"outcome_id"`
	Symbol string `json:"symbol"`
	Asset  string `json:"asset"`

	EntryPrice     float64   `json:"entry_price"`
	EntryQuantity  float64   `json:"entry_quantity"`
	EntryAt        time.Time `json:"entry_at"`
	EntryRationale string    `json:"entry_rationale"`

	// Exit fields are populated once any matching has occurred. ExitPrice
	// and ExitAt reflect the most recent exit; ExitQuantity and
	// RealizedPnL accumulate across partial exits.
	ExitPrice      float64   `json:"exit_price,omitempty"`
	ExitQuantity   float64   `json:"exit_quantity,omitempty"`
	ExitAt         time.Time `json:"exit_at,omitempty"`
	ExitRationale  string    `json:"exit_rationale,omitempty"`
	RealizedPnL    float64   `json:"realized_pnl"`
	RealizedPnLPct float64   `json:"realized_pnl_pct"`
	HoldingHours   float64   `json:"holding_hours"`

	Status            OutcomeStatus `json:"status"`
	RemainingQuantity float64       `json:"remaining_quantity"`

	// CreatedAt breaks FIFO ties between lots sharing an entry second
	CreatedAt time.Time `json:"-"`
}

// NewOutcomeID returns a short opaque lot identifier
func NewOutcomeID() string {
	return uuid.NewString()[:8]
}

// NewTradeOutcome creates an open lot from an entry fill
func NewTradeOutcome(symbol, asset string, price, quantity float64, at time.Time, rationale string) *TradeOutcome {
	return &TradeOutcome{
		ID:                NewOutcomeID(),
		Symbol:            strings.ToUpper(strings.TrimSpace(symbol)),
		Asset:             strings.ToUpper(strings.TrimSpace(asset)),
		EntryPrice:        price,
		EntryQuantity:     quantity,
		EntryAt:           at,
		EntryRationale:    rationale,
		Status:            OutcomeOpen,
		RemainingQuantity: quantity,
		CreatedAt:         time.Now().UTC(),
	}
}

// RecordExit consumes quantity from the lot and updates realized P&L and
// status. Returns the P&L realized by this exit slice alone.
//
// RealizedPnL on the lot accumulates across partial exits so that a lot
// closed in several slices carries the cumulative figure into downstream
// aggregation. RealizedPnLPct is the quantity-weighted percentage over
// everything exited so far.
func (o *TradeOutcome) RecordExit(price, quantity float64, at time.Time, rationale string) float64 {
	slicePnL := (price - o.EntryPrice) * quantity

	o.ExitPrice = price
	o.ExitQuantity += quantity
	o.ExitAt = at
	o.ExitRationale = rationale
	o.RealizedPnL += slicePnL
	if o.EntryPrice > 0 && o.ExitQuantity > 0 {
		o.RealizedPnLPct = (o.RealizedPnL / (o.EntryPrice * o.ExitQuantity)) * 100
	}
	o.HoldingHours = at.Sub(o.EntryAt).Hours()

	o.RemainingQuantity -= quantity
	if o.RemainingQuantity <= QuantityTolerance {
		o.RemainingQuantity = 0
		o.Status = OutcomeClosed
	} else {
		o.Status = OutcomePartial
	}

	return slicePnL
}

// IsWinner reports whether the realized P&L is positive
func (o *TradeOutcome) IsWinner() bool {
	return o.RealizedPnL > 0
}

// EntryValue returns the total entry notional of the lot
func (o *TradeOutcome) EntryValue() float64 {
	return o.EntryPrice * o.EntryQuantity
}

// Summary returns a short human-readable line suitable for embedding in a
// decision-context prompt
func (o *TradeOutcome) Summary() string {
	if o.Status == OutcomeOpen {
		return fmt.Sprintf("%s: OPEN entry@%.4f qty=%.4f", o.Asset, o.EntryPrice, o.EntryQuantity)
	}

	result := "LOSS"
	if o.IsWinner() {
		result = "WIN"
	}
	return fmt.Sprintf("%s: %s %+.2f (%+.2f%%) held %.1fh",
		o.Asset, result, o.RealizedPnL, o.RealizedPnLPct, o.HoldingHours)
}

// PositionPerformance aggregates performance across all closed lots of a
// single asset. Updated incrementally, one closed lot at a time.
type PositionPerformance struct {
	Asset  string `json:"asset"`
	Symbol string `json:"symbol"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	TotalRealizedPnL float64 `json:"total_realized_pnl"`
	BestTradePnL     float64 `json:"best_trade_pnl"`
	WorstTradePnL    float64 `json:"worst_trade_pnl"`

	AvgHoldingHours float64 `json:"avg_holding_hours"`

	UpdatedAt time.Time `json:"updated_at"`
}

// WinRate returns the win rate as a percentage
func (p *PositionPerformance) WinRate() float64 {
	if p.TotalTrades == 0 {
		return 0
	}
	return float64(p.WinningTrades) / float64(p.TotalTrades) * 100
}

// AvgPnLPerTrade returns the average realized P&L per closed trade
func (p *PositionPerformance) AvgPnLPerTrade() float64 {
	if p.TotalTrades == 0 {
		return 0
	}
	return p.TotalRealizedPnL / float64(p.TotalTrades)
}

// ApplyOutcome folds a closed lot into the aggregate. Lots that are not
// closed are ignored.
func (p *PositionPerformance) ApplyOutcome(o *TradeOutcome) {
	if o.Status != OutcomeClosed {
		return
	}

	p.TotalTrades++
	if o.IsWinner() {
		p.WinningTrades++
	} else {
		p.LosingTrades++
	}

	p.TotalRealizedPnL += o.RealizedPnL
	if o.RealizedPnL > p.BestTradePnL {
		p.BestTradePnL = o.RealizedPnL
	}
	if o.RealizedPnL < p.WorstTradePnL {
		p.WorstTradePnL = o.RealizedPnL
	}

	// Incremental running average: new_avg = (old_avg*(n-1) + x) / n
	if o.HoldingHours > 0 {
		prevTotal := p.AvgHoldingHours * float64(p.TotalTrades-1)
		p.AvgHoldingHours = (prevTotal + o.HoldingHours) / float64(p.TotalTrades)
	}

	p.UpdatedAt = time.Now().UTC()
}

// Summary returns a one-line account of the asset's track record
func (p *PositionPerformance) Summary() string {
	return fmt.Sprintf("%s: %d trades, %.1f%% win rate, %+.2f total P&L",
		p.Asset, p.TotalTrades, p.WinRate(), p.TotalRealizedPnL)
}

// PortfolioStats is the singleton aggregate across all assets
type PortfolioStats struct {
	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	TotalRealizedPnL float64 `json:"total_realized_pnl"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`

	// CurrentStreak is signed: positive = run of wins, negative = run of losses
	CurrentStreak    int `json:"current_streak"`
	MaxWinningStreak int `json:"max_winning_streak"`
	MaxLosingStreak  int `json:"max_losing_streak"`

	UniqueAssets int `json:"unique_assets"`

	FirstTradeAt *time.Time `json:"first_trade_at,omitempty"`
	LastTradeAt  *time.Time `json:"last_trade_at,omitempty"`
}

// WinRate returns the overall win rate percentage
func (s *PortfolioStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

// ApplyOutcome folds a closed lot into the portfolio aggregate.
//
// Streak rule: a win extends a non-negative streak by one or resets a
// negative streak to +1; a loss extends a non-positive streak (more
// negative) or resets a positive streak to -1.
func (s *PortfolioStats) ApplyOutcome(o *TradeOutcome) {
	if o.Status != OutcomeClosed {
		return
	}

	s.TotalTrades++
	if o.IsWinner() {
		s.WinningTrades++
		if s.CurrentStreak >= 0 {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
		if s.CurrentStreak > s.MaxWinningStreak {
			s.MaxWinningStreak = s.CurrentStreak
		}
	} else {
		s.LosingTrades++
		if s.CurrentStreak <= 0 {
			s.CurrentStreak--
		} else {
			s.CurrentStreak = -1
		}
		if -s.CurrentStreak > s.MaxLosingStreak {
			s.MaxLosingStreak = -s.CurrentStreak
		}
	}

	s.TotalRealizedPnL += o.RealizedPnL
	if o.RealizedPnL > s.LargestWin {
		s.LargestWin = o.RealizedPnL
	}
	if o.RealizedPnL < s.LargestLoss {
		s.LargestLoss = o.RealizedPnL
	}

	if !o.ExitAt.IsZero() {
		exitAt := o.ExitAt
		if s.FirstTradeAt == nil {
			s.FirstTradeAt = &exitAt
		}
		s.LastTradeAt = &exitAt
	}
}

// Summary returns a one-line portfolio overview
func (s *PortfolioStats) Summary() string {
	return fmt.Sprintf("Portfolio: %d trades, %.1f%% win rate, %+.2f total P&L, current streak: %+d",
		s.TotalTrades, s.WinRate(), s.TotalRealizedPnL, s.CurrentStreak)
}

// PaperPosition is the weighted-average cost-basis view of one held asset.
// Unlike lots it is deleted when fully sold, not soft-closed.
type PaperPosition struct {
	Asset         string    `json:"asset"`
	Quantity      float64   `json:"quantity"`
	AvgEntryPrice float64   `json:"avg_entry_price"`
	TotalCost     float64   `json:"total_cost"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PaperTrade is one entry in the rehearsal-mode trade history ring
type PaperTrade struct {
	Side        TradeSide `json:"side"`
	Asset       string    `json:"asset"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"` // Sells only
	ExecutedAt  time.Time `json:"executed_at"`
}

// PaperBalance is the singleton simulated cash balance for rehearsal mode
type PaperBalance struct {
	InitialBalance       float64   `json:"initial_balance"`
	CurrentBalance       float64   `json:"current_balance"`
	LastKnownRealBalance float64   `json:"last_known_real_balance"`
	UpdatedAt            time.Time `json:"updated_at"`
}
