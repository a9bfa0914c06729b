package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFillValidate(t *testing.T) {
	base := Fill{
		Symbol:     "BTCUSDT",
		Asset:      "BTC",
		Side:       TradeSideBuy,
		Price:      50000,
		Quantity:   0.5,
		ExecutedAt: time.Now(),
	}
	assert.NoError(t, base.Validate())

	missing := base
	missing.Asset = "  "
	assert.Error(t, missing.Validate())

	badSide := base
	badSide.Side = "HOLD"
	assert.Error(t, badSide.Validate())

	zeroQty := base
	zeroQty.Quantity = 0
	assert.Error(t, zeroQty.Validate())

	negPrice := base
	negPrice.Price = -1
	assert.Error(t, negPrice.Validate())
}

func TestNewTradeOutcome(t *testing.T) {
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o := NewTradeOutcome("ethusdt", "eth", 3000, 2.0, at, "momentum entry")

	assert.Len(t, o.ID, 8)
	assert.Equal(t, "ETHUSDT", o.Symbol)
	assert.Equal(t, "ETH", o.Asset)
	assert.Equal(t, OutcomeOpen, o.Status)
	assert.Equal(t, 2.0, o.RemainingQuantity)
	assert.Equal(t, 6000.0, o.EntryValue())
}

func TestRecordExitFullClose(t *testing.T) {
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o := NewTradeOutcome("BTCUSDT", "BTC", 100, 1.0, at, "")

	pnl := o.RecordExit(110, 1.0, at.Add(5*time.Hour), "take profit")

	assert.InDelta(t, 10.0, pnl, 1e-9)
	assert.Equal(t, OutcomeClosed, o.Status)
	assert.Equal(t, 0.0, o.RemainingQuantity)
	assert.InDelta(t, 10.0, o.RealizedPnL, 1e-9)
	assert.InDelta(t, 10.0, o.RealizedPnLPct, 1e-9)
	assert.InDelta(t, 5.0, o.HoldingHours, 1e-9)
	assert.True(t, o.IsWinner())
}

func TestRecordExitPartialThenClose(t *testing.T) {
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o := NewTradeOutcome("BTCUSDT", "BTC", 100, 10, at, "")

	first := o.RecordExit(101, 5, at.Add(time.Hour), "")
	assert.InDelta(t, 5.0, first, 1e-9)
	assert.Equal(t, OutcomePartial, o.Status)
	assert.InDelta(t, 5.0, o.RemainingQuantity, 1e-9)

	second := o.RecordExit(101, 4, at.Add(2*time.Hour), "")
	assert.InDelta(t, 4.0, second, 1e-9)
	assert.Equal(t, OutcomePartial, o.Status)
	assert.InDelta(t, 1.0, o.RemainingQuantity, 1e-9)
	assert.InDelta(t, 9.0, o.RealizedPnL, 1e-9)
	// Weighted over 9 units exited at +1 each against a 100 entry
	assert.InDelta(t, 1.0, o.RealizedPnLPct, 1e-9)

	third := o.RecordExit(101, 1, at.Add(3*time.Hour), "")
	assert.InDelta(t, 1.0, third, 1e-9)
	assert.Equal(t, OutcomeClosed, o.Status)
	assert.InDelta(t, 10.0, o.RealizedPnL, 1e-9)
}

func TestRecordExitToleranceCloses(t *testing.T) {
	at := time.Now()
	o := NewTradeOutcome("SOLUSDT", "SOL", 150, 1.0, at, "")

	// Leaves 0.0005, below the quantity tolerance
	o.RecordExit(155, 0.9995, at.Add(time.Hour), "")
	assert.Equal(t, OutcomeClosed, o.Status)
	assert.Equal(t, 0.0, o.RemainingQuantity)
}

func TestZeroPnLIsNotWinner(t *testing.T) {
	at := time.Now()
	o := NewTradeOutcome("BTCUSDT", "BTC", 100, 1, at, "")
	o.RecordExit(100, 1, at.Add(time.Hour), "")

	assert.False(t, o.IsWinner())
}

func TestPositionPerformanceApplyOutcome(t *testing.T) {
	perf := &PositionPerformance{Asset: "BTC", Symbol: "BTCUSDT"}
	at := time.Now()

	win := NewTradeOutcome("BTCUSDT", "BTC", 100, 1, at, "")
	win.RecordExit(120, 1, at.Add(2*time.Hour), "")
	perf.ApplyOutcome(win)

	loss := NewTradeOutcome("BTCUSDT", "BTC", 100, 1, at, "")
	loss.RecordExit(95, 1, at.Add(4*time.Hour), "")
	perf.ApplyOutcome(loss)

	assert.Equal(t, 2, perf.TotalTrades)
	assert.Equal(t, 1, perf.WinningTrades)
	assert.Equal(t, 1, perf.LosingTrades)
	assert.InDelta(t, 15.0, perf.TotalRealizedPnL, 1e-9)
	assert.InDelta(t, 20.0, perf.BestTradePnL, 1e-9)
	assert.InDelta(t, -5.0, perf.WorstTradePnL, 1e-9)
	assert.InDelta(t, 3.0, perf.AvgHoldingHours, 1e-9)
	assert.InDelta(t, 50.0, perf.WinRate(), 1e-9)
	assert.InDelta(t, 7.5, perf.AvgPnLPerTrade(), 1e-9)
}

func TestPositionPerformanceIgnoresOpenLots(t *testing.T) {
	perf := &PositionPerformance{Asset: "ETH"}
	open := NewTradeOutcome("ETHUSDT", "ETH", 3000, 1, time.Now(), "")

	perf.ApplyOutcome(open)

	assert.Equal(t, 0, perf.TotalTrades)
}

func closedOutcome(t *testing.T, pnl float64) *TradeOutcome {
	t.Helper()
	at := time.Now()
	o := NewTradeOutcome("BTCUSDT", "BTC", 100, 1, at, "")
	o.RecordExit(100+pnl, 1, at.Add(time.Hour), "")
	return o
}

func TestPortfolioStatsStreaks(t *testing.T) {
	stats := &PortfolioStats{}

	// win, win, loss, loss, loss, win
	for _, pnl := range []float64{5, 3, -2, -1, -4, 6} {
		stats.ApplyOutcome(closedOutcome(t, pnl))
	}

	assert.Equal(t, 6, stats.TotalTrades)
	assert.Equal(t, 3, stats.WinningTrades)
	assert.Equal(t, 3, stats.LosingTrades)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 2, stats.MaxWinningStreak)
	assert.Equal(t, 3, stats.MaxLosingStreak)
	assert.InDelta(t, 6.0, stats.LargestWin, 1e-9)
	assert.InDelta(t, -4.0, stats.LargestLoss, 1e-9)
	assert.InDelta(t, 7.0, stats.TotalRealizedPnL, 1e-9)
	assert.NotNil(t, stats.FirstTradeAt)
	assert.NotNil(t, stats.LastTradeAt)
}

func TestPortfolioStatsZeroPnLCountsAsLoss(t *testing.T) {
	stats := &PortfolioStats{CurrentStreak: 2}

	stats.ApplyOutcome(closedOutcome(t, 0))

	assert.Equal(t, 1, stats.LosingTrades)
	assert.Equal(t, -1, stats.CurrentStreak)
}
