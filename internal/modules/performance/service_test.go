package performance

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE position_performance (
			asset TEXT PRIMARY KEY,
			symbol TEXT,
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			total_realized_pnl REAL NOT NULL DEFAULT 0,
			best_trade_pnl REAL NOT NULL DEFAULT 0,
			worst_trade_pnl REAL NOT NULL DEFAULT 0,
			avg_holding_hours REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE portfolio_stats (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			total_realized_pnl REAL NOT NULL DEFAULT 0,
			largest_win REAL NOT NULL DEFAULT 0,
			largest_loss REAL NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			max_winning_streak INTEGER NOT NULL DEFAULT 0,
			max_losing_streak INTEGER NOT NULL DEFAULT 0,
			unique_assets INTEGER NOT NULL DEFAULT 0,
			first_trade_at INTEGER,
			last_trade_at INTEGER,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func setupService(t *testing.T) *Service {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewService(NewSQLiteRepository(setupTestDB(t), log), log)
}

func closedLot(t *testing.T, asset string, pnl float64, exitAt time.Time) *domain.TradeOutcome {
	t.Helper()
	o := domain.NewTradeOutcome(asset+"USDT", asset, 100, 1, exitAt.Add(-2*time.Hour), "")
	o.RecordExit(100+pnl, 1, exitAt, "")
	return o
}

func TestOnOutcomeClosedCreatesAndUpdates(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, svc.OnOutcomeClosed(ctx, closedLot(t, "BTC", 10, at)))
	require.NoError(t, svc.OnOutcomeClosed(ctx, closedLot(t, "BTC", -4, at.Add(time.Hour))))

	perf, err := svc.Performance(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, perf)
	assert.Equal(t, 2, perf.TotalTrades)
	assert.Equal(t, 1, perf.WinningTrades)
	assert.Equal(t, 1, perf.LosingTrades)
	assert.InDelta(t, 6.0, perf.TotalRealizedPnL, 1e-9)
	assert.InDelta(t, 10.0, perf.BestTradePnL, 1e-9)
	assert.InDelta(t, -4.0, perf.WorstTradePnL, 1e-9)
	assert.InDelta(t, 2.0, perf.AvgHoldingHours, 1e-9)
}

func TestOnOutcomeClosedIgnoresOpenLot(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	open := domain.NewTradeOutcome("BTCUSDT", "BTC", 100, 1, time.Now(), "")
	require.NoError(t, svc.OnOutcomeClosed(ctx, open))

	perf, err := svc.Performance(ctx, "BTC")
	require.NoError(t, err)
	assert.Nil(t, perf)
}

func TestStatsTrackUniqueAssetsAndStreaks(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, svc.OnOutcomeClosed(ctx, closedLot(t, "BTC", 5, at)))
	require.NoError(t, svc.OnOutcomeClosed(ctx, closedLot(t, "ETH", 3, at.Add(time.Hour))))
	require.NoError(t, svc.OnOutcomeClosed(ctx, closedLot(t, "BTC", -2, at.Add(2*time.Hour))))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.UniqueAssets)
	assert.Equal(t, -1, stats.CurrentStreak)
	assert.Equal(t, 2, stats.MaxWinningStreak)
	assert.Equal(t, 1, stats.MaxLosingStreak)
	require.NotNil(t, stats.FirstTradeAt)
	require.NotNil(t, stats.LastTradeAt)
	assert.Equal(t, at.Unix(), stats.FirstTradeAt.Unix())
	assert.Equal(t, at.Add(2*time.Hour).Unix(), stats.LastTradeAt.Unix())
}

func TestRebuildAllMatchesIncremental(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	lots := []*domain.TradeOutcome{
		closedLot(t, "BTC", 5, at),
		closedLot(t, "ETH", -3, at.Add(time.Hour)),
		closedLot(t, "BTC", 8, at.Add(2*time.Hour)),
		closedLot(t, "SOL", -1, at.Add(3*time.Hour)),
	}

	for _, o := range lots {
		require.NoError(t, svc.OnOutcomeClosed(ctx, o))
	}
	incremental, err := svc.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.RebuildAll(ctx, lots))
	rebuilt, err := svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, incremental.TotalTrades, rebuilt.TotalTrades)
	assert.Equal(t, incremental.WinningTrades, rebuilt.WinningTrades)
	assert.Equal(t, incremental.CurrentStreak, rebuilt.CurrentStreak)
	assert.Equal(t, incremental.MaxWinningStreak, rebuilt.MaxWinningStreak)
	assert.Equal(t, incremental.MaxLosingStreak, rebuilt.MaxLosingStreak)
	assert.Equal(t, incremental.UniqueAssets, rebuilt.UniqueAssets)
	assert.InDelta(t, incremental.TotalRealizedPnL, rebuilt.TotalRealizedPnL, 1e-9)

	perf, err := svc.Performance(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, perf)
	assert.Equal(t, 2, perf.TotalTrades)
	assert.InDelta(t, 13.0, perf.TotalRealizedPnL, 1e-9)
}

func TestPnLDistribution(t *testing.T) {
	at := time.Now()
	lots := []*domain.TradeOutcome{
		closedLot(t, "BTC", 10, at),
		closedLot(t, "BTC", -2, at),
		closedLot(t, "BTC", 4, at),
		domain.NewTradeOutcome("ETHUSDT", "ETH", 100, 1, at, ""), // open, skipped
	}

	d := PnLDistribution(lots)
	assert.Equal(t, 3, d.Count)
	assert.InDelta(t, 4.0, d.Mean, 1e-9)
	assert.InDelta(t, -2.0, d.Min, 1e-9)
	assert.InDelta(t, 10.0, d.Max, 1e-9)
	assert.Greater(t, d.StdDev, 0.0)
}

func TestPnLDistributionEmpty(t *testing.T) {
	d := PnLDistribution(nil)
	assert.Equal(t, 0, d.Count)
	assert.Equal(t, 0.0, d.Mean)
}
