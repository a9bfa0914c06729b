package tracking

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnnyx/lumina-capital/internal/domain"
	"github.com/vnnyx/lumina-capital/internal/modules/outcomes"
	"github.com/vnnyx/lumina-capital/internal/modules/paper"
	"github.com/vnnyx/lumina-capital/internal/modules/performance"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE outcomes (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			asset TEXT NOT NULL,
			entry_price REAL NOT NULL,
			entry_quantity REAL NOT NULL,
			entry_at INTEGER NOT NULL,
			entry_rationale TEXT,
			exit_price REAL,
			exit_quantity REAL,
			exit_at INTEGER,
			exit_rationale TEXT,
			realized_pnl REAL NOT NULL DEFAULT 0,
			realized_pnl_pct REAL NOT NULL DEFAULT 0,
			holding_hours REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'open',
			remaining_quantity REAL NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
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
		CREATE TABLE paper_positions (
			asset TEXT PRIMARY KEY,
			quantity REAL NOT NULL CHECK (quantity > 0),
			avg_entry_price REAL NOT NULL,
			total_cost REAL NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE paper_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			side TEXT NOT NULL,
			asset TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			realized_pnl REAL,
			executed_at INTEGER NOT NULL
		);
		CREATE TABLE paper_balance (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			initial_balance REAL NOT NULL,
			current_balance REAL NOT NULL,
			last_known_real_balance REAL NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

type fixture struct {
	tracking *Service
	balance  *paper.BalanceService
	perf     *performance.Service
	ledger   *paper.LedgerService
}

func setupFixture(t *testing.T, rehearsal bool) *fixture {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	db := setupTestDB(t)

	outcomeSvc := outcomes.NewService(outcomes.NewSQLiteRepository(db, log), log)
	perfSvc := performance.NewService(performance.NewSQLiteRepository(db, log), log)
	paperRepo := paper.NewSQLiteRepository(db, log)
	ledgerSvc := paper.NewLedgerService(paperRepo, log)
	balanceSvc := paper.NewBalanceService(paperRepo, log)
	cache := NewSnapshotCache(filepath.Join(t.TempDir(), "snapshot.msgpack"), time.Minute, log)

	return &fixture{
		tracking: NewService(outcomeSvc, perfSvc, ledgerSvc, balanceSvc, cache, rehearsal, log),
		balance:  balanceSvc,
		perf:     perfSvc,
		ledger:   ledgerSvc,
	}
}

func fill(side domain.TradeSide, asset string, price, qty float64, at time.Time) domain.Fill {
	return domain.Fill{
		Symbol:     asset + "USDT",
		Asset:      asset,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		ExecutedAt: at,
	}
}

func TestApplyFillBuyThenSell(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	buyResult, err := f.tracking.ApplyFill(ctx, fill(domain.TradeSideBuy, "BTC", 100, 2, at))
	require.NoError(t, err)
	require.NotNil(t, buyResult.Entry)
	assert.Equal(t, domain.OutcomeOpen, buyResult.Entry.Status)

	sellResult, err := f.tracking.ApplyFill(ctx, fill(domain.TradeSideSell, "BTC", 110, 2, at.Add(3*time.Hour)))
	require.NoError(t, err)
	require.NotNil(t, sellResult.Exit)
	assert.InDelta(t, 20.0, sellResult.Exit.RealizedPnL, 1e-9)
	require.Len(t, sellResult.Exit.Closed, 1)
	require.NotNil(t, sellResult.LedgerPnL)
	assert.InDelta(t, 20.0, *sellResult.LedgerPnL, 1e-9)

	stats, err := f.perf.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 1, stats.UniqueAssets)

	pos, err := f.ledger.Position(ctx, "BTC")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestApplyFillRejectsInvalid(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()

	_, err := f.tracking.ApplyFill(ctx, domain.Fill{Asset: "BTC", Side: "HOLD", Quantity: 1})
	assert.Error(t, err)
}

func TestApplyFillRehearsalBalanceFlows(t *testing.T) {
	f := setupFixture(t, true)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	_, err := f.balance.Initialize(ctx, 1000)
	require.NoError(t, err)

	_, err = f.tracking.ApplyFill(ctx, fill(domain.TradeSideBuy, "BTC", 100, 2, at))
	require.NoError(t, err)

	b, err := f.balance.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, b.CurrentBalance, 1e-9)

	_, err = f.tracking.ApplyFill(ctx, fill(domain.TradeSideSell, "BTC", 110, 2, at.Add(time.Hour)))
	require.NoError(t, err)

	b, err = f.balance.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1020.0, b.CurrentBalance, 1e-9)
}

func TestApplyFillSellWithoutPositionStillTracksLots(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()
	at := time.Now()

	// No buy happened: lot matching finds nothing, ledger warns, no error
	result, err := f.tracking.ApplyFill(ctx, fill(domain.TradeSideSell, "BTC", 100, 1, at))
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Exit.MatchedQuantity)
	assert.Nil(t, result.LedgerPnL)
}

func TestSnapshotCachingAndInvalidation(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	_, err := f.tracking.ApplyFill(ctx, fill(domain.TradeSideBuy, "BTC", 100, 1, at))
	require.NoError(t, err)

	first, err := f.tracking.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, first.OpenLots, 1)

	// Second call within TTL serves the cached copy
	second, err := f.tracking.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())

	// A new fill invalidates the cache
	_, err = f.tracking.ApplyFill(ctx, fill(domain.TradeSideBuy, "ETH", 10, 1, at.Add(time.Minute)))
	require.NoError(t, err)

	third, err := f.tracking.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, third.OpenLots, 2)
}

func TestRebuildAllRestoresAggregates(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, pnl := range []float64{10, -5, 3} {
		entryAt := at.Add(time.Duration(i) * time.Hour)
		_, err := f.tracking.ApplyFill(ctx, fill(domain.TradeSideBuy, "BTC", 100, 1, entryAt))
		require.NoError(t, err)
		_, err = f.tracking.ApplyFill(ctx, fill(domain.TradeSideSell, "BTC", 100+pnl, 1, entryAt.Add(30*time.Minute)))
		require.NoError(t, err)
	}

	before, err := f.perf.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, f.tracking.RebuildAll(ctx))

	after, err := f.perf.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalTrades, after.TotalTrades)
	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)
	assert.InDelta(t, before.TotalRealizedPnL, after.TotalRealizedPnL, 1e-9)
	assert.Equal(t, before.UniqueAssets, after.UniqueAssets)
}
