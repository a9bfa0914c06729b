package paper

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
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
			side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
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

func setupRepo(t *testing.T) Repository {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewSQLiteRepository(setupTestDB(t), log)
}

func TestRecordBuyBlendsAverage(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	pos, err := svc.RecordBuy(ctx, "btc", 1, 100, at)
	require.NoError(t, err)
	assert.Equal(t, "BTC", pos.Asset)
	assert.InDelta(t, 100.0, pos.AvgEntryPrice, 1e-9)

	pos, err = svc.RecordBuy(ctx, "BTC", 1, 200, at.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 150.0, pos.AvgEntryPrice, 1e-9)
	assert.InDelta(t, 300.0, pos.TotalCost, 1e-9)
}

func TestRecordSellKeepsAverageFixed(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()
	at := time.Now()

	_, err := svc.RecordBuy(ctx, "BTC", 2, 150, at)
	require.NoError(t, err)

	pos, pnl, err := svc.RecordSell(ctx, "BTC", 1, 180, at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 30.0, pnl, 1e-9)
	assert.InDelta(t, 1.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 150.0, pos.AvgEntryPrice, 1e-9)
	assert.InDelta(t, 150.0, pos.TotalCost, 1e-9)
}

func TestRecordSellFullCloseDeletesPosition(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()
	at := time.Now()

	_, err := svc.RecordBuy(ctx, "ETH", 1, 3000, at)
	require.NoError(t, err)

	pos, pnl, err := svc.RecordSell(ctx, "ETH", 1, 3100, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.InDelta(t, 100.0, pnl, 1e-9)

	held, err := svc.Position(ctx, "ETH")
	require.NoError(t, err)
	assert.Nil(t, held)
}

func TestRecordSellToleranceClosesDust(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()
	at := time.Now()

	_, err := svc.RecordBuy(ctx, "SOL", 1.0, 150, at)
	require.NoError(t, err)

	// Leaves 0.0005, below tolerance: position should be deleted
	pos, _, err := svc.RecordSell(ctx, "SOL", 0.9995, 160, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestRecordSellErrors(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()
	at := time.Now()

	_, _, err := svc.RecordSell(ctx, "BTC", 1, 100, at)
	assert.ErrorIs(t, err, ErrNoPosition)

	_, err = svc.RecordBuy(ctx, "BTC", 1, 100, at)
	require.NoError(t, err)

	_, _, err = svc.RecordSell(ctx, "BTC", 2, 100, at.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
}

func TestAverageEntryPrice(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewLedgerService(setupRepo(t), log)
	ctx := context.Background()

	_, held, err := svc.AverageEntryPrice(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = svc.RecordBuy(ctx, "BTC", 2, 125, time.Now())
	require.NoError(t, err)

	avg, held, err := svc.AverageEntryPrice(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, held)
	assert.InDelta(t, 125.0, avg, 1e-9)
}

func TestTradeHistoryNewestFirstAndPruned(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := setupRepo(t)
	svc := NewLedgerService(repo, log)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 105; i++ {
		_, err := svc.RecordBuy(ctx, "BTC", 0.01, float64(100+i), at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	history, err := svc.TradeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 100)
	// Newest first
	assert.InDelta(t, 204.0, history[0].Price, 1e-9)
	// Oldest five pruned
	assert.InDelta(t, 105.0, history[len(history)-1].Price, 1e-9)
}

func TestClearAll(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := setupRepo(t)
	svc := NewLedgerService(repo, log)
	bal := NewBalanceService(repo, log)
	ctx := context.Background()

	_, err := svc.RecordBuy(ctx, "BTC", 1, 100, time.Now())
	require.NoError(t, err)
	_, err = bal.Initialize(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, svc.ClearAll(ctx))

	positions, err := svc.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	b, err := bal.Balance(ctx)
	require.NoError(t, err)
	assert.Nil(t, b)
}
