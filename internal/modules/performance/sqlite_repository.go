package performance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// SQLiteRepository stores aggregates in the local ledger database
type SQLiteRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

const performanceColumns = `asset, symbol, total_trades, winning_trades, losing_trades,
	total_realized_pnl, best_trade_pnl, worst_trade_pnl, avg_holding_hours`

// NewSQLiteRepository creates a performance repository backed by the ledger DB
func NewSQLiteRepository(ledgerDB *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "performance").Logger(),
	}
}

// GetPerformance returns the asset's record, or nil if none exists
func (r *SQLiteRepository) GetPerformance(ctx context.Context, asset string) (*domain.PositionPerformance, error) {
	query := "SELECT " + performanceColumns + " FROM position_performance WHERE asset = ?"

	row := r.ledgerDB.QueryRowContext(ctx, query, strings.ToUpper(asset))
	p, err := scanPerformance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get performance: %w", err)
	}

	return p, nil
}

// GetAllPerformance returns every asset record, alphabetical by asset
func (r *SQLiteRepository) GetAllPerformance(ctx context.Context) ([]*domain.PositionPerformance, error) {
	query := "SELECT " + performanceColumns + " FROM position_performance ORDER BY asset ASC"

	rows, err := r.ledgerDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance records: %w", err)
	}
	defer rows.Close()

	var results []*domain.PositionPerformance
	for rows.Next() {
		p, err := scanPerformance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance record: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance records: %w", err)
	}

	return results, nil
}

// SavePerformance upserts an asset record
func (r *SQLiteRepository) SavePerformance(ctx context.Context, p *domain.PositionPerformance) error {
	query := `
		INSERT OR REPLACE INTO position_performance
		(asset, symbol, total_trades, winning_trades, losing_trades,
		 total_realized_pnl, best_trade_pnl, worst_trade_pnl, avg_holding_hours, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.ledgerDB.ExecContext(ctx, query,
		strings.ToUpper(p.Asset),
		p.Symbol,
		p.TotalTrades,
		p.WinningTrades,
		p.LosingTrades,
		p.TotalRealizedPnL,
		p.BestTradePnL,
		p.WorstTradePnL,
		p.AvgHoldingHours,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save performance: %w", err)
	}

	return nil
}

// GetStats returns the portfolio singleton, zero-valued if never saved
func (r *SQLiteRepository) GetStats(ctx context.Context) (*domain.PortfolioStats, error) {
	query := `
		SELECT total_trades, winning_trades, losing_trades,
		       total_realized_pnl, largest_win, largest_loss,
		       current_streak, max_winning_streak, max_losing_streak,
		       unique_assets, first_trade_at, last_trade_at
		FROM portfolio_stats WHERE id = 1
	`

	var s domain.PortfolioStats
	var firstAt, lastAt sql.NullInt64

	err := r.ledgerDB.QueryRowContext(ctx, query).Scan(
		&s.TotalTrades,
		&s.WinningTrades,
		&s.LosingTrades,
		&s.TotalRealizedPnL,
		&s.LargestWin,
		&s.LargestLoss,
		&s.CurrentStreak,
		&s.MaxWinningStreak,
		&s.MaxLosingStreak,
		&s.UniqueAssets,
		&firstAt,
		&lastAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.PortfolioStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio stats: %w", err)
	}

	if firstAt.Valid {
		t := time.Unix(firstAt.Int64, 0).UTC()
		s.FirstTradeAt = &t
	}
	if lastAt.Valid {
		t := time.Unix(lastAt.Int64, 0).UTC()
		s.LastTradeAt = &t
	}

	return &s, nil
}

// SaveStats upserts the portfolio singleton
func (r *SQLiteRepository) SaveStats(ctx context.Context, s *domain.PortfolioStats) error {
	query := `
		INSERT OR REPLACE INTO portfolio_stats
		(id, total_trades, winning_trades, losing_trades,
		 total_realized_pnl, largest_win, largest_loss,
		 current_streak, max_winning_streak, max_losing_streak,
		 unique_assets, first_trade_at, last_trade_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var firstAt, lastAt sql.NullInt64
	if s.FirstTradeAt != nil {
		firstAt = sql.NullInt64{Int64: s.FirstTradeAt.Unix(), Valid: true}
	}
	if s.LastTradeAt != nil {
		lastAt = sql.NullInt64{Int64: s.LastTradeAt.Unix(), Valid: true}
	}

	_, err := r.ledgerDB.ExecContext(ctx, query,
		s.TotalTrades,
		s.WinningTrades,
		s.LosingTrades,
		s.TotalRealizedPnL,
		s.LargestWin,
		s.LargestLoss,
		s.CurrentStreak,
		s.MaxWinningStreak,
		s.MaxLosingStreak,
		s.UniqueAssets,
		firstAt,
		lastAt,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio stats: %w", err)
	}

	return nil
}

// Reset deletes all performance records and the stats singleton
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	if _, err := r.ledgerDB.ExecContext(ctx, "DELETE FROM position_performance"); err != nil {
		return fmt.Errorf("failed to reset performance records: %w", err)
	}
	if _, err := r.ledgerDB.ExecContext(ctx, "DELETE FROM portfolio_stats"); err != nil {
		return fmt.Errorf("failed to reset portfolio stats: %w", err)
	}

	r.log.Info().Msg("Performance aggregates reset")
	return nil
}

func scanPerformance(scan func(dest ...any) error) (*domain.PositionPerformance, error) {
	var p domain.PositionPerformance
	var symbol sql.NullString

	err := scan(
		&p.Asset,
		&symbol,
		&p.TotalTrades,
		&p.WinningTrades,
		&p.LosingTrades,
		&p.TotalRealizedPnL,
		&p.BestTradePnL,
		&p.WorstTradePnL,
		&p.AvgHoldingHours,
	)
	if err != nil {
		return nil, err
	}

	if symbol.Valid {
		p.Symbol = symbol.String
	}

	return &p, nil
}
