package paper

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

// SQLiteRepository stores the paper portfolio in the local ledger database
type SQLiteRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewSQLiteRepository creates a paper repository backed by the ledger DB
func NewSQLiteRepository(ledgerDB *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "paper").Logger(),
	}
}

// GetPosition returns the asset's position, or nil if none is held
func (r *SQLiteRepository) GetPosition(ctx context.Context, asset string) (*domain.PaperPosition, error) {
	query := `
		SELECT asset, quantity, avg_entry_price, total_cost, created_at, updated_at
		FROM paper_positions WHERE asset = ?
	`

	row := r.ledgerDB.QueryRowContext(ctx, query, strings.ToUpper(asset))
	p, err := scanPosition(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper position: %w", err)
	}

	return p, nil
}

// GetAllPositions returns every held position, alphabetical by asset
func (r *SQLiteRepository) GetAllPositions(ctx context.Context) ([]*domain.PaperPosition, error) {
	query := `
		SELECT asset, quantity, avg_entry_price, total_cost, created_at, updated_at
		FROM paper_positions ORDER BY asset ASC
	`

	rows, err := r.ledgerDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query paper positions: %w", err)
	}
	defer rows.Close()

	var results []*domain.PaperPosition
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper position: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper positions: %w", err)
	}

	return results, nil
}

// SavePosition upserts a position
func (r *SQLiteRepository) SavePosition(ctx context.Context, p *domain.PaperPosition) error {
	query := `
		INSERT OR REPLACE INTO paper_positions
		(asset, quantity, avg_entry_price, total_cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.ledgerDB.ExecContext(ctx, query,
		strings.ToUpper(p.Asset),
		p.Quantity,
		p.AvgEntryPrice,
		p.TotalCost,
		createdAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save paper position: %w", err)
	}

	return nil
}

// DeletePosition removes a fully sold position
func (r *SQLiteRepository) DeletePosition(ctx context.Context, asset string) error {
	_, err := r.ledgerDB.ExecContext(ctx,
		"DELETE FROM paper_positions WHERE asset = ?", strings.ToUpper(asset))
	if err != nil {
		return fmt.Errorf("failed to delete paper position: %w", err)
	}

	return nil
}

// AppendTrade records one paper trade and prunes history beyond the limit
func (r *SQLiteRepository) AppendTrade(ctx context.Context, t domain.PaperTrade) error {
	query := `
		INSERT INTO paper_trades (side, asset, quantity, price, realized_pnl, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var pnl sql.NullFloat64
	if t.RealizedPnL != nil {
		pnl = sql.NullFloat64{Float64: *t.RealizedPnL, Valid: true}
	}

	_, err := r.ledgerDB.ExecContext(ctx, query,
		string(t.Side),
		strings.ToUpper(t.Asset),
		t.Quantity,
		t.Price,
		pnl,
		t.ExecutedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append paper trade: %w", err)
	}

	// Retain only the newest entries
	prune := `
		DELETE FROM paper_trades
		WHERE id NOT IN (SELECT id FROM paper_trades ORDER BY id DESC LIMIT ?)
	`
	if _, err := r.ledgerDB.ExecContext(ctx, prune, tradeHistoryLimit); err != nil {
		return fmt.Errorf("failed to prune paper trade history: %w", err)
	}

	return nil
}

// GetTradeHistory returns the most recent trades, newest first
func (r *SQLiteRepository) GetTradeHistory(ctx context.Context, limit int) ([]domain.PaperTrade, error) {
	if limit <= 0 || limit > tradeHistoryLimit {
		limit = tradeHistoryLimit
	}

	query := `
		SELECT side, asset, quantity, price, realized_pnl, executed_at
		FROM paper_trades
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.ledgerDB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query paper trade history: %w", err)
	}
	defer rows.Close()

	var trades []domain.PaperTrade
	for rows.Next() {
		var t domain.PaperTrade
		var side string
		var pnl sql.NullFloat64
		var executedAt int64

		if err := rows.Scan(&side, &t.Asset, &t.Quantity, &t.Price, &pnl, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan paper trade: %w", err)
		}

		t.Side = domain.TradeSide(side)
		t.ExecutedAt = time.Unix(executedAt, 0).UTC()
		if pnl.Valid {
			v := pnl.Float64
			t.RealizedPnL = &v
		}

		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper trades: %w", err)
	}

	return trades, nil
}

// GetBalance returns the balance singleton, or nil if never initialized
func (r *SQLiteRepository) GetBalance(ctx context.Context) (*domain.PaperBalance, error) {
	query := `
		SELECT initial_balance, current_balance, last_known_real_balance, updated_at
		FROM paper_balance WHERE id = 1
	`

	var b domain.PaperBalance
	var updatedAt int64

	err := r.ledgerDB.QueryRowContext(ctx, query).Scan(
		&b.InitialBalance,
		&b.CurrentBalance,
		&b.LastKnownRealBalance,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper balance: %w", err)
	}

	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}

// SaveBalance upserts the balance singleton
func (r *SQLiteRepository) SaveBalance(ctx context.Context, b *domain.PaperBalance) error {
	query := `
		INSERT OR REPLACE INTO paper_balance
		(id, initial_balance, current_balance, last_known_real_balance, updated_at)
		VALUES (1, ?, ?, ?, ?)
	`

	_, err := r.ledgerDB.ExecContext(ctx, query,
		b.InitialBalance,
		b.CurrentBalance,
		b.LastKnownRealBalance,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save paper balance: %w", err)
	}

	return nil
}

// ClearAll wipes positions, trade history, and the balance
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	for _, table := range []string{"paper_positions", "paper_trades", "paper_balance"} {
		if _, err := r.ledgerDB.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	r.log.Info().Msg("Paper portfolio cleared")
	return nil
}

func scanPosition(scan func(dest ...any) error) (*domain.PaperPosition, error) {
	var p domain.PaperPosition
	var createdAt, updatedAt int64

	err := scan(&p.Asset, &p.Quantity, &p.AvgEntryPrice, &p.TotalCost, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}
