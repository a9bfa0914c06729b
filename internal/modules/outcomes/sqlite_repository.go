package outcomes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// SQLiteRepository stores outcome lots in the local ledger database
type SQLiteRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// outcomeColumns is the column list for the outcomes table.
// Order must match scanOutcome().
const outcomeColumns = `id, symbol, asset, entry_price, entry_quantity, entry_at, entry_rationale,
	exit_price, exit_quantity, exit_at, exit_rationale,
	realized_pnl, realized_pnl_pct, holding_hours, status, remaining_quantity`

// NewSQLiteRepository creates an outcome repository backed by the ledger DB
func NewSQLiteRepository(ledgerDB *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "outcomes").Logger(),
	}
}

// Insert stores a newly opened lot
func (r *SQLiteRepository) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO outcomes
		(id, symbol, asset, entry_price, entry_quantity, entry_at, entry_rationale,
		 realized_pnl, realized_pnl_pct, holding_hours, status, remaining_quantity,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?)
	`

	_, err := r.ledgerDB.ExecContext(ctx, query,
		o.ID,
		strings.ToUpper(strings.TrimSpace(o.Symbol)),
		strings.ToUpper(strings.TrimSpace(o.Asset)),
		o.EntryPrice,
		o.EntryQuantity,
		o.EntryAt.Unix(),
		nullString(o.EntryRationale),
		string(o.Status),
		o.RemainingQuantity,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	r.log.Info().
		Str("outcome_id", o.ID).
		Str("asset", o.Asset).
		Float64("quantity", o.EntryQuantity).
		Msg("Outcome lot opened")

	return nil
}

// Update persists exit fields and status for an existing lot
func (r *SQLiteRepository) Update(ctx context.Context, o *domain.TradeOutcome) error {
	query := `
		UPDATE outcomes
		SET exit_price = ?, exit_quantity = ?, exit_at = ?, exit_rationale = ?,
		    realized_pnl = ?, realized_pnl_pct = ?, holding_hours = ?,
		    status = ?, remaining_quantity = ?, updated_at = ?
		WHERE id = ?
	`

	var exitAt sql.NullInt64
	if !o.ExitAt.IsZero() {
		exitAt = sql.NullInt64{Int64: o.ExitAt.Unix(), Valid: true}
	}

	result, err := r.ledgerDB.ExecContext(ctx, query,
		nullFloat64(o.ExitPrice),
		nullFloat64(o.ExitQuantity),
		exitAt,
		nullString(o.ExitRationale),
		o.RealizedPnL,
		o.RealizedPnLPct,
		o.HoldingHours,
		string(o.Status),
		o.RemainingQuantity,
		time.Now().Unix(),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("outcome %s not found", o.ID)
	}

	return nil
}

// GetOpen returns open and partial lots for an asset, oldest entry first
func (r *SQLiteRepository) GetOpen(ctx context.Context, asset string) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + ` FROM outcomes
		WHERE asset = ? AND status IN ('open', 'partial')
		ORDER BY entry_at ASC, created_at ASC
	`

	return r.queryOutcomes(ctx, query, strings.ToUpper(asset))
}

// GetRecentClosed returns closed lots for an asset, most recent exit first
func (r *SQLiteRepository) GetRecentClosed(ctx context.Context, asset string, limit int) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + ` FROM outcomes
		WHERE asset = ? AND status = 'closed'
		ORDER BY exit_at DESC
		LIMIT ?
	`

	return r.queryOutcomes(ctx, query, strings.ToUpper(asset), limit)
}

// GetAllClosedByExitTime returns all closed lots in exit-time ascending order
func (r *SQLiteRepository) GetAllClosedByExitTime(ctx context.Context) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + ` FROM outcomes
		WHERE status = 'closed'
		ORDER BY exit_at ASC, created_at ASC
	`

	return r.queryOutcomes(ctx, query)
}

// GetAllOpen returns all open and partial lots across assets
func (r *SQLiteRepository) GetAllOpen(ctx context.Context) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + ` FROM outcomes
		WHERE status IN ('open', 'partial')
		ORDER BY asset ASC, entry_at ASC
	`

	return r.queryOutcomes(ctx, query)
}

func (r *SQLiteRepository) queryOutcomes(ctx context.Context, query string, args ...any) ([]*domain.TradeOutcome, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var results []*domain.TradeOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		results = append(results, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return results, nil
}

func scanOutcome(rows *sql.Rows) (*domain.TradeOutcome, error) {
	var o domain.TradeOutcome
	var entryAt int64
	var entryRationale, exitRationale sql.NullString
	var exitPrice, exitQuantity sql.NullFloat64
	var exitAt sql.NullInt64
	var status string

	err := rows.Scan(
		&o.ID,
		&o.Symbol,
		&o.Asset,
		&o.EntryPrice,
		&o.EntryQuantity,
		&entryAt,
		&entryRationale,
		&exitPrice,
		&exitQuantity,
		&exitAt,
		&exitRationale,
		&o.RealizedPnL,
		&o.RealizedPnLPct,
		&o.HoldingHours,
		&status,
		&o.RemainingQuantity,
	)
	if err != nil {
		return nil, err
	}

	o.EntryAt = time.Unix(entryAt, 0).UTC()
	o.Status = domain.OutcomeStatus(status)
	if entryRationale.Valid {
		o.EntryRationale = entryRationale.String
	}
	if exitPrice.Valid {
		o.ExitPrice = exitPrice.Float64
	}
	if exitQuantity.Valid {
		o.ExitQuantity = exitQuantity.Float64
	}
	if exitAt.Valid {
		o.ExitAt = time.Unix(exitAt.Int64, 0).UTC()
	}
	if exitRationale.Valid {
		o.ExitRationale = exitRationale.String
	}

	return &o, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
