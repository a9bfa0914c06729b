// Package outcomes tracks individual trade lots from entry to exit and
// realizes P&L by matching sells against open lots FIFO.
package outcomes

import (
	"context"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// Repository persists trade outcome lots. Implementations exist for the
// local SQLite ledger and for DynamoDB.
type Repository interface {
	// Insert stores a newly opened lot
	Insert(ctx context.Context, o *domain.TradeOutcome) error

	// Update persists mutated exit fields and status transitions
	Update(ctx context.Context, o *domain.TradeOutcome) error

	// GetOpen returns open and partial lots for an asset, oldest entry first.
	// This ordering is what makes exit matching FIFO.
	GetOpen(ctx context.Context, asset string) ([]*domain.TradeOutcome, error)

	// GetRecentClosed returns closed lots for an asset, most recent exit first
	GetRecentClosed(ctx context.Context, asset string, limit int) ([]*domain.TradeOutcome, error)

	// GetAllClosedByExitTime returns every closed lot ordered by exit time
	// ascending, the replay order used when rebuilding aggregates
	GetAllClosedByExitTime(ctx context.Context) ([]*domain.TradeOutcome, error)

	// GetAllOpen returns all open and partial lots across assets
	GetAllOpen(ctx context.Context) ([]*domain.TradeOutcome, error)
}
