// Package paper maintains the rehearsal-mode view of the portfolio: a
// weighted-average cost basis per asset, a simulated cash balance, and a
// bounded trade history.
package paper

import (
	"context"
	"errors"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

var (
	// ErrNoPosition is returned when a sell references an asset with no
	// cost-basis position
	ErrNoPosition = errors.New("no position held for asset")

	// ErrInsufficientQuantity is returned when a sell exceeds the held
	// quantity beyond tolerance
	ErrInsufficientQuantity = errors.New("sell quantity exceeds held position")
)

// tradeHistoryLimit bounds the retained trade history
const tradeHistoryLimit = 100

// Repository persists paper positions, the balance singleton, and trade
// history
type Repository interface {
	// GetPosition returns the asset's position, or nil if none is held
	GetPosition(ctx context.Context, asset string) (*domain.PaperPosition, error)

	// GetAllPositions returns every held position
	GetAllPositions(ctx context.Context) ([]*domain.PaperPosition, error)

	// SavePosition upserts a position
	SavePosition(ctx context.Context, p *domain.PaperPosition) error

	// DeletePosition removes a fully sold position
	DeletePosition(ctx context.Context, asset string) error

	// AppendTrade records one executed paper trade, pruning history beyond
	// the retention limit
	AppendTrade(ctx context.Context, t domain.PaperTrade) error

	// GetTradeHistory returns the most recent trades, newest first
	GetTradeHistory(ctx context.Context, limit int) ([]domain.PaperTrade, error)

	// GetBalance returns the balance singleton, or nil if never initialized
	GetBalance(ctx context.Context) (*domain.PaperBalance, error)

	// SaveBalance upserts the balance singleton
	SaveBalance(ctx context.Context, b *domain.PaperBalance) error

	// ClearAll wipes positions, trade history, and the balance
	ClearAll(ctx context.Context) error
}
