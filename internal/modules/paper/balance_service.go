package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// depositEpsilon filters out dust-level balance fluctuations during
// reconciliation
const depositEpsilon = 0.01

// BalanceService maintains the simulated cash balance for rehearsal mode.
// It mirrors deposits detected on the real account but never mirrors
// withdrawals, so the simulation keeps its own spending history intact.
type BalanceService struct {
	repo Repository
	log  zerolog.Logger
}

// NewBalanceService creates a simulated balance service
func NewBalanceService(repo Repository, log zerolog.Logger) *BalanceService {
	return &BalanceService{
		repo: repo,
		log:  log.With().Str("service", "paper_balance").Logger(),
	}
}

// Initialize seeds the simulated balance from the real account balance.
// Calling it again is a no-op once a balance exists.
func (s *BalanceService) Initialize(ctx context.Context, realBalance float64) (*domain.PaperBalance, error) {
	b, err := s.repo.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if b != nil {
		return b, nil
	}

	b = &domain.PaperBalance{
		InitialBalance:       realBalance,
		CurrentBalance:       realBalance,
		LastKnownRealBalance: realBalance,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.repo.SaveBalance(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save balance: %w", err)
	}

	s.log.Info().
		Float64("balance", realBalance).
		Msg("Simulated balance initialized from real account")

	return b, nil
}

// Reconcile compares the real account balance against the last known value.
// An increase is treated as a deposit and credited to the simulation; a
// decrease is noted but not applied.
func (s *BalanceService) Reconcile(ctx context.Context, realBalance float64) (*domain.PaperBalance, error) {
	b, err := s.repo.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if b == nil {
		return s.Initialize(ctx, realBalance)
	}

	// The watermark only ever rises. A decrease leaves the record
	// untouched, so funds withdrawn and later re-deposited never count
	// as a fresh deposit.
	diff := realBalance - b.LastKnownRealBalance
	if diff <= depositEpsilon {
		if diff < -depositEpsilon {
			s.log.Info().
				Float64("decrease", -diff).
				Msg("Real balance decreased, not mirrored to simulation")
		}
		return b, nil
	}

	b.CurrentBalance += diff
	b.LastKnownRealBalance = realBalance
	b.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveBalance(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save balance: %w", err)
	}

	s.log.Info().
		Float64("deposit", diff).
		Float64("current", b.CurrentBalance).
		Msg("Deposit detected, credited to simulated balance")

	return b, nil
}

// Debit reduces the simulated balance by the notional of a buy. When the
// balance was never initialized this logs and does nothing.
func (s *BalanceService) Debit(ctx context.Context, amount float64) error {
	return s.adjust(ctx, -amount)
}

// Credit increases the simulated balance by the proceeds of a sell. When
// the balance was never initialized this logs and does nothing.
func (s *BalanceService) Credit(ctx context.Context, amount float64) error {
	return s.adjust(ctx, amount)
}

func (s *BalanceService) adjust(ctx context.Context, delta float64) error {
	b, err := s.repo.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	if b == nil {
		s.log.Warn().
			Float64("delta", delta).
			Msg("Simulated balance not initialized, adjustment skipped")
		return nil
	}

	b.CurrentBalance += delta
	b.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveBalance(ctx, b); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	return nil
}

// Balance returns the simulated balance, or nil if never initialized
func (s *BalanceService) Balance(ctx context.Context) (*domain.PaperBalance, error) {
	return s.repo.GetBalance(ctx)
}
