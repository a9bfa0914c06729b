package paper

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBalanceService(t *testing.T) *BalanceService {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewBalanceService(setupRepo(t), log)
}

func TestInitializeOnce(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	b, err := svc.Initialize(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, b.InitialBalance)
	assert.Equal(t, 1000.0, b.CurrentBalance)

	// Second call keeps the existing record
	b, err = svc.Initialize(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, b.InitialBalance)
}

func TestReconcileCreditsDeposit(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, 1000)
	require.NoError(t, err)
	require.NoError(t, svc.Debit(ctx, 300))

	// Real account received a 500 deposit
	b, err := svc.Reconcile(ctx, 1500)
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, b.CurrentBalance, 1e-9)
	assert.InDelta(t, 1500.0, b.LastKnownRealBalance, 1e-9)
}

func TestReconcileIgnoresDecrease(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, 1000)
	require.NoError(t, err)

	// A withdrawal leaves both the simulated balance and the watermark
	// untouched
	b, err := svc.Reconcile(ctx, 800)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, b.CurrentBalance, 1e-9)
	assert.InDelta(t, 1000.0, b.LastKnownRealBalance, 1e-9)

	// The withdrawn funds returning is not a deposit
	b, err = svc.Reconcile(ctx, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, b.CurrentBalance, 1e-9)
	assert.InDelta(t, 1000.0, b.LastKnownRealBalance, 1e-9)
}

func TestReconcileWithdrawRedepositCycle(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, 1000)
	require.NoError(t, err)

	b, err := svc.Reconcile(ctx, 1500)
	require.NoError(t, err)
	require.InDelta(t, 1500.0, b.CurrentBalance, 1e-9)

	// Withdraw 300, then it comes back. Only amounts above the prior
	// peak count as new deposits.
	_, err = svc.Reconcile(ctx, 1200)
	require.NoError(t, err)

	b, err = svc.Reconcile(ctx, 1500)
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, b.CurrentBalance, 1e-9)

	b, err = svc.Reconcile(ctx, 1600)
	require.NoError(t, err)
	assert.InDelta(t, 1600.0, b.CurrentBalance, 1e-9)
}

func TestReconcileInitializesWhenMissing(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	b, err := svc.Reconcile(ctx, 750)
	require.NoError(t, err)
	assert.Equal(t, 750.0, b.InitialBalance)
	assert.Equal(t, 750.0, b.CurrentBalance)
}

func TestDebitCreditRoundTrip(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, svc.Debit(ctx, 250))
	require.NoError(t, svc.Credit(ctx, 100))

	b, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 850.0, b.CurrentBalance, 1e-9)
}

func TestAdjustWithoutBalanceIsNoop(t *testing.T) {
	svc := setupBalanceService(t)
	ctx := context.Background()

	require.NoError(t, svc.Debit(ctx, 100))
	require.NoError(t, svc.Credit(ctx, 100))

	b, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Nil(t, b)
}
