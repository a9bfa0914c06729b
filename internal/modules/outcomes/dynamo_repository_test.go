package outcomes

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

func TestEntryOrderBreaksSameSecondTies(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	older := &domain.TradeOutcome{
		ID:        "lot-a",
		EntryAt:   at,
		CreatedAt: at.Add(10 * time.Millisecond),
		Status:    domain.OutcomePartial,
	}
	newer := &domain.TradeOutcome{
		ID:        "lot-b",
		EntryAt:   at,
		CreatedAt: at.Add(20 * time.Millisecond),
		Status:    domain.OutcomeOpen,
	}

	// Status-prefix queries return the open batch before the partial
	// batch, which is the reverse of creation order here
	lots := []*domain.TradeOutcome{newer, older}
	sort.SliceStable(lots, byEntryOrder(lots))

	assert.Equal(t, "lot-a", lots[0].ID)
	assert.Equal(t, "lot-b", lots[1].ID)
}

func TestOutcomeItemCarriesCreationOrder(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 123456789, time.UTC)
	o := domain.NewTradeOutcome("BTCUSDT", "BTC", 100, 1, at, "")

	got := fromOutcomeItem(toOutcomeItem(o))
	assert.Equal(t, o.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
	assert.Equal(t, o.EntryAt.Unix(), got.EntryAt.Unix())
}
