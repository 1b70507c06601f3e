package middleware

import (
	"context"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type procRecorder struct {
	got []models.MarketSnapshot
}

func (p *procRecorder) Submit(s models.MarketSnapshot) error {
	p.got = append(p.got, s)
	return nil
}

func snap(symbol string) models.MarketSnapshot {
	return models.MarketSnapshot{
		Symbol: symbol,
		Bids:   []models.PriceLevel{{Price: 70, Quantity: 1}},
		Asks:   []models.PriceLevel{{Price: 70.1, Quantity: 1}},
	}
}

func TestGateThrottlesPerSymbol(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	proc := &procRecorder{}
	g := NewRealtimeGate(proc, metrics.Nop{}, WithMaxRPS(10), withClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, g.Process(ctx, snap("LTCUSDT")))
	require.NoError(t, g.Process(ctx, snap("LTCUSDT")))
	require.NoError(t, g.Process(ctx, snap("BTCUSDT")))
	assert.Len(t, proc.got, 2)

	now = now.Add(100 * time.Millisecond)
	require.NoError(t, g.Process(ctx, snap("LTCUSDT")))
	assert.Len(t, proc.got, 3)
}

func TestGateRejectsInvalid(t *testing.T) {
	proc := &procRecorder{}
	g := NewRealtimeGate(proc, metrics.Nop{}, WithMaxRPS(0))
	ctx := context.Background()

	assert.Error(t, g.Process(ctx, snap("")))
	assert.Error(t, g.Process(ctx, models.MarketSnapshot{Symbol: "LTCUSDT"}))

	crossed := snap("LTCUSDT")
	crossed.Bids = []models.PriceLevel{{Price: 71, Quantity: 1}}
	assert.Error(t, g.Process(ctx, crossed))
	assert.Empty(t, proc.got)
}
