package analytics

import (
	"context"
	"testing"

	"OrdreBook/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(bids, asks []models.PriceLevel) models.MarketSnapshot {
	return models.MarketSnapshot{Symbol: "LTCUSDT", Bids: bids, Asks: asks}
}

func lv(price, qty float64) models.PriceLevel {
	return models.PriceLevel{Price: price, Quantity: qty}
}

func trade(price, qty float64, buyerMaker bool) models.TradePrint {
	return models.TradePrint{Symbol: "LTCUSDT", Price: price, Quantity: qty, BuyerMaker: buyerMaker}
}

func TestImbalance(t *testing.T) {
	a := NewImbalance(1.2, 0)
	ctx := context.Background()

	r, err := a.Analyze(ctx, book([]models.PriceLevel{lv(100, 30)}, []models.PriceLevel{lv(101, 10)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, r.Action)
	assert.Equal(t, 3.0, r.Score)

	r, err = a.Analyze(ctx, book([]models.PriceLevel{lv(100, 10)}, []models.PriceLevel{lv(101, 30)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, r.Action)

	r, err = a.Analyze(ctx, book([]models.PriceLevel{lv(100, 10)}, []models.PriceLevel{lv(101, 11)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, r.Action)

	_, err = a.Analyze(ctx, book(nil, []models.PriceLevel{lv(101, 1)}), nil)
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestIceberg(t *testing.T) {
	a := NewIceberg(1000)
	ctx := context.Background()

	r, err := a.Analyze(ctx, book([]models.PriceLevel{lv(100, 5)}, []models.PriceLevel{lv(101, 1500)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, r.Action)
	assert.Equal(t, 101.0, r.Meta["ask_wall_price"])

	r, err = a.Analyze(ctx, book([]models.PriceLevel{lv(100, 1200)}, []models.PriceLevel{lv(101, 1500)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, r.Action)
}

func TestVWAPOBV(t *testing.T) {
	a := NewVWAPOBV()
	ctx := context.Background()

	// rising prints then a dip below vwap
	r, err := a.Analyze(ctx, models.MarketSnapshot{}, []models.TradePrint{
		trade(100, 1, false), trade(102, 5, false), trade(101, 1, true),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, r.Action)
	assert.Equal(t, 4.0, r.Meta["obv"])

	_, err = a.Analyze(ctx, models.MarketSnapshot{}, nil)
	assert.ErrorIs(t, err, ErrEmptyTrades)
}

func TestDepth(t *testing.T) {
	a := NewDepth(0.01, 0.2)
	ctx := context.Background()

	r, err := a.Analyze(ctx, book([]models.PriceLevel{lv(100, 1)}, []models.PriceLevel{lv(100.2, 9), lv(150, 1000)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, r.Action)
	assert.InDelta(t, 0.1, r.Score, 1e-9)

	r, err = a.Analyze(ctx, book([]models.PriceLevel{lv(100, 5)}, []models.PriceLevel{lv(100.2, 5)}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, r.Action)
}

func TestOrderFlow(t *testing.T) {
	a := NewOrderFlow(0.5)
	ctx := context.Background()

	r, err := a.Analyze(ctx, models.MarketSnapshot{}, []models.TradePrint{trade(1, 9, false), trade(1, 1, true)})
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, r.Action)
	assert.InDelta(t, 0.8, r.Score, 1e-9)

	r, err = a.Analyze(ctx, models.MarketSnapshot{}, []models.TradePrint{trade(1, 1, false), trade(1, 9, true)})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, r.Action)
}

func TestBuild(t *testing.T) {
	all, err := Build(nil)
	require.NoError(t, err)
	require.Len(t, all, len(DefaultNames))
	for i, a := range all {
		assert.Equal(t, DefaultNames[i], a.Name())
	}

	_, err = Build([]string{"imbalance", "Imbalance"})
	assert.Error(t, err)

	_, err = Build([]string{"tarot"})
	assert.Error(t, err)
}
