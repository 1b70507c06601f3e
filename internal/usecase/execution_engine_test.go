package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	ex        *fakeExchange
	journal   *memJournal
	baselines *memBaselines
	risk      *RiskGate
	engine    *ExecutionEngine
}

func newEngineFixture(ex *fakeExchange, fillTimeout time.Duration) *engineFixture {
	f := &engineFixture{
		ex:        ex,
		journal:   &memJournal{},
		baselines: &memBaselines{},
		risk:      NewRiskGate(0.2, logger.NewNop(), metrics.Nop{}),
	}
	lc := NewOrderLifecycle(ex, 5*time.Millisecond, fillTimeout, logger.NewNop(), metrics.Nop{})
	f.engine = NewExecutionEngine(ex, f.risk, NewPositionSizer(0.01, 0), lc, logger.NewNop(), metrics.Nop{},
		WithJournal(f.journal),
		WithBaselineStore(f.baselines),
		WithQuoteAsset("usdt"),
	)
	return f
}

func buySignal(id string, price, stop float64) models.TradeSignal {
	return models.TradeSignal{ID: id, Action: models.ActionBuy, Symbol: "LTCUSDT", Price: price, StopLoss: stop, Source: "test"}
}

func (f *engineFixture) waitRecords(t *testing.T, n int) []models.ExecutionRecord {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.journal.Records()) >= n }, 2*time.Second, 5*time.Millisecond)
	return f.journal.Records()
}

func TestEngineExecutesSignal(t *testing.T) {
	f := newEngineFixture(newFakeExchange(1000), time.Second)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	rec := f.waitRecords(t, 1)[0]

	assert.Equal(t, models.OutcomeExecuted, rec.Outcome)
	assert.Equal(t, models.OrderFilled, rec.Status)
	assert.Equal(t, 2.0, rec.Size)
	assert.Equal(t, 1000.0, rec.Balance)

	placed, _ := f.ex.snapshot()
	require.Len(t, placed, 1)
	assert.Equal(t, models.SideBuy, placed[0].Side)
	assert.Equal(t, models.OrderTypeMarket, placed[0].Type)

	v, ok, _ := f.baselines.LoadBaseline(context.Background(), "USDT")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)
}

func TestEngineZeroSizeNeverPlaces(t *testing.T) {
	f := newEngineFixture(newFakeExchange(1000), time.Second)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 100)))
	rec := f.waitRecords(t, 1)[0]
	assert.Equal(t, models.OutcomeZeroSize, rec.Outcome)

	placed, _ := f.ex.snapshot()
	assert.Empty(t, placed)
}

func TestEngineRunsSignalsOneAtATimeInOrder(t *testing.T) {
	ex := newFakeExchange(1000)
	ex.listedFor = 2
	ex.placeDelay = 5 * time.Millisecond
	f := newEngineFixture(ex, time.Second)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, f.engine.Submit(buySignal(fmt.Sprintf("s%d", i), 100, 95)))
	}
	recs := f.waitRecords(t, 4)

	for i, rec := range recs {
		assert.Equal(t, fmt.Sprintf("s%d", i), rec.SignalID)
		assert.Equal(t, models.OutcomeExecuted, rec.Outcome)
	}
	assert.Equal(t, int32(1), ex.maxActive.Load())
}

func TestEngineDrawdownAborts(t *testing.T) {
	ex := newFakeExchange(700)
	f := newEngineFixture(ex, time.Second)
	require.NoError(t, f.baselines.SaveBaseline(context.Background(), "USDT", 1000))
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	rec := f.waitRecords(t, 1)[0]
	assert.Equal(t, models.OutcomeDrawdown, rec.Outcome)

	placed, _ := ex.snapshot()
	assert.Empty(t, placed)

	// recovering above the limit re-enables trading
	ex.setBalance(900)
	require.NoError(t, f.engine.Submit(buySignal("s2", 100, 95)))
	rec = f.waitRecords(t, 2)[1]
	assert.Equal(t, models.OutcomeExecuted, rec.Outcome)
}

func TestEngineMissingOrderID(t *testing.T) {
	ex := newFakeExchange(1000)
	ex.emptyID = true
	f := newEngineFixture(ex, time.Second)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	rec := f.waitRecords(t, 1)[0]
	assert.Equal(t, models.OutcomeNoOrderID, rec.Outcome)
	_, cancels := ex.snapshot()
	assert.Zero(t, cancels)
}

func TestEngineBalanceAndPlaceFailures(t *testing.T) {
	ex := newFakeExchange(1000)
	ex.balanceErr = errStub
	f := newEngineFixture(ex, time.Second)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	assert.Equal(t, models.OutcomeBalanceFailed, f.waitRecords(t, 1)[0].Outcome)

	ex.mu.Lock()
	ex.balanceErr = nil
	ex.placeErr = errStub
	ex.mu.Unlock()
	require.NoError(t, f.engine.Submit(buySignal("s2", 100, 95)))
	assert.Equal(t, models.OutcomePlaceFailed, f.waitRecords(t, 2)[1].Outcome)

	require.NoError(t, f.engine.Submit(models.TradeSignal{ID: "s3", Action: models.ActionHold, Symbol: "LTCUSDT", Price: 1}))
	assert.Equal(t, models.OutcomeInvalidSignal, f.waitRecords(t, 3)[2].Outcome)
}

func TestEngineStopWaitsForInFlightTrade(t *testing.T) {
	ex := newFakeExchange(1000)
	ex.listedFor = 8
	f := newEngineFixture(ex, time.Second)
	f.engine.Start(context.Background())

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	require.Eventually(t, f.engine.Busy, time.Second, time.Millisecond)
	require.NoError(t, f.engine.Submit(buySignal("s2", 100, 95)))

	f.engine.Stop()

	recs := f.journal.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, models.OutcomeExecuted, recs[0].Outcome)
	assert.Equal(t, models.OrderFilled, recs[0].Status)
	assert.Equal(t, models.OutcomeDiscarded, recs[1].Outcome)

	assert.ErrorIs(t, f.engine.Submit(buySignal("s3", 100, 95)), ErrEngineStopped)
	assert.False(t, f.engine.Running())
}

func TestEngineStopBeforeStartDiscardsQueued(t *testing.T) {
	f := newEngineFixture(newFakeExchange(1000), time.Second)

	require.NoError(t, f.engine.Submit(buySignal("s1", 100, 95)))
	require.NoError(t, f.engine.Submit(buySignal("s2", 100, 95)))
	f.engine.Stop()

	recs := f.journal.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "s1", recs[0].SignalID)
	assert.Equal(t, models.OutcomeDiscarded, recs[0].Outcome)
	assert.Equal(t, models.OutcomeDiscarded, recs[1].Outcome)
	assert.Zero(t, f.engine.Pending())
	placed, _ := f.ex.snapshot()
	assert.Empty(t, placed)
}
