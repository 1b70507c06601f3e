package usecase

import (
	"context"
	"sync"
	"testing"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"
	"OrdreBook/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signalRecorder struct {
	mu   sync.Mutex
	sigs []models.TradeSignal
}

func (s *signalRecorder) Submit(sig models.TradeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigs = append(s.sigs, sig)
	return nil
}

func TestRouterTurnsActionableDecisionsIntoSignals(t *testing.T) {
	box := queue.NewMailbox[models.Decision](0, queue.OverflowBlock)
	rec := &signalRecorder{}
	journal := &memJournal{}
	r := NewDecisionRouter(box, rec, 0.01, logger.NewNop(), metrics.Nop{}, WithDecisionJournal(journal))
	r.Start(context.Background())

	require.NoError(t, box.Push(models.Decision{ID: "d1", Symbol: "LTCUSDT", FinalAction: models.ActionHold, ReferencePrice: 100}))
	require.NoError(t, box.Push(models.Decision{ID: "d2", Symbol: "LTCUSDT", FinalAction: models.ActionBuy, ReferencePrice: 100}))
	require.NoError(t, box.Push(models.Decision{ID: "d3", Symbol: "LTCUSDT", FinalAction: models.ActionSell, ReferencePrice: 200}))
	require.NoError(t, box.Push(models.Decision{ID: "d4", Symbol: "LTCUSDT", FinalAction: models.ActionBuy}))
	box.Close()
	r.Wait()

	require.Len(t, rec.sigs, 2)
	assert.Equal(t, "d2", rec.sigs[0].DecisionID)
	assert.Equal(t, models.ActionBuy, rec.sigs[0].Action)
	assert.InDelta(t, 99.0, rec.sigs[0].StopLoss, 1e-9)
	assert.Equal(t, "d3", rec.sigs[1].DecisionID)
	assert.InDelta(t, 202.0, rec.sigs[1].StopLoss, 1e-9)
	assert.NotEmpty(t, rec.sigs[0].ID)

	assert.Len(t, journal.Decisions(), 4)

	latest, ok := r.Latest(context.Background(), "LTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "d4", latest.ID)

	_, ok = r.Latest(context.Background(), "BTCUSDT")
	assert.False(t, ok)
}

func TestStopLossFor(t *testing.T) {
	assert.Zero(t, StopLossFor(models.ActionBuy, 100, 0))
	assert.Zero(t, StopLossFor(models.ActionHold, 100, 0.01))
}
