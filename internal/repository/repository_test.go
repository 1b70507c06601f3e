package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreBaseline(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(cache.NewMemoryCache(), time.Minute)

	_, ok, err := s.LoadBaseline(ctx, "usdt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveBaseline(ctx, "usdt", 1000))
	b, ok, err := s.LoadBaseline(ctx, "USDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1000.0, b)
}

func TestStateStoreLatestDecision(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(cache.NewMemoryCache(), time.Minute)

	_, ok, err := s.GetLatest(ctx, "LTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	d := models.Decision{ID: "d1", Symbol: "LTCUSDT", FinalAction: models.ActionBuy, BuyVotes: 3}
	require.NoError(t, s.SetLatest(ctx, d))

	got, ok, err := s.GetLatest(ctx, "ltcusdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, models.ActionBuy, got.FinalAction)
}

func TestDecisionRowEncodesRecommendations(t *testing.T) {
	d := models.Decision{
		ID:          "d1",
		Symbol:      "LTCUSDT",
		FinalAction: models.ActionSell,
		SellVotes:   2,
		Recommendations: []models.Recommendation{
			{Source: "imbalance", Action: models.ActionSell, Score: 0.4},
		},
	}
	args, err := decisionRow(d)
	require.NoError(t, err)
	require.Len(t, args, 9)
	assert.Equal(t, "SELL", args[2])
	assert.Equal(t, uint8(2), args[4])

	var recs []models.Recommendation
	require.NoError(t, json.Unmarshal([]byte(args[6].(string)), &recs))
	assert.Equal(t, "imbalance", recs[0].Source)
	assert.False(t, args[8].(time.Time).IsZero())
}

func TestExecutionRowColumns(t *testing.T) {
	r := models.ExecutionRecord{
		SignalID: "s1",
		Symbol:   "LTCUSDT",
		Action:   models.ActionBuy,
		Outcome:  models.OutcomeZeroSize,
		Reason:   "size rounds to zero",
	}
	args := executionRow(r)
	require.Len(t, args, 14)
	assert.Equal(t, "zero_size", args[10])
	assert.Equal(t, "", args[9])
}

func TestClampVotes(t *testing.T) {
	assert.Equal(t, 0, clampVotes(-1))
	assert.Equal(t, 255, clampVotes(1000))
	assert.Equal(t, 3, clampVotes(3))
}

func TestMemoryJournalRecentExecutions(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(3)
	require.NoError(t, j.RecordDecision(ctx, models.Decision{ID: "d1"}))

	for i, sym := range []string{"LTCUSDT", "BTCUSDT", "LTCUSDT", "LTCUSDT", "LTCUSDT"} {
		require.NoError(t, j.RecordExecution(ctx, models.ExecutionRecord{SignalID: string(rune('a' + i)), Symbol: sym}))
	}

	recs, err := j.RecentExecutions(ctx, "ltcusdt", 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{recs[0].SignalID, recs[1].SignalID, recs[2].SignalID})

	recs, err = j.RecentExecutions(ctx, "LTCUSDT", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e", recs[0].SignalID)

	recs, err = j.RecentExecutions(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
