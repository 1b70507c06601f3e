package usecase

import (
	"context"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	domsvc "OrdreBook/internal/domain/service"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func votes(actions ...models.Action) []models.Recommendation {
	out := make([]models.Recommendation, len(actions))
	for i, a := range actions {
		out[i] = models.Recommendation{Action: a}
	}
	return out
}

func TestQuorum(t *testing.T) {
	B, S, H := models.ActionBuy, models.ActionSell, models.ActionHold
	tests := []struct {
		name   string
		recs   []models.Recommendation
		quorum int
		want   models.Action
	}{
		{"three buys beat one sell", votes(B, B, B, S), 2, B},
		{"one each holds", votes(B, S), 2, H},
		{"two each holds", votes(B, B, S, S), 2, H},
		{"two sells reach quorum", votes(S, S, H), 2, S},
		{"single buy below quorum", votes(B, H, H), 2, H},
		{"single buy with quorum one", votes(B, H), 1, B},
		{"no analyzers", nil, 2, H},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := Quorum(tt.recs, tt.quorum)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregatorFailuresCountAsHold(t *testing.T) {
	analyzers := []domsvc.Analyzer{
		stubAnalyzer{name: "a", action: models.ActionBuy},
		stubAnalyzer{name: "b", action: models.ActionBuy},
		stubAnalyzer{name: "c", panics: true},
		stubAnalyzer{name: "d", err: errStub},
		stubAnalyzer{name: "e", delay: time.Second},
	}
	agg := NewSignalAggregator(analyzers, logger.NewNop(), metrics.Nop{}, WithAnalyzerTimeout(20*time.Millisecond))

	d := agg.Analyze(context.Background(), testSnapshot("LTCUSDT"), nil)

	require.Len(t, d.Recommendations, 5)
	assert.Equal(t, models.ActionBuy, d.FinalAction)
	assert.Equal(t, 2, d.BuyVotes)
	assert.Zero(t, d.SellVotes)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "LTCUSDT", d.Symbol)
	assert.Equal(t, 100.0, d.ReferencePrice)

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, name, d.Recommendations[i].Source)
	}
	for _, r := range d.Recommendations[2:] {
		assert.Equal(t, models.ActionHold, r.Action)
		assert.NotEmpty(t, r.Err)
	}
}

func TestAggregatorNormalizesUnknownAction(t *testing.T) {
	agg := NewSignalAggregator([]domsvc.Analyzer{
		stubAnalyzer{name: "odd", action: models.Action("MAYBE")},
	}, logger.NewNop(), metrics.Nop{}, WithQuorum(1))

	d := agg.Analyze(context.Background(), testSnapshot("LTCUSDT"), nil)
	assert.Equal(t, models.ActionHold, d.Recommendations[0].Action)
	assert.Equal(t, models.ActionHold, d.FinalAction)
}
