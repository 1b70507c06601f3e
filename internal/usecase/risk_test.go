package usecase

import (
	"testing"

	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
)

func TestPositionSizer(t *testing.T) {
	s := NewPositionSizer(0.01, 0)
	assert.Equal(t, 2.0, s.Size(1000, 100, 95))
	assert.Equal(t, 2.0, s.Size(1000, 95, 100))
	assert.Zero(t, s.Size(1000, 100, 100))
	assert.Zero(t, s.Size(1000, 100, 0))
	assert.Zero(t, s.Size(0, 100, 95))
}

func TestPositionSizerStepRounding(t *testing.T) {
	s := NewPositionSizer(0.01, 0.1)
	// 10 / 3 = 3.333.. floors to 3.3
	assert.Equal(t, 3.3, s.Size(1000, 100, 97))
}

func TestRiskGateLazyBaseline(t *testing.T) {
	g := NewRiskGate(0.2, logger.NewNop(), metrics.Nop{})

	_, ok := g.Baseline()
	assert.False(t, ok)

	assert.False(t, g.CheckDrawdown(1000))
	base, ok := g.Baseline()
	assert.True(t, ok)
	assert.Equal(t, 1000.0, base)

	assert.False(t, g.CheckDrawdown(850))
	assert.True(t, g.CheckDrawdown(750))
	assert.True(t, g.CheckDrawdown(800))

	// later updates keep the first baseline
	assert.False(t, g.UpdateInitialBalance(500))
	base, _ = g.Baseline()
	assert.Equal(t, 1000.0, base)
}

func TestRiskGateExplicitBaseline(t *testing.T) {
	g := NewRiskGate(0, logger.NewNop(), metrics.Nop{})
	assert.Equal(t, DefaultMaxDrawdown, g.MaxDrawdown())

	assert.True(t, g.UpdateInitialBalance(2000))
	assert.True(t, g.CheckDrawdown(1500))
	assert.InDelta(t, 0.25, g.Drawdown(1500), 1e-12)
}

func TestRiskGateZeroBaselineBlocks(t *testing.T) {
	g := NewRiskGate(0.2, logger.NewNop(), metrics.Nop{})
	assert.True(t, g.CheckDrawdown(0))
}

func TestPnL(t *testing.T) {
	assert.Equal(t, 10.0, PnL(100, 105, 2, true))
	assert.Equal(t, -10.0, PnL(100, 105, 2, false))
}
