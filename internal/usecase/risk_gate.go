package usecase

import (
	"sync"

	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
)

const DefaultMaxDrawdown = 0.2

// RiskGate blocks trading once the balance has fallen maxDrawdown below the
// baseline. The baseline is the first balance it sees unless set explicitly.
type RiskGate struct {
	mu             sync.Mutex
	maxDrawdown    float64
	initialBalance float64
	initialized    bool
	log            *logger.Logger
	metrics        domrepo.Metrics
}

func NewRiskGate(maxDrawdown float64, log *logger.Logger, metrics domrepo.Metrics) *RiskGate {
	if maxDrawdown <= 0 {
		maxDrawdown = DefaultMaxDrawdown
	}
	return &RiskGate{maxDrawdown: maxDrawdown, log: log, metrics: metrics}
}

// UpdateInitialBalance sets the baseline. Only the first call has an
// effect; it reports whether the baseline was set.
func (g *RiskGate) UpdateInitialBalance(balance float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return false
	}
	g.initialBalance = balance
	g.initialized = true
	g.log.Info("risk baseline set", logger.Float64("initial_balance", balance))
	return true
}

// Baseline returns the baseline and whether it has been set.
func (g *RiskGate) Baseline() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialBalance, g.initialized
}

func (g *RiskGate) MaxDrawdown() float64 { return g.maxDrawdown }

// Drawdown returns (baseline - balance) / baseline, initialising the
// baseline from balance when unset.
func (g *RiskGate) Drawdown(balance float64) float64 {
	g.UpdateInitialBalance(balance)

	g.mu.Lock()
	initial := g.initialBalance
	g.mu.Unlock()

	if initial <= 0 {
		return 1
	}
	return (initial - balance) / initial
}

// CheckDrawdown reports whether the drawdown ceiling has been reached.
// A non-positive baseline always counts as breached.
func (g *RiskGate) CheckDrawdown(balance float64) bool {
	dd := g.Drawdown(balance)
	g.metrics.RecordDrawdown(dd)
	if dd >= g.maxDrawdown {
		g.log.Warn("max drawdown reached",
			logger.Float64("drawdown", dd),
			logger.Float64("max_drawdown", g.maxDrawdown),
			logger.Float64("balance", balance),
		)
		return true
	}
	return false
}

// PnL returns the profit or loss of a position of size opened at entry and
// marked at current.
func PnL(entry, current, size float64, isLong bool) float64 {
	if isLong {
		return (current - entry) * size
	}
	return (entry - current) * size
}
