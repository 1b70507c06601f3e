package middleware

import (
	"context"
	"fmt"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/internal/service/ratelimit"
)

// Proc is the downstream the gate forwards accepted snapshots to.
type Proc interface {
	Submit(s models.MarketSnapshot) error
}

// RealtimeGate sits between the market assembler and the signal pipeline.
// It validates snapshots and throttles them per symbol so a fast book does
// not flood the analyzers.
type RealtimeGate struct {
	proc    Proc
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	maxRPS  int
	burst   int
	now     func() time.Time
}

type GateOption func(*RealtimeGate)

// WithMaxRPS sets the max snapshots per second per symbol. n <= 0 disables throttling.
func WithMaxRPS(n int) GateOption {
	return func(g *RealtimeGate) {
		g.maxRPS = n
	}
}

// WithBurst sets how many snapshots may pass back to back.
func WithBurst(n int) GateOption {
	return func(g *RealtimeGate) {
		if n > 0 {
			g.burst = n
		}
	}
}

func withClock(now func() time.Time) GateOption {
	return func(g *RealtimeGate) { g.now = now }
}

func NewRealtimeGate(proc Proc, metrics domrepo.Metrics, opts ...GateOption) *RealtimeGate {
	g := &RealtimeGate{
		proc:    proc,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		burst:   1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Process validates, throttles and forwards one snapshot. Throttled
// snapshots are dropped silently.
func (g *RealtimeGate) Process(ctx context.Context, s models.MarketSnapshot) error {
	start := g.now()
	if err := validateSnapshot(s); err != nil {
		g.metrics.RecordError("gate_validate")
		return err
	}
	if g.maxRPS > 0 && !g.limiter.AllowAt(s.Symbol, float64(g.burst), float64(g.maxRPS), start) {
		g.metrics.RecordDropped("gate_throttle")
		return nil
	}

	if err := g.proc.Submit(s); err != nil {
		g.metrics.RecordError("gate_forward")
		return fmt.Errorf("gate downstream: %w", err)
	}
	g.metrics.RecordLatency("gate_forward", g.now().Sub(start).Seconds())
	return nil
}

func validateSnapshot(s models.MarketSnapshot) error {
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if len(s.Bids) == 0 && len(s.Asks) == 0 {
		return fmt.Errorf("book empty")
	}
	for _, lv := range s.Bids {
		if lv.Price <= 0 || lv.Quantity < 0 {
			return fmt.Errorf("invalid bid level %v@%v", lv.Quantity, lv.Price)
		}
	}
	for _, lv := range s.Asks {
		if lv.Price <= 0 || lv.Quantity < 0 {
			return fmt.Errorf("invalid ask level %v@%v", lv.Quantity, lv.Price)
		}
	}
	if bid, ok := s.BestBid(); ok {
		if ask, ok := s.BestAsk(); ok && bid.Price > ask.Price {
			return fmt.Errorf("crossed book bid %v > ask %v", bid.Price, ask.Price)
		}
	}
	return nil
}
