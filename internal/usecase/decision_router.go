package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/queue"

	"github.com/google/uuid"
)

// SignalSubmitter is the execution side of the router.
type SignalSubmitter interface {
	Submit(sig models.TradeSignal) error
}

// DecisionRouter consumes pipeline decisions. Every decision is remembered
// and journaled; BUY and SELL become trade signals for the engine.
type DecisionRouter struct {
	decisions   *queue.Mailbox[models.Decision]
	engine      SignalSubmitter
	stopLossPct float64
	log         *logger.Logger
	metrics     domrepo.Metrics

	cache    domrepo.DecisionCache
	journal  domrepo.Journal
	notifier domrepo.Notifier

	mu     sync.RWMutex
	latest map[string]models.Decision

	started atomic.Bool
	done    chan struct{}
}

type RouterOption func(*DecisionRouter)

func WithDecisionCache(c domrepo.DecisionCache) RouterOption {
	return func(r *DecisionRouter) { r.cache = c }
}

func WithDecisionJournal(j domrepo.Journal) RouterOption {
	return func(r *DecisionRouter) { r.journal = j }
}

func WithDecisionNotifier(n domrepo.Notifier) RouterOption {
	return func(r *DecisionRouter) { r.notifier = n }
}

func NewDecisionRouter(
	decisions *queue.Mailbox[models.Decision],
	engine SignalSubmitter,
	stopLossPct float64,
	log *logger.Logger,
	metrics domrepo.Metrics,
	opts ...RouterOption,
) *DecisionRouter {
	r := &DecisionRouter{
		decisions:   decisions,
		engine:      engine,
		stopLossPct: stopLossPct,
		log:         log.With(logger.String("component", "decision_router")),
		metrics:     metrics,
		latest:      make(map[string]models.Decision),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start consumes decisions until the mailbox is closed and drained.
func (r *DecisionRouter) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		for {
			d, ok := r.decisions.Pop()
			if !ok {
				return
			}
			r.route(ctx, d)
		}
	}()
}

// Wait blocks until the router has drained its mailbox. The mailbox owner
// closes it.
func (r *DecisionRouter) Wait() {
	if r.started.Load() {
		<-r.done
	}
}

// Latest returns the most recent decision for symbol, from memory or the
// shared cache.
func (r *DecisionRouter) Latest(ctx context.Context, symbol string) (models.Decision, bool) {
	r.mu.RLock()
	d, ok := r.latest[symbol]
	r.mu.RUnlock()
	if ok || r.cache == nil {
		return d, ok
	}
	d, ok, err := r.cache.GetLatest(ctx, symbol)
	if err != nil {
		r.log.Warn("latest decision lookup failed", logger.String("symbol", symbol), logger.Error(err))
		return models.Decision{}, false
	}
	return d, ok
}

func (r *DecisionRouter) route(ctx context.Context, d models.Decision) {
	r.mu.Lock()
	r.latest[d.Symbol] = d
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.SetLatest(ctx, d); err != nil {
			r.metrics.RecordError("decision_cache")
			r.log.Warn("decision cache write failed", logger.String("decision_id", d.ID), logger.Error(err))
		}
	}
	if r.journal != nil {
		if err := r.journal.RecordDecision(ctx, d); err != nil {
			r.metrics.RecordError("journal")
			r.log.Warn("decision journal write failed", logger.String("decision_id", d.ID), logger.Error(err))
		}
	}

	if !d.FinalAction.Actionable() {
		return
	}
	price := d.ReferencePrice
	if price <= 0 {
		r.log.Warn("actionable decision without reference price", logger.String("decision_id", d.ID))
		return
	}

	sig := models.TradeSignal{
		ID:         uuid.NewString(),
		Action:     d.FinalAction,
		Symbol:     d.Symbol,
		Price:      price,
		StopLoss:   StopLossFor(d.FinalAction, price, r.stopLossPct),
		Source:     "aggregator",
		DecisionID: d.ID,
		CreatedAt:  time.Now().UTC(),
	}

	if r.notifier != nil {
		n := models.Notification{
			Kind:      "decision",
			Symbol:    d.Symbol,
			Text:      string(d.FinalAction) + " " + d.Symbol,
			Payload:   d,
			CreatedAt: sig.CreatedAt,
		}
		if err := r.notifier.Notify(ctx, n); err != nil {
			r.metrics.RecordError("notify")
			r.log.Warn("decision notification failed", logger.String("decision_id", d.ID), logger.Error(err))
		}
	}

	if err := r.engine.Submit(sig); err != nil {
		r.log.Warn("trade signal not accepted",
			logger.String("decision_id", d.ID),
			logger.String("signal_id", sig.ID),
			logger.String("reason", err.Error()),
		)
		return
	}
	r.log.Info("trade signal routed",
		logger.String("decision_id", d.ID),
		logger.String("signal_id", sig.ID),
		logger.String("action", string(sig.Action)),
		logger.Float64("price", sig.Price),
		logger.Float64("stop_loss", sig.StopLoss),
	)
}

// StopLossFor places the stop pct below a long entry or above a short one.
func StopLossFor(action models.Action, price, pct float64) float64 {
	if pct <= 0 {
		return 0
	}
	switch action {
	case models.ActionBuy:
		return price * (1 - pct)
	case models.ActionSell:
		return price * (1 + pct)
	}
	return 0
}
