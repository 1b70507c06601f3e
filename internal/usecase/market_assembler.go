package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/queue"
)

// SnapshotGate accepts assembled snapshots for analysis.
type SnapshotGate interface {
	Process(ctx context.Context, s models.MarketSnapshot) error
}

const (
	DefaultRecentTrades = 200
	queueMarketEvents   = "market_events"
)

// marketEvent carries exactly one of depth or trade.
type marketEvent struct {
	depth *models.DepthUpdate
	trade *models.TradePrint
}

// MarketAssembler merges the order-book and trade streams of one symbol into
// snapshots. Stream handlers only enqueue events; a single goroutine owns the
// book and the trade ring. Every accepted book update produces one snapshot
// carrying the recent trades, oldest first.
type MarketAssembler struct {
	symbol    string
	maxTrades int
	gate      SnapshotGate
	log       *logger.Logger
	metrics   domrepo.Metrics

	events   *queue.Mailbox[marketEvent]
	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	// owned by the run goroutine
	bids        []models.PriceLevel
	asks        []models.PriceLevel
	first, last int64
	lastEvent   models.DepthUpdate
	gap         bool
	trades      []models.TradePrint // ring
	head        int
	lastTradeID int64
}

type AssemblerOption func(*MarketAssembler)

// WithEventBuffer bounds the event mailbox. The default is unbounded.
func WithEventBuffer(capacity int, policy queue.OverflowPolicy) AssemblerOption {
	return func(a *MarketAssembler) { a.events = queue.NewMailbox[marketEvent](capacity, policy) }
}

func NewMarketAssembler(symbol string, maxTrades int, gate SnapshotGate, log *logger.Logger, metrics domrepo.Metrics, opts ...AssemblerOption) *MarketAssembler {
	if maxTrades <= 0 {
		maxTrades = DefaultRecentTrades
	}
	a := &MarketAssembler{
		symbol:    strings.ToUpper(symbol),
		maxTrades: maxTrades,
		gate:      gate,
		log:       log.With(logger.String("component", "market_assembler"), logger.String("symbol", strings.ToUpper(symbol))),
		metrics:   metrics,
		events:    queue.NewMailbox[marketEvent](0, queue.OverflowBlock),
		done:      make(chan struct{}),
		trades:    make([]models.TradePrint, 0, maxTrades),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.events.SetOnDrop(func(marketEvent) { metrics.RecordDropped(queueMarketEvents) })
	return a
}

// OnDepth enqueues a book update. Called from the order-book stream.
func (a *MarketAssembler) OnDepth(u models.DepthUpdate) {
	a.enqueue(marketEvent{depth: &u})
}

// OnTrade enqueues a trade print. Called from the trade stream.
func (a *MarketAssembler) OnTrade(t models.TradePrint) {
	a.enqueue(marketEvent{trade: &t})
}

// Pending returns the number of events not yet applied.
func (a *MarketAssembler) Pending() int { return a.events.Len() }

// Start launches the goroutine that applies events. Calling it twice has no effect.
func (a *MarketAssembler) Start(ctx context.Context) {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	go a.run(ctx)
	a.log.Info("market assembler started")
}

// Stop refuses new events and applies those already queued before returning.
// Without a prior Start the queued events are dropped and counted.
func (a *MarketAssembler) Stop() {
	a.stopOnce.Do(func() {
		a.events.Close()
		if a.started.Load() {
			<-a.done
		} else if n := len(a.events.Drain()); n > 0 {
			a.log.Warn("market events dropped, assembler never started", logger.Int("events", n))
		}
		a.log.Info("market assembler stopped", logger.Uint64("events_dropped", a.events.Dropped()))
	})
}

func (a *MarketAssembler) enqueue(ev marketEvent) {
	err := a.events.Push(ev)
	switch {
	case err == nil:
		a.metrics.RecordQueueDepth(queueMarketEvents, a.events.Len())
	case errors.Is(err, queue.ErrClosed):
		a.metrics.RecordDropped("market_events_closed")
	}
}

func (a *MarketAssembler) run(ctx context.Context) {
	defer close(a.done)
	for {
		ev, ok := a.events.Pop()
		if !ok {
			return
		}
		switch {
		case ev.depth != nil:
			a.applyDepth(ctx, *ev.depth)
		case ev.trade != nil:
			a.applyTrade(*ev.trade)
		}
	}
}

// applyDepth replaces the book and forwards a snapshot. Updates older than
// the current book are dropped; a break in the update-id chain is flagged on
// the snapshot but not dropped, partial-depth streams carry the full top of book.
func (a *MarketAssembler) applyDepth(ctx context.Context, u models.DepthUpdate) {
	if !a.accepts(u.Symbol) {
		a.metrics.RecordDropped("foreign_depth")
		return
	}
	if a.last != 0 && u.LastUpdateID != 0 && u.LastUpdateID <= a.last {
		a.metrics.RecordDropped("stale_depth")
		a.log.Debug("stale depth update dropped", logger.Int64("u", u.LastUpdateID), logger.Int64("last", a.last))
		return
	}
	a.gap = !u.Follows(a.last)
	if a.gap {
		a.metrics.RecordError("depth_gap")
		a.log.Debug("depth sequence gap", logger.Int64("prev", a.last), logger.Int64("U", u.FirstUpdateID), logger.Int64("pu", u.PrevLastUpdateID))
	}
	a.bids = append(a.bids[:0], u.Bids...)
	a.asks = append(a.asks[:0], u.Asks...)
	a.first, a.last = u.FirstUpdateID, u.LastUpdateID
	a.lastEvent = u

	if err := a.gate.Process(ctx, a.snapshot()); err != nil {
		a.log.Warn("snapshot rejected", logger.Error(err))
	}
}

func (a *MarketAssembler) applyTrade(t models.TradePrint) {
	if !a.accepts(t.Symbol) {
		a.metrics.RecordDropped("foreign_trade")
		return
	}
	if t.TradeID != 0 && t.TradeID <= a.lastTradeID {
		a.metrics.RecordDropped("duplicate_trade")
		return
	}
	a.lastTradeID = t.TradeID
	if len(a.trades) < a.maxTrades {
		a.trades = append(a.trades, t)
	} else {
		a.trades[a.head] = t
		a.head = (a.head + 1) % a.maxTrades
	}
	a.metrics.RecordLastPrice(a.symbol, t.Price)
}

func (a *MarketAssembler) snapshot() models.MarketSnapshot {
	trades := make([]models.TradePrint, 0, len(a.trades))
	trades = append(trades, a.trades[a.head:]...)
	trades = append(trades, a.trades[:a.head]...)

	return models.MarketSnapshot{
		Symbol:        a.symbol,
		EventTime:     a.lastEvent.EventTime,
		FirstUpdateID: a.first,
		LastUpdateID:  a.last,
		Gap:           a.gap,
		Bids:          append([]models.PriceLevel(nil), a.bids...),
		Asks:          append([]models.PriceLevel(nil), a.asks...),
		Trades:        trades,
	}
}

func (a *MarketAssembler) accepts(symbol string) bool {
	return symbol == "" || strings.EqualFold(symbol, a.symbol)
}
