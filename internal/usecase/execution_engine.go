package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/queue"
)

const queueSignals = "signals"

var ErrEngineStopped = errors.New("execution engine stopped")

// ExecutionEngine executes trade signals one at a time in submission order.
type ExecutionEngine struct {
	exchange  domrepo.Exchange
	risk      *RiskGate
	sizer     *PositionSizer
	lifecycle *OrderLifecycle
	log       *logger.Logger
	metrics   domrepo.Metrics

	journal    domrepo.Journal
	notifier   domrepo.Notifier
	baselines  domrepo.BaselineStore
	quoteAsset string

	queue    *queue.Mailbox[models.TradeSignal]
	started  atomic.Bool
	stopping atomic.Bool
	busy     atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

type EngineOption func(*ExecutionEngine)

func WithJournal(j domrepo.Journal) EngineOption {
	return func(e *ExecutionEngine) { e.journal = j }
}

func WithNotifier(n domrepo.Notifier) EngineOption {
	return func(e *ExecutionEngine) { e.notifier = n }
}

// WithBaselineStore persists the drawdown baseline across restarts.
func WithBaselineStore(s domrepo.BaselineStore) EngineOption {
	return func(e *ExecutionEngine) { e.baselines = s }
}

// WithQuoteAsset selects the balance used for risk and sizing (default USDT).
func WithQuoteAsset(asset string) EngineOption {
	return func(e *ExecutionEngine) {
		if asset != "" {
			e.quoteAsset = strings.ToUpper(asset)
		}
	}
}

func NewExecutionEngine(
	exchange domrepo.Exchange,
	risk *RiskGate,
	sizer *PositionSizer,
	lifecycle *OrderLifecycle,
	log *logger.Logger,
	metrics domrepo.Metrics,
	opts ...EngineOption,
) *ExecutionEngine {
	e := &ExecutionEngine{
		exchange:   exchange,
		risk:       risk,
		sizer:      sizer,
		lifecycle:  lifecycle,
		log:        log.With(logger.String("component", "execution_engine")),
		metrics:    metrics,
		quoteAsset: "USDT",
		queue:      queue.NewMailbox[models.TradeSignal](0, queue.OverflowBlock),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit enqueues a signal. It never blocks on execution.
func (e *ExecutionEngine) Submit(sig models.TradeSignal) error {
	if e.stopping.Load() {
		return ErrEngineStopped
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	if err := e.queue.Push(sig); err != nil {
		return ErrEngineStopped
	}
	depth := e.queue.Len()
	e.metrics.RecordQueueDepth(queueSignals, depth)
	e.log.Info("signal queued",
		logger.String("signal_id", sig.ID),
		logger.String("action", string(sig.Action)),
		logger.String("symbol", sig.Symbol),
		logger.Int("queued", depth),
	)
	return nil
}

// Start restores the persisted baseline, if any, and launches the execution
// loop. Calling it twice has no effect.
func (e *ExecutionEngine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.restoreBaseline(ctx)
	go e.run(ctx)
	e.log.Info("execution engine started", logger.String("quote_asset", e.quoteAsset))
}

// Stop refuses new signals, waits for the trade in progress (including its
// fill wait) to finish, and discards whatever is still queued. Without a
// prior Start every queued signal is discarded.
func (e *ExecutionEngine) Stop() {
	e.stopOnce.Do(func() {
		e.stopping.Store(true)
		e.queue.Close()
		if e.started.Load() {
			<-e.done
		} else {
			for _, sig := range e.queue.Drain() {
				e.discard(context.Background(), sig)
			}
			e.metrics.RecordQueueDepth(queueSignals, 0)
		}
		e.log.Info("execution engine stopped")
	})
}

// Running reports whether the loop is accepting signals.
func (e *ExecutionEngine) Running() bool {
	return e.started.Load() && !e.stopping.Load()
}

// Busy reports whether a trade is in progress.
func (e *ExecutionEngine) Busy() bool { return e.busy.Load() }

// Pending returns the number of queued signals.
func (e *ExecutionEngine) Pending() int { return e.queue.Len() }

func (e *ExecutionEngine) run(ctx context.Context) {
	defer close(e.done)
	for {
		sig, ok := e.queue.Pop()
		if !ok {
			return
		}
		e.metrics.RecordQueueDepth(queueSignals, e.queue.Len())
		if e.stopping.Load() {
			e.discard(ctx, sig)
			continue
		}
		e.busy.Store(true)
		e.execute(ctx, sig)
		e.busy.Store(false)
	}
}

func (e *ExecutionEngine) execute(parent context.Context, sig models.TradeSignal) models.ExecutionRecord {
	ctx := context.WithoutCancel(parent)
	log := e.log.With(logger.String("signal_id", sig.ID), logger.String("symbol", sig.Symbol))

	rec := models.ExecutionRecord{
		SignalID:   sig.ID,
		DecisionID: sig.DecisionID,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Price:      sig.Price,
		StopLoss:   sig.StopLoss,
		StartedAt:  time.Now().UTC(),
	}
	abort := func(outcome models.ExecutionOutcome, reason string) models.ExecutionRecord {
		rec.Outcome = outcome
		rec.Reason = reason
		log.Warn("trade aborted", logger.String("outcome", string(outcome)), logger.String("reason", reason))
		return e.finish(ctx, rec)
	}

	if err := sig.Validate(); err != nil {
		return abort(models.OutcomeInvalidSignal, err.Error())
	}

	balance, err := e.balance(ctx)
	if err != nil {
		e.metrics.RecordError("balance")
		return abort(models.OutcomeBalanceFailed, err.Error())
	}
	rec.Balance = balance

	_, hadBaseline := e.risk.Baseline()
	breached := e.risk.CheckDrawdown(balance)
	if !hadBaseline {
		e.persistBaseline(ctx)
	}
	if breached {
		return abort(models.OutcomeDrawdown, fmt.Sprintf("drawdown %.4f reached limit %.4f", e.risk.Drawdown(balance), e.risk.MaxDrawdown()))
	}

	size := e.sizer.Size(balance, sig.Price, sig.StopLoss)
	rec.Size = size
	if size <= 0 {
		return abort(models.OutcomeZeroSize, "position size is zero")
	}

	side, _ := sig.Action.Side()
	start := time.Now()
	resp, err := e.exchange.PlaceOrder(ctx, models.PlaceOrderRequest{
		Symbol:   sig.Symbol,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: size,
		Price:    sig.Price,
	})
	e.metrics.RecordLatency("place_order", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("place_order")
		return abort(models.OutcomePlaceFailed, err.Error())
	}
	if resp.OrderID == "" {
		return abort(models.OutcomeNoOrderID, "exchange response carried no order id")
	}

	log.Info("order placed", logger.String("order_id", resp.OrderID), logger.String("side", string(side)), logger.Float64("size", size))

	order, err := e.lifecycle.Supervise(ctx, models.Order{
		Symbol:   sig.Symbol,
		OrderID:  resp.OrderID,
		Side:     side,
		Quantity: size,
		Status:   models.OrderOpen,
		PlacedAt: time.Now().UTC(),
	})
	rec.OrderID = order.OrderID
	rec.Status = order.Status
	rec.Outcome = models.OutcomeExecuted
	if err != nil {
		rec.Reason = err.Error()
	}
	return e.finish(ctx, rec)
}

func (e *ExecutionEngine) finish(ctx context.Context, rec models.ExecutionRecord) models.ExecutionRecord {
	rec.FinishedAt = time.Now().UTC()
	e.metrics.RecordExecution(string(rec.Outcome))

	if e.journal != nil {
		if err := e.journal.RecordExecution(ctx, rec); err != nil {
			e.metrics.RecordError("journal")
			e.log.Error("journal write failed", logger.String("signal_id", rec.SignalID), logger.Error(err))
		}
	}
	if e.notifier != nil {
		n := models.Notification{
			Kind:      "execution",
			Symbol:    rec.Symbol,
			Text:      executionText(rec),
			Payload:   rec,
			CreatedAt: rec.FinishedAt,
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.metrics.RecordError("notify")
			e.log.Warn("notification failed", logger.String("signal_id", rec.SignalID), logger.Error(err))
		}
	}
	return rec
}

func (e *ExecutionEngine) discard(ctx context.Context, sig models.TradeSignal) {
	now := time.Now().UTC()
	e.log.Warn("signal discarded on shutdown", logger.String("signal_id", sig.ID), logger.String("symbol", sig.Symbol))
	e.metrics.RecordExecution(string(models.OutcomeDiscarded))
	if e.journal == nil {
		return
	}
	rec := models.ExecutionRecord{
		SignalID:   sig.ID,
		DecisionID: sig.DecisionID,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Price:      sig.Price,
		StopLoss:   sig.StopLoss,
		Outcome:    models.OutcomeDiscarded,
		StartedAt:  now,
		FinishedAt: now,
	}
	if err := e.journal.RecordExecution(context.WithoutCancel(ctx), rec); err != nil {
		e.log.Error("journal write failed", logger.String("signal_id", sig.ID), logger.Error(err))
	}
}

func (e *ExecutionEngine) balance(ctx context.Context) (float64, error) {
	balances, err := e.exchange.AccountBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("account balance: %w", err)
	}
	for _, b := range balances {
		if strings.EqualFold(b.Asset, e.quoteAsset) {
			return b.Balance, nil
		}
	}
	return 0, fmt.Errorf("account balance: no %s asset", e.quoteAsset)
}

func (e *ExecutionEngine) restoreBaseline(ctx context.Context) {
	if e.baselines == nil {
		return
	}
	v, ok, err := e.baselines.LoadBaseline(ctx, e.quoteAsset)
	if err != nil {
		e.log.Warn("baseline restore failed", logger.Error(err))
		return
	}
	if ok && e.risk.UpdateInitialBalance(v) {
		e.log.Info("baseline restored", logger.Float64("initial_balance", v))
	}
}

func (e *ExecutionEngine) persistBaseline(ctx context.Context) {
	if e.baselines == nil {
		return
	}
	v, ok := e.risk.Baseline()
	if !ok {
		return
	}
	if err := e.baselines.SaveBaseline(ctx, e.quoteAsset, v); err != nil {
		e.metrics.RecordError("baseline_save")
		e.log.Warn("baseline save failed", logger.Error(err))
	}
}

func executionText(rec models.ExecutionRecord) string {
	if rec.Outcome == models.OutcomeExecuted {
		return fmt.Sprintf("%s %s size=%.6f order=%s status=%s", rec.Action, rec.Symbol, rec.Size, rec.OrderID, rec.Status)
	}
	return fmt.Sprintf("%s %s aborted: %s (%s)", rec.Action, rec.Symbol, rec.Outcome, rec.Reason)
}
