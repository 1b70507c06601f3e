package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/queue"
)

const (
	queueSnapshots = "snapshots"
	queueDecisions = "decisions"
)

// SignalPipeline owns the analysis worker. Snapshots go in through Submit,
// decisions come out of Decisions in arrival order. Closing the inbound side
// (Stop) lets the worker drain and exit, after which the outbound mailbox is
// closed so consumers see the end of the stream too.
type SignalPipeline struct {
	agg      *SignalAggregator
	inbound  *queue.Mailbox[models.MarketSnapshot]
	outbound *queue.Mailbox[models.Decision]
	log      *logger.Logger
	metrics  domrepo.Metrics

	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

func NewSignalPipeline(
	agg *SignalAggregator,
	inbound *queue.Mailbox[models.MarketSnapshot],
	outbound *queue.Mailbox[models.Decision],
	log *logger.Logger,
	metrics domrepo.Metrics,
) *SignalPipeline {
	p := &SignalPipeline{
		agg:      agg,
		inbound:  inbound,
		outbound: outbound,
		log:      log.With(logger.String("component", "signal_pipeline")),
		metrics:  metrics,
		done:     make(chan struct{}),
	}
	inbound.SetOnDrop(func(s models.MarketSnapshot) {
		metrics.RecordDropped(queueSnapshots)
	})
	outbound.SetOnDrop(func(d models.Decision) {
		metrics.RecordDropped(queueDecisions)
	})
	return p
}

// Submit hands a snapshot to the worker.
func (p *SignalPipeline) Submit(s models.MarketSnapshot) error {
	if err := p.inbound.Push(s); err != nil {
		if errors.Is(err, queue.ErrFull) {
			p.log.Debug("snapshot dropped, pipeline busy", logger.String("symbol", s.Symbol))
			return nil
		}
		return fmt.Errorf("submit snapshot: %w", err)
	}
	p.metrics.RecordQueueDepth(queueSnapshots, p.inbound.Len())
	return nil
}

// Decisions is the consumer side of the pipeline.
func (p *SignalPipeline) Decisions() *queue.Mailbox[models.Decision] {
	return p.outbound
}

// Start launches the worker. Calling it twice has no effect.
func (p *SignalPipeline) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(ctx)
	p.log.Info("signal pipeline started")
}

// Stop refuses new snapshots, waits for the queued ones to be analyzed and
// closes the outbound mailbox.
func (p *SignalPipeline) Stop() {
	p.stopOnce.Do(func() {
		p.inbound.Close()
		if p.started.Load() {
			<-p.done
		}
		p.outbound.Close()
		p.log.Info("signal pipeline stopped",
			logger.Uint64("snapshots_dropped", p.inbound.Dropped()),
			logger.Uint64("decisions_dropped", p.outbound.Dropped()),
		)
	})
}

func (p *SignalPipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		snap, ok := p.inbound.Pop()
		if !ok {
			return
		}
		p.process(ctx, snap)
	}
}

func (p *SignalPipeline) process(ctx context.Context, snap models.MarketSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordError("pipeline_panic")
			p.log.Error("signal analysis panicked", logger.Any("panic", r), logger.String("symbol", snap.Symbol))
		}
	}()

	d := p.agg.Analyze(ctx, snap, snap.Trades)
	p.log.Debug("decision",
		logger.String("decision_id", d.ID),
		logger.String("action", string(d.FinalAction)),
		logger.Int("buy", d.BuyVotes),
		logger.Int("sell", d.SellVotes),
	)

	if err := p.outbound.Push(d); err != nil {
		if errors.Is(err, queue.ErrFull) {
			p.log.Warn("decision dropped, consumer behind", logger.String("decision_id", d.ID))
			return
		}
		p.log.Warn("decision discarded", logger.String("decision_id", d.ID), logger.Error(err))
		return
	}
	p.metrics.RecordQueueDepth(queueDecisions, p.outbound.Len())
}
