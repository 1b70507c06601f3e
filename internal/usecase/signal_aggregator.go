package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	domsvc "OrdreBook/internal/domain/service"
	"OrdreBook/pkg/logger"

	"github.com/google/uuid"
)

// SignalAggregator runs every analyzer on a snapshot and combines their
// recommendations by quorum.
type SignalAggregator struct {
	analyzers []domsvc.Analyzer
	quorum    int
	timeout   time.Duration
	log       *logger.Logger
	metrics   domrepo.Metrics
	now       func() time.Time
}

type AggregatorOption func(*SignalAggregator)

// WithQuorum sets the minimum number of agreeing analyzers.
func WithQuorum(n int) AggregatorOption {
	return func(a *SignalAggregator) {
		if n > 0 {
			a.quorum = n
		}
	}
}

// WithAnalyzerTimeout bounds each analyzer call. A slow analyzer counts as HOLD.
func WithAnalyzerTimeout(d time.Duration) AggregatorOption {
	return func(a *SignalAggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewSignalAggregator(analyzers []domsvc.Analyzer, log *logger.Logger, metrics domrepo.Metrics, opts ...AggregatorOption) *SignalAggregator {
	a := &SignalAggregator{
		analyzers: analyzers,
		quorum:    2,
		timeout:   time.Second,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fans the snapshot out to every analyzer and returns the combined
// decision. Recommendations keep analyzer order.
func (a *SignalAggregator) Analyze(ctx context.Context, snapshot models.MarketSnapshot, recentTrades []models.TradePrint) models.Decision {
	start := a.now()
	recs := make([]models.Recommendation, len(a.analyzers))

	var wg sync.WaitGroup
	for i, an := range a.analyzers {
		i, an := i, an
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs[i] = a.run(ctx, an, snapshot, recentTrades)
		}()
	}
	wg.Wait()

	action, buys, sells := Quorum(recs, a.quorum)
	d := models.Decision{
		ID:              uuid.NewString(),
		Symbol:          snapshot.Symbol,
		Recommendations: recs,
		FinalAction:     action,
		BuyVotes:        buys,
		SellVotes:       sells,
		ReferencePrice:  snapshot.ReferencePrice(),
		EventTime:       snapshot.EventTime,
		CreatedAt:       a.now().UTC(),
	}
	a.metrics.RecordLatency("aggregate", a.now().Sub(start).Seconds())
	a.metrics.RecordDecision(d.Symbol, string(action))
	return d
}

// Quorum returns BUY when buy votes beat sell votes and reach quorum, SELL
// for the mirror case, HOLD otherwise.
func Quorum(recs []models.Recommendation, quorum int) (models.Action, int, int) {
	var buys, sells int
	for _, r := range recs {
		switch r.Action {
		case models.ActionBuy:
			buys++
		case models.ActionSell:
			sells++
		}
	}
	switch {
	case buys > sells && buys >= quorum:
		return models.ActionBuy, buys, sells
	case sells > buys && sells >= quorum:
		return models.ActionSell, buys, sells
	default:
		return models.ActionHold, buys, sells
	}
}

type analyzerResult struct {
	rec models.Recommendation
	err error
}

func (a *SignalAggregator) run(ctx context.Context, an domsvc.Analyzer, snapshot models.MarketSnapshot, trades []models.TradePrint) models.Recommendation {
	name := an.Name()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := make(chan analyzerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- analyzerResult{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		rec, err := an.Analyze(ctx, snapshot, trades)
		ch <- analyzerResult{rec: rec, err: err}
	}()

	var res analyzerResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		a.metrics.RecordAnalyzerFailure(name)
		a.log.Warn("analyzer failed, counting as HOLD", logger.String("analyzer", name), logger.Error(res.err))
		return models.Hold(name, res.err)
	}

	rec := res.rec
	rec.Source = name
	if !rec.Action.Actionable() {
		rec.Action = models.ActionHold
	}
	return rec
}
