package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"OrdreBook/internal/domain/models"
)

type fakeExchange struct {
	mu sync.Mutex

	balance    float64
	balanceErr error
	placeErr   error
	emptyID    bool
	placeDelay time.Duration

	// listedFor is how many OpenOrders calls still list a new order.
	listedFor      int
	listedForever  bool
	vanishOnCancel bool
	cancelErr      error

	seq     int
	listed  map[string]int
	placed  []models.PlaceOrderRequest
	cancels int

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeExchange(balance float64) *fakeExchange {
	return &fakeExchange{balance: balance, listed: map[string]int{}}
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.PlaceOrderResponse, error) {
	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.placeDelay > 0 {
		time.Sleep(f.placeDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		f.active.Add(-1)
		return models.PlaceOrderResponse{}, f.placeErr
	}
	if f.emptyID {
		f.active.Add(-1)
		return models.PlaceOrderResponse{Status: "NEW"}, nil
	}
	f.seq++
	id := fmt.Sprintf("ord-%d", f.seq)
	f.listed[id] = f.listedFor
	return models.PlaceOrderResponse{OrderID: id, Status: "NEW"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if f.vanishOnCancel {
		delete(f.listed, orderID)
		f.listedForever = false
	}
	if f.cancelErr != nil {
		return f.cancelErr
	}
	delete(f.listed, orderID)
	f.active.Add(-1)
	return nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OpenOrder
	for id, left := range f.listed {
		if !f.listedForever && left <= 0 {
			delete(f.listed, id)
			f.active.Add(-1)
			continue
		}
		f.listed[id] = left - 1
		out = append(out, models.OpenOrder{OrderID: id, Symbol: symbol})
	}
	return out, nil
}

func (f *fakeExchange) AccountBalance(ctx context.Context) ([]models.AssetBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return []models.AssetBalance{
		{Asset: "BNB", Balance: 3},
		{Asset: "USDT", Balance: f.balance, Available: f.balance},
	}, nil
}

func (f *fakeExchange) setBalance(v float64) {
	f.mu.Lock()
	f.balance = v
	f.mu.Unlock()
}

func (f *fakeExchange) snapshot() ([]models.PlaceOrderRequest, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PlaceOrderRequest(nil), f.placed...), f.cancels
}

type memJournal struct {
	mu        sync.Mutex
	decisions []models.Decision
	records   []models.ExecutionRecord
}

func (j *memJournal) RecordDecision(ctx context.Context, d models.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decisions = append(j.decisions, d)
	return nil
}

func (j *memJournal) RecordExecution(ctx context.Context, r models.ExecutionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
	return nil
}

func (j *memJournal) Records() []models.ExecutionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.ExecutionRecord(nil), j.records...)
}

func (j *memJournal) Decisions() []models.Decision {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.Decision(nil), j.decisions...)
}

type memBaselines struct {
	mu    sync.Mutex
	value map[string]float64
}

func (b *memBaselines) LoadBaseline(ctx context.Context, asset string) (float64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.value[asset]
	return v, ok, nil
}

func (b *memBaselines) SaveBaseline(ctx context.Context, asset string, v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.value == nil {
		b.value = map[string]float64{}
	}
	b.value[asset] = v
	return nil
}

type stubAnalyzer struct {
	name   string
	action models.Action
	err    error
	panics bool
	delay  time.Duration
}

func (s stubAnalyzer) Name() string { return s.name }

func (s stubAnalyzer) Analyze(ctx context.Context, snap models.MarketSnapshot, trades []models.TradePrint) (models.Recommendation, error) {
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.Recommendation{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.Recommendation{}, s.err
	}
	return models.Recommendation{Action: s.action, Score: 1}, nil
}

var errStub = errors.New("stub failure")

func testSnapshot(symbol string) models.MarketSnapshot {
	return models.MarketSnapshot{
		Symbol:    symbol,
		EventTime: time.Unix(1700000000, 0).UTC(),
		Bids:      []models.PriceLevel{{Price: 99, Quantity: 1}},
		Asks:      []models.PriceLevel{{Price: 101, Quantity: 1}},
	}
}
