package paper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"

	"github.com/shopspring/decimal"
)

const defaultFeeRate = 0.0004

type position struct {
	qty   decimal.Decimal // signed, long > 0
	price decimal.Decimal // average entry
}

// Exchange fills market orders immediately at the request price and keeps
// a netted position per symbol. Realized PnL and fees move the balance.
type Exchange struct {
	asset   string
	feeRate decimal.Decimal
	log     *logger.Logger

	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]position
	open      map[string]models.OpenOrder
	seq       atomic.Int64
}

var _ domrepo.Exchange = (*Exchange)(nil)

func New(quoteAsset string, balance float64, log *logger.Logger) *Exchange {
	return &Exchange{
		asset:     strings.ToUpper(quoteAsset),
		feeRate:   decimal.NewFromFloat(defaultFeeRate),
		log:       log.With(logger.String("component", "paper_exchange")),
		balance:   decimal.NewFromFloat(balance),
		positions: make(map[string]position),
		open:      make(map[string]models.OpenOrder),
	}
}

func (e *Exchange) PlaceOrder(_ context.Context, req models.PlaceOrderRequest) (models.PlaceOrderResponse, error) {
	if req.Quantity <= 0 {
		return models.PlaceOrderResponse{}, fmt.Errorf("paper: quantity must be positive")
	}
	if req.Price <= 0 {
		return models.PlaceOrderResponse{}, fmt.Errorf("paper: no price to fill %s at", req.Symbol)
	}
	id := strconv.FormatInt(e.seq.Add(1), 10)

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Type == models.OrderTypeLimit {
		e.open[id] = models.OpenOrder{
			Symbol:   req.Symbol,
			OrderID:  id,
			Side:     req.Side,
			Price:    req.Price,
			Quantity: req.Quantity,
		}
		return models.PlaceOrderResponse{OrderID: id, Status: "NEW"}, nil
	}

	e.fill(req.Symbol, req.Side, decimal.NewFromFloat(req.Quantity), decimal.NewFromFloat(req.Price))
	e.log.Info("paper fill",
		logger.String("order_id", id),
		logger.String("symbol", req.Symbol),
		logger.String("side", string(req.Side)),
		logger.Float64("qty", req.Quantity),
		logger.Float64("price", req.Price),
		logger.String("balance", e.balance.StringFixed(4)),
	)
	return models.PlaceOrderResponse{OrderID: id, Status: "FILLED"}, nil
}

// fill books a trade against the netted position. Caller holds mu.
func (e *Exchange) fill(symbol string, side models.OrderSide, qty, price decimal.Decimal) {
	signed := qty
	if side == models.SideSell {
		signed = qty.Neg()
	}
	e.balance = e.balance.Sub(qty.Mul(price).Mul(e.feeRate))

	p := e.positions[symbol]
	switch {
	case p.qty.IsZero() || p.qty.Sign() == signed.Sign():
		total := p.qty.Add(signed)
		p.price = p.qty.Abs().Mul(p.price).Add(qty.Mul(price)).Div(total.Abs())
		p.qty = total
	default:
		closing := decimal.Min(qty, p.qty.Abs())
		pnl := price.Sub(p.price).Mul(closing)
		if p.qty.IsNegative() {
			pnl = pnl.Neg()
		}
		e.balance = e.balance.Add(pnl)
		p.qty = p.qty.Add(signed)
		if p.qty.Sign() == signed.Sign() {
			p.price = price
		}
	}
	if p.qty.IsZero() {
		delete(e.positions, symbol)
		return
	}
	e.positions[symbol] = p
}

func (e *Exchange) CancelOrder(_ context.Context, symbol, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.open[orderID]
	if !ok || o.Symbol != symbol {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	delete(e.open, orderID)
	return nil
}

func (e *Exchange) OpenOrders(_ context.Context, symbol string) ([]models.OpenOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.OpenOrder, 0, len(e.open))
	for _, o := range e.open {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (e *Exchange) AccountBalance(context.Context) ([]models.AssetBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.balance.InexactFloat64()
	return []models.AssetBalance{{Asset: e.asset, Balance: b, Available: b}}, nil
}

// Position returns the signed quantity and average entry for symbol.
func (e *Exchange) Position(symbol string) (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.positions[symbol]
	return p.qty.InexactFloat64(), p.price.InexactFloat64()
}
