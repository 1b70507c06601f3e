package analytics

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// OrderFlow scores aggressor volume in [-1, 1]: +1 when every recent trade
// lifted the offer, -1 when every trade hit the bid.
type OrderFlow struct {
	threshold float64
}

func NewOrderFlow(threshold float64) *OrderFlow {
	return &OrderFlow{threshold: threshold}
}

func (a *OrderFlow) Name() string { return NameOrderFlow }

func (a *OrderFlow) Analyze(ctx context.Context, _ models.MarketSnapshot, trades []models.TradePrint) (models.Recommendation, error) {
	var buyVol, sellVol float64
	for _, t := range trades {
		// buyer is maker: the seller crossed the spread
		if t.BuyerMaker {
			sellVol += t.Quantity
		} else {
			buyVol += t.Quantity
		}
	}
	total := buyVol + sellVol
	if total == 0 {
		return models.Recommendation{}, ErrEmptyTrades
	}

	strength := (buyVol - sellVol) / total
	action := models.ActionHold
	switch {
	case strength > a.threshold:
		action = models.ActionBuy
	case strength < -a.threshold:
		action = models.ActionSell
	}

	return models.Recommendation{
		Source: NameOrderFlow,
		Action: action,
		Score:  strength,
		Meta:   map[string]float64{"buy_volume": buyVol, "sell_volume": sellVol},
	}, nil
}
