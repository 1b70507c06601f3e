package analytics

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// VWAPOBV buys below VWAP with positive on-balance volume and sells above
// VWAP with negative on-balance volume.
type VWAPOBV struct{}

func NewVWAPOBV() *VWAPOBV { return &VWAPOBV{} }

func (a *VWAPOBV) Name() string { return NameVWAPOBV }

func (a *VWAPOBV) Analyze(ctx context.Context, _ models.MarketSnapshot, trades []models.TradePrint) (models.Recommendation, error) {
	if len(trades) == 0 {
		return models.Recommendation{}, ErrEmptyTrades
	}

	var notional, volume, obv float64
	for i, t := range trades {
		notional += t.Notional()
		volume += t.Quantity
		if i == 0 {
			continue
		}
		switch prev := trades[i-1].Price; {
		case t.Price > prev:
			obv += t.Quantity
		case t.Price < prev:
			obv -= t.Quantity
		}
	}
	if volume == 0 {
		return models.Recommendation{}, ErrEmptyTrades
	}

	vwap := notional / volume
	last := trades[len(trades)-1].Price
	action := models.ActionHold
	switch {
	case last < vwap && obv > 0:
		action = models.ActionBuy
	case last > vwap && obv < 0:
		action = models.ActionSell
	}

	return models.Recommendation{
		Source: NameVWAPOBV,
		Action: action,
		Score:  obv,
		Meta:   map[string]float64{"vwap": vwap, "obv": obv, "last": last},
	}, nil
}
