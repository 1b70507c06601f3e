package analytics

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// Depth measures the bid share of liquidity resting within band of the mid.
// A share below minShare means buyers are thin (SELL); above 1-minShare
// sellers are thin (BUY).
type Depth struct {
	band     float64
	minShare float64
}

func NewDepth(band, minShare float64) *Depth {
	return &Depth{band: band, minShare: minShare}
}

func (a *Depth) Name() string { return NameDepth }

func (a *Depth) Analyze(ctx context.Context, s models.MarketSnapshot, _ []models.TradePrint) (models.Recommendation, error) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return models.Recommendation{}, ErrEmptyBook
	}

	mid := (bid.Price + ask.Price) / 2
	lo, hi := mid*(1-a.band), mid*(1+a.band)

	var bidQty, askQty float64
	for _, lv := range s.Bids {
		if lv.Price >= lo {
			bidQty += lv.Quantity
		}
	}
	for _, lv := range s.Asks {
		if lv.Price <= hi {
			askQty += lv.Quantity
		}
	}
	total := bidQty + askQty
	if total == 0 {
		return models.Recommendation{}, ErrEmptyBook
	}

	share := bidQty / total
	action := models.ActionHold
	switch {
	case share < a.minShare:
		action = models.ActionSell
	case share > 1-a.minShare:
		action = models.ActionBuy
	}

	return models.Recommendation{
		Source: NameDepth,
		Action: action,
		Score:  share,
		Meta:   map[string]float64{"mid": mid, "bid_depth": bidQty, "ask_depth": askQty},
	}, nil
}
